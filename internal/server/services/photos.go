package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	sc "github.com/dmitrijs2005/fleetcheck/internal/server/config"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const presignExpiry = 15 * time.Minute

var (
	ErrNoPhoto         = errors.New("no photo recorded for item")
	ErrExecutionClosed = errors.New("execution already completed")
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// PhotoService hands out presigned S3 URLs for inspection photos. Photos go
// straight from the client to the bucket; the server only names the object.
type PhotoService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
}

func NewPhotoService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config) *PhotoService {
	return &PhotoService{db: db, repomanager: m, config: cfg}
}

// PhotoStorageKey names the object of one photo of one execution item.
func PhotoStorageKey(executionID, itemID string) string {
	return fmt.Sprintf("photos/%s/%s/%v", executionID, itemID, uuid.New())
}

func (s *PhotoService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// UploadURL returns a fresh key and a presigned PUT URL for it. Executions
// not yet uploaded by the client are accepted; a completed one is not.
func (s *PhotoService) UploadURL(ctx context.Context, executionID, itemID string) (api.PhotoUploadResponse, error) {
	exec, err := s.execution(ctx, executionID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
	case err != nil:
		return api.PhotoUploadResponse{}, err
	case exec.CompletedAt != nil:
		return api.PhotoUploadResponse{}, ErrExecutionClosed
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return api.PhotoUploadResponse{}, err
	}

	bucket := s.config.S3Bucket
	key := PhotoStorageKey(executionID, itemID)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return api.PhotoUploadResponse{}, err
	}

	return api.PhotoUploadResponse{Key: key, URL: req.URL}, nil
}

// DownloadURL returns a presigned GET URL for the photo recorded on the
// given item of a synchronized execution.
func (s *PhotoService) DownloadURL(ctx context.Context, executionID, itemID string) (api.PhotoUploadResponse, error) {
	exec, err := s.execution(ctx, executionID)
	if err != nil {
		return api.PhotoUploadResponse{}, err
	}

	var key string
	for _, r := range exec.Results {
		if r.ItemID == itemID {
			key = r.PhotoKey
			break
		}
	}
	if key == "" {
		return api.PhotoUploadResponse{}, ErrNoPhoto
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return api.PhotoUploadResponse{}, err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return api.PhotoUploadResponse{}, err
	}

	return api.PhotoUploadResponse{Key: key, URL: req.URL}, nil
}

func (s *PhotoService) execution(ctx context.Context, id string) (api.ChecklistExecutionDTO, error) {
	rec, err := s.repomanager.Records(s.db).Get(ctx, api.CollectionExecutions, id)
	if err != nil {
		return api.ChecklistExecutionDTO{}, err
	}
	var exec api.ChecklistExecutionDTO
	if err := json.Unmarshal(rec.Payload, &exec); err != nil {
		return api.ChecklistExecutionDTO{}, fmt.Errorf("%w: %v", common.ErrInvalidPayload, err)
	}
	return exec, nil
}
