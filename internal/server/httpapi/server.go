// Package httpapi exposes the fleetcheck REST API under /api/v1.
//
// Routes:
//
//	POST /api/v1/auth/register
//	POST /api/v1/auth/login
//	POST /api/v1/auth/refresh
//	GET  /api/v1/ping
//	GET  /api/v1/{collection}?page=&size=
//	GET  /api/v1/{collection}/{id}
//	POST /api/v1/{collection}
//	PUT  /api/v1/{collection}/{id}
//	POST /api/v1/executions/{id}/results/{item}/photo
//	GET  /api/v1/executions/{id}/results/{item}/photo
//	GET  /metrics
//
// Everything except auth, ping and metrics requires a bearer access token.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/dmitrijs2005/fleetcheck/internal/logging"
	"github.com/dmitrijs2005/fleetcheck/internal/server/metrics"
	"github.com/dmitrijs2005/fleetcheck/internal/server/models"
	"github.com/dmitrijs2005/fleetcheck/internal/server/services"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

type UserService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Authenticate(token string) (string, error)
}

type RecordService interface {
	List(ctx context.Context, collection string, page, size int) (api.Page[json.RawMessage], error)
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Create(ctx context.Context, userID, collection string, body json.RawMessage) (json.RawMessage, error)
	Update(ctx context.Context, userID, collection, id string, body json.RawMessage) (json.RawMessage, error)
}

type PhotoService interface {
	UploadURL(ctx context.Context, executionID, itemID string) (api.PhotoUploadResponse, error)
	DownloadURL(ctx context.Context, executionID, itemID string) (api.PhotoUploadResponse, error)
}

type Server struct {
	address string
	users   UserService
	records RecordService
	photos  PhotoService
	metrics *metrics.Metrics
	logger  logging.Logger
}

func NewServer(a string, l logging.Logger, us UserService, rs RecordService, ps PhotoService, m *metrics.Metrics) *Server {
	return &Server{
		address: a,
		logger:  l.With("module", "http_server"),
		users:   us,
		records: rs,
		photos:  ps,
		metrics: m,
	}
}

// Handler returns the complete routing tree wrapped in the request
// instrumentation.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	p := common.APIPrefix

	mux.HandleFunc("POST "+p+"/auth/register", s.handleRegister)
	mux.HandleFunc("POST "+p+"/auth/login", s.handleLogin)
	mux.HandleFunc("POST "+p+"/auth/refresh", s.handleRefresh)
	mux.HandleFunc("GET "+p+"/ping", s.handlePing)

	mux.Handle("GET "+p+"/{collection}", s.authenticated(s.handleList))
	mux.Handle("GET "+p+"/{collection}/{id}", s.authenticated(s.handleGet))
	mux.Handle("POST "+p+"/{collection}", s.authenticated(s.handleCreate))
	mux.Handle("PUT "+p+"/{collection}/{id}", s.authenticated(s.handleUpdate))
	mux.Handle("POST "+p+"/"+api.CollectionExecutions+"/{id}/results/{item}/photo", s.authenticated(s.handlePhotoUpload))
	mux.Handle("GET "+p+"/"+api.CollectionExecutions+"/{id}/results/{item}/photo", s.authenticated(s.handlePhotoDownload))

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.instrument(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Warn(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	err := srv.Serve(listen)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}
