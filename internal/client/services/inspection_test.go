package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/client/client"
	"github.com/dmitrijs2005/fleetcheck/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *inspectionService
	repos *client.Repositories
	fc    *fakeClient
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repos: client.NewRepositories(setupDB(t)),
		fc:    &fakeClient{},
		clock: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	f.svc = &inspectionService{repos: f.repos, client: f.fc, now: func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}}
	return f
}

// seed creates a type, a vehicle of that type and a checklist with one
// required and one optional item.
func (f *fixture) seed(t *testing.T) (models.Vehicle, models.Checklist) {
	t.Helper()
	ctx := context.Background()

	vt, err := f.svc.AddVehicleType(ctx, "Pumper", "")
	require.NoError(t, err)
	v, err := f.svc.AddVehicle(ctx, "FD-01", "Engine 1", vt.ID, "")
	require.NoError(t, err)
	c, err := f.svc.AddChecklist(ctx, "Daily", vt.ID, []string{"Tyres", "Radio?"})
	require.NoError(t, err)
	return v, c
}

func TestAddVehicle_PendingUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, _ := f.seed(t)

	got, err := f.repos.Vehicles.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingUpload, got.SyncStatus)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "FD-01", got.LicensePlate)
	assert.True(t, got.Active)
}

func TestAddVehicle_UnknownReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddVehicle(ctx, "FD-02", "", "nope", "")
	require.ErrorIs(t, err, ErrUnknownType)

	vt, err := f.svc.AddVehicleType(ctx, "Ladder", "")
	require.NoError(t, err)
	_, err = f.svc.AddVehicle(ctx, "FD-02", "", vt.ID, "nope")
	require.ErrorIs(t, err, ErrUnknownGroup)

	_, err = f.svc.AddVehicle(ctx, " ", "", vt.ID, "")
	require.ErrorIs(t, err, models.ErrEmptyLicensePlate)
}

func TestUpdateVehicle_BumpsVersionAndMarksPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, _ := f.seed(t)

	// pretend it was synced
	require.NoError(t, f.repos.Vehicles.Update(ctx, v.WithUpdatedSync(models.StatusSynced, v.LastModifiedTime, 3)))

	g, err := f.svc.AddVehicleGroup(ctx, "Station 2", "North")
	require.NoError(t, err)
	inactive := false
	desc := "Reserve"
	got, err := f.svc.UpdateVehicle(ctx, v.ID, VehiclePatch{Description: &desc, GroupID: &g.ID, Active: &inactive})
	require.NoError(t, err)

	assert.Equal(t, int64(4), got.Version)
	assert.Equal(t, models.StatusPendingUpload, got.SyncStatus)

	stored, err := f.repos.Vehicles.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reserve", stored.Description)
	assert.Equal(t, g.ID, stored.GroupID)
	assert.False(t, stored.Active)
	assert.True(t, stored.LastModifiedTime.After(v.LastModifiedTime))
}

func TestUpdateVehicle_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, _ := f.seed(t)

	_, err := f.svc.UpdateVehicle(ctx, v.ID, VehiclePatch{})
	require.ErrorIs(t, err, ErrNothingToUpdate)

	active := true
	_, err = f.svc.UpdateVehicle(ctx, "missing", VehiclePatch{Active: &active})
	require.ErrorIs(t, err, ErrUnknownVehicle)

	bad := "missing-group"
	_, err = f.svc.UpdateVehicle(ctx, v.ID, VehiclePatch{GroupID: &bad})
	require.ErrorIs(t, err, ErrUnknownGroup)
}

func TestExecutionWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, c := f.seed(t)

	e, err := f.svc.StartExecution(ctx, c.ID, v.ID, " Jane ")
	require.NoError(t, err)
	assert.Equal(t, "Jane", e.Inspector)

	_, err = f.svc.CompleteExecution(ctx, e.ID)
	require.ErrorIs(t, err, models.ErrMissingResults)

	e, err = f.svc.RecordResult(ctx, e.ID, c.Items[0].ID, "defect", "worn")
	require.NoError(t, err)
	assert.True(t, e.HasDefects())
	assert.Equal(t, int64(2), e.Version)

	_, err = f.svc.RecordResult(ctx, e.ID, c.Items[0].ID, "broken", "")
	require.ErrorIs(t, err, models.ErrInvalidResult)

	_, err = f.svc.RecordResult(ctx, e.ID, "other-item", models.ResultOK, "")
	require.ErrorIs(t, err, models.ErrUnknownItem)

	e, err = f.svc.CompleteExecution(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, e.Completed())

	stored, _, err := f.svc.Execution(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed())
	assert.Equal(t, models.StatusPendingUpload, stored.SyncStatus)

	_, err = f.svc.RecordResult(ctx, e.ID, c.Items[1].ID, models.ResultOK, "")
	require.ErrorIs(t, err, models.ErrExecutionCompleted)
}

func TestStartExecution_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, c := f.seed(t)

	_, err := f.svc.StartExecution(ctx, "nope", v.ID, "x")
	require.ErrorIs(t, err, ErrUnknownList)

	_, err = f.svc.StartExecution(ctx, c.ID, "nope", "x")
	require.ErrorIs(t, err, ErrUnknownVehicle)

	other, err := f.svc.AddVehicleType(ctx, "Tanker", "")
	require.NoError(t, err)
	c2, err := f.svc.AddChecklist(ctx, "Tanker weekly", other.ID, []string{"Valves"})
	require.NoError(t, err)
	_, err = f.svc.StartExecution(ctx, c2.ID, v.ID, "x")
	require.ErrorIs(t, err, ErrWrongChecklist)

	_, _, err = f.svc.Execution(ctx, "nope")
	require.ErrorIs(t, err, ErrUnknownExec)
}

func TestAttachPhoto_UploadsAndStoresKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, c := f.seed(t)

	var gotBody []byte
	var gotCT string
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer storage.Close()

	f.fc.PhotoRet = api.PhotoUploadResponse{Key: "photos/e/i/k.jpg", URL: storage.URL + "/bucket/k.jpg"}
	f.svc.upload = storage.Client()

	path := filepath.Join(t.TempDir(), "tyre.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o600))

	e, err := f.svc.StartExecution(ctx, c.ID, v.ID, "x")
	require.NoError(t, err)

	_, err = f.svc.AttachPhoto(ctx, e.ID, c.Items[0].ID, path)
	require.ErrorIs(t, err, ErrNoResult)
	require.Equal(t, 0, f.fc.PhotoCalls)

	_, err = f.svc.RecordResult(ctx, e.ID, c.Items[0].ID, models.ResultDefect, "flat")
	require.NoError(t, err)

	e, err = f.svc.AttachPhoto(ctx, e.ID, c.Items[0].ID, path)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", gotCT)
	assert.Equal(t, "jpeg-bytes", string(gotBody))

	r, ok := e.Result(c.Items[0].ID)
	require.True(t, ok)
	assert.Equal(t, "photos/e/i/k.jpg", r.PhotoKey)
	assert.Equal(t, "flat", r.Notes)
	assert.Equal(t, models.ResultDefect, r.Status)

	stored, _, err := f.svc.Execution(ctx, e.ID)
	require.NoError(t, err)
	sr, _ := stored.Result(c.Items[0].ID)
	assert.Equal(t, "photos/e/i/k.jpg", sr.PhotoKey)
}

func TestAttachPhoto_OfflineKeepsRecordUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, c := f.seed(t)

	e, err := f.svc.StartExecution(ctx, c.ID, v.ID, "x")
	require.NoError(t, err)
	e, err = f.svc.RecordResult(ctx, e.ID, c.Items[0].ID, models.ResultOK, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "p.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

	f.fc.PhotoErr = client.ErrUnavailable
	_, err = f.svc.AttachPhoto(ctx, e.ID, c.Items[0].ID, path)
	require.ErrorIs(t, err, client.ErrUnavailable)

	stored, _, err := f.svc.Execution(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Version, stored.Version)
}

func TestConflictsAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, c := f.seed(t)

	require.NoError(t, f.repos.Vehicles.Update(ctx, v.WithUpdatedSync(models.StatusConflict, v.LastModifiedTime, 2)))
	require.NoError(t, f.repos.Checklists.Update(ctx, c.WithUpdatedSync(models.StatusSynced, c.LastModifiedTime, 1)))

	conflicts, err := f.svc.Conflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, api.CollectionVehicles, conflicts[0].Collection)
	assert.Equal(t, v.ID, conflicts[0].ID)
	assert.Equal(t, int64(2), conflicts[0].Version)

	counts, err := f.svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[api.CollectionVehicleTypes][models.StatusPendingUpload])
	assert.Equal(t, 1, counts[api.CollectionVehicles][models.StatusConflict])
	assert.Equal(t, 1, counts[api.CollectionChecklists][models.StatusSynced])
	assert.Empty(t, counts[api.CollectionExecutions])
}

func TestPhotoContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", photoContentType("a.JPG", nil))
	assert.Equal(t, "image/png", photoContentType("a.png", nil))
	assert.Equal(t, "text/plain; charset=utf-8", photoContentType("a.bin", []byte("hello")))
}
