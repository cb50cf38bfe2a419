package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/courierly/dispatch-service/internal/broadcast"
	"github.com/courierly/dispatch-service/internal/entities"
	"github.com/courierly/dispatch-service/internal/repo"
	"github.com/courierly/dispatch-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureHub struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (h *captureHub) Publish(e broadcast.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *captureHub) Events() []broadcast.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]broadcast.Event(nil), h.events...)
}

type driverAPI interface {
	RegisterDriver(ctx context.Context, in service.RegisterDriverInput) (entities.Driver, error)
	DeactivateDriver(ctx context.Context, id string) (entities.Driver, error)
	GetDriver(ctx context.Context, id string) (entities.Driver, error)
	GetActiveDrivers(ctx context.Context) ([]entities.Driver, error)
	ReportPosition(ctx context.Context, driverID string, lat, lng float64) (entities.Driver, error)
}

func newDriverFixture(t *testing.T) (driverAPI, *repo.MemoryRepo, *captureHub) {
	t.Helper()
	store := repo.NewMemoryRepo()
	hub := &captureHub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewDriverService(logger, store, hub), store, hub
}

func TestDriverService_RegisterDriver(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		svc, _, _ := newDriverFixture(t)
		driver, err := svc.RegisterDriver(ctx, service.RegisterDriverInput{Name: "Marcus Johnson", Phone: "+1234567890"})
		require.NoError(t, err)
		assert.NotEmpty(t, driver.ID)
		assert.True(t, driver.IsActive)
		assert.Equal(t, 5.0, driver.Rating)
		assert.Nil(t, driver.Location)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc, _, _ := newDriverFixture(t)
		_, err := svc.RegisterDriver(ctx, service.RegisterDriverInput{Name: "", Phone: "+1234567890"})
		assert.ErrorIs(t, err, entities.ErrValidation)
		_, err = svc.RegisterDriver(ctx, service.RegisterDriverInput{Name: "Marcus Johnson", Phone: ""})
		assert.ErrorIs(t, err, entities.ErrValidation)
	})

	t.Run("duplicate phone", func(t *testing.T) {
		svc, _, _ := newDriverFixture(t)
		_, err := svc.RegisterDriver(ctx, service.RegisterDriverInput{Name: "Marcus Johnson", Phone: "+1234567890"})
		require.NoError(t, err)
		_, err = svc.RegisterDriver(ctx, service.RegisterDriverInput{Name: "Someone Else", Phone: "+1234567890"})
		assert.ErrorIs(t, err, entities.ErrValidation)
	})
}

func TestDriverService_DeactivateDriver(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newDriverFixture(t)

	driver, err := svc.RegisterDriver(ctx, service.RegisterDriverInput{Name: "Sarah Kim", Phone: "+1234567891"})
	require.NoError(t, err)

	deactivated, err := svc.DeactivateDriver(ctx, driver.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	active, err := svc.GetActiveDrivers(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// The record itself survives deactivation.
	got, err := svc.GetDriver(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, driver.ID, got.ID)

	_, err = svc.DeactivateDriver(ctx, "nope")
	assert.ErrorIs(t, err, entities.ErrDriverNotFound)
}

func TestDriverService_ReportPosition(t *testing.T) {
	ctx := context.Background()

	t.Run("persists then broadcasts", func(t *testing.T) {
		svc, store, hub := newDriverFixture(t)
		driver, err := svc.RegisterDriver(ctx, service.RegisterDriverInput{Name: "David Lee", Phone: "+1234567892"})
		require.NoError(t, err)

		reported, err := svc.ReportPosition(ctx, driver.ID, 37.7749, -122.4194)
		require.NoError(t, err)
		require.NotNil(t, reported.Location)

		stored, err := store.GetDriver(ctx, driver.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.Location)
		assert.Equal(t, 37.7749, stored.Location.Lat)
		assert.Equal(t, -122.4194, stored.Location.Lng)

		events := hub.Events()
		require.Len(t, events, 1)
		assert.Equal(t, broadcast.Event{DriverID: driver.ID, Lat: 37.7749, Lng: -122.4194}, events[0])
	})

	t.Run("last report wins", func(t *testing.T) {
		svc, store, hub := newDriverFixture(t)
		driver, err := svc.RegisterDriver(ctx, service.RegisterDriverInput{Name: "David Lee", Phone: "+1234567892"})
		require.NoError(t, err)

		_, err = svc.ReportPosition(ctx, driver.ID, 37.0, -122.0)
		require.NoError(t, err)
		_, err = svc.ReportPosition(ctx, driver.ID, 38.0, -121.0)
		require.NoError(t, err)

		stored, err := store.GetDriver(ctx, driver.ID)
		require.NoError(t, err)
		assert.Equal(t, 38.0, stored.Location.Lat)
		assert.Len(t, hub.Events(), 2)
	})

	t.Run("unknown driver is rejected without broadcast", func(t *testing.T) {
		svc, _, hub := newDriverFixture(t)
		_, err := svc.ReportPosition(ctx, "nope", 37.0, -122.0)
		assert.ErrorIs(t, err, entities.ErrDriverNotFound)
		assert.Empty(t, hub.Events())
	})
}
