package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/courierly/dispatch-service/internal/broadcast"
	"github.com/courierly/dispatch-service/internal/entities"
	"github.com/courierly/dispatch-service/internal/events"
	"github.com/courierly/dispatch-service/internal/handler"
	"github.com/courierly/dispatch-service/internal/repo"
	"github.com/courierly/dispatch-service/internal/service"
	"github.com/courierly/dispatch-service/pkg/cache"
	"github.com/courierly/dispatch-service/pkg/trm"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter wires the full stack against the in-memory backend.
func newTestRouter(t *testing.T) (chi.Router, *repo.MemoryRepo) {
	t.Helper()
	logger := testLogger()
	store := repo.NewMemoryRepo()
	hub := broadcast.NewHub(logger, 16)
	t.Cleanup(func() { hub.Close() })

	dispatch := service.NewDispatchService(
		logger,
		trm.NewNopManager(),
		store,
		store,
		cache.New[entities.Delivery](64, time.Minute),
		events.NopPublisher{},
		service.RandomDriverSelector,
	)
	drivers := service.NewDriverService(logger, store, hub)
	users := service.NewUserService(logger, store)

	r := chi.NewRouter()
	handler.NewHTTPHandler(logger, dispatch, drivers, users).Init(r)
	return r, store
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func validDeliveryBody() map[string]any {
	return map[string]any{
		"userId":           "user-1",
		"pickupLocation":   map[string]any{"lat": 37.7749, "lng": -122.4194, "address": "1 Market St"},
		"deliveryLocation": map[string]any{"lat": 37.7849, "lng": -122.4094, "address": "2 Mission St"},
		"itemDescription":  "flowers",
		"packageSize":      "small",
		"urgency":          "express",
	}
}

func TestHTTPHandler_CreateDelivery(t *testing.T) {
	t.Run("no drivers leaves the delivery pending", func(t *testing.T) {
		r, _ := newTestRouter(t)

		rec := doJSON(t, r, http.MethodPost, "/api/deliveries", validDeliveryBody())
		require.Equal(t, http.StatusCreated, rec.Code)

		res := decodeInto[handler.DeliveryResponse](t, rec)
		assert.NotEmpty(t, res.ID)
		assert.Equal(t, "pending", res.Status)
		assert.Empty(t, res.DriverID)
		assert.Nil(t, res.Driver)
		assert.Nil(t, res.EstimatedDeliveryTime)
		assert.Equal(t, 17.5, res.TotalAmount)
	})

	t.Run("auto assignment attaches the driver", func(t *testing.T) {
		r, store := newTestRouter(t)
		driver, err := store.CreateDriver(context.Background(), entities.Driver{Name: "Marcus Johnson", Phone: "+1234567890", Rating: 5, IsActive: true})
		require.NoError(t, err)

		rec := doJSON(t, r, http.MethodPost, "/api/deliveries", validDeliveryBody())
		require.Equal(t, http.StatusCreated, rec.Code)

		res := decodeInto[handler.DeliveryResponse](t, rec)
		assert.Equal(t, "assigned", res.Status)
		assert.Equal(t, driver.ID, res.DriverID)
		require.NotNil(t, res.Driver)
		assert.Equal(t, "Marcus Johnson", res.Driver.Name)
		require.NotNil(t, res.EstimatedDeliveryTime)
	})

	t.Run("validation failures", func(t *testing.T) {
		r, _ := newTestRouter(t)

		body := validDeliveryBody()
		body["urgency"] = "overnight"
		rec := doJSON(t, r, http.MethodPost, "/api/deliveries", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		body = validDeliveryBody()
		delete(body, "itemDescription")
		rec = doJSON(t, r, http.MethodPost, "/api/deliveries", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		r, _ := newTestRouter(t)
		req := httptest.NewRequest(http.MethodPost, "/api/deliveries", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHTTPHandler_AssignAndStatus(t *testing.T) {
	r, store := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/deliveries", validDeliveryBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeInto[handler.DeliveryResponse](t, rec)
	require.Equal(t, "pending", created.Status)

	t.Run("assign without drivers", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/api/deliveries/"+created.ID+"/assign", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	_, err := store.CreateDriver(context.Background(), entities.Driver{Name: "Sarah Kim", Phone: "+1234567891", Rating: 5, IsActive: true})
	require.NoError(t, err)

	t.Run("manual assign succeeds", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/api/deliveries/"+created.ID+"/assign", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decodeInto[handler.DeliveryResponse](t, rec)
		assert.Equal(t, "assigned", res.Status)
	})

	t.Run("assign twice conflicts", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/api/deliveries/"+created.ID+"/assign", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("status walk", func(t *testing.T) {
		for _, status := range []string{"picking_up", "en_route", "delivered"} {
			rec := doJSON(t, r, http.MethodPatch, "/api/deliveries/"+created.ID+"/status", map[string]any{"status": status})
			require.Equal(t, http.StatusOK, rec.Code, status)
		}
		rec := doJSON(t, r, http.MethodGet, "/api/deliveries/"+created.ID, nil)
		res := decodeInto[handler.DeliveryResponse](t, rec)
		assert.Equal(t, "delivered", res.Status)
		assert.NotNil(t, res.ActualDeliveryTime)
	})

	t.Run("terminal delivery rejects further updates", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPatch, "/api/deliveries/"+created.ID+"/status", map[string]any{"status": "cancelled"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPatch, "/api/deliveries/"+created.ID+"/status", map[string]any{"status": "lost"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown delivery", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodGet, "/api/deliveries/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHTTPHandler_Drivers(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/drivers", map[string]any{"name": "Marcus Johnson", "phone": "+1234567890"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeInto[handler.DriverResponse](t, rec)
	assert.True(t, created.IsActive)
	assert.Equal(t, 5.0, created.Rating)

	t.Run("invalid phone", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/api/drivers", map[string]any{"name": "X", "phone": "not-a-phone"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate phone", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/api/drivers", map[string]any{"name": "Other", "phone": "+1234567890"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("active list then deactivate", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodGet, "/api/drivers/", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		active := decodeInto[[]handler.DriverResponse](t, rec)
		require.Len(t, active, 1)

		rec = doJSON(t, r, http.MethodPatch, "/api/drivers/"+created.ID+"/deactivate", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, r, http.MethodGet, "/api/drivers/", nil)
		active = decodeInto[[]handler.DriverResponse](t, rec)
		assert.Empty(t, active)

		// Record stays resolvable after deactivation.
		rec = doJSON(t, r, http.MethodGet, "/api/drivers/"+created.ID, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHTTPHandler_Users(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/users", map[string]any{
		"username":       "alice",
		"email":          "alice@example.com",
		"hashedPassword": "$2a$10$abcdefghijklmnopqrstuv",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeInto[handler.UserResponse](t, rec)
	assert.Equal(t, "alice", created.Username)

	t.Run("credentials never leak", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodGet, "/api/users/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		raw := rec.Body.String()
		assert.NotContains(t, raw, "hashedPassword")
		assert.NotContains(t, raw, "$2a$10$")
	})

	t.Run("location update", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPatch, "/api/users/"+created.ID+"/location", map[string]any{
			"lat": 37.77, "lng": -122.41, "address": "1 Market St", "accuracy": 10,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		res := decodeInto[handler.UserResponse](t, rec)
		require.NotNil(t, res.Location)
		assert.Equal(t, "1 Market St", res.Location.Address)
	})

	t.Run("billing refs stay private", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPatch, "/api/users/"+created.ID+"/billing", map[string]any{
			"customerId": "cus_123", "subscriptionId": "sub_456",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "cus_123")
	})

	t.Run("user delivery history", func(t *testing.T) {
		body := validDeliveryBody()
		body["userId"] = created.ID
		rec := doJSON(t, r, http.MethodPost, "/api/deliveries", body)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, r, http.MethodGet, "/api/deliveries/user/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		history := decodeInto[[]handler.DeliveryResponse](t, rec)
		require.Len(t, history, 1)

		rec = doJSON(t, r, http.MethodGet, "/api/deliveries/user/"+created.ID+"/active", nil)
		active := decodeInto[[]handler.DeliveryResponse](t, rec)
		assert.Len(t, active, 1)
	})
}
