package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/courierly/dispatch-service/internal/entities"
	"github.com/courierly/dispatch-service/internal/repo"
	"github.com/courierly/dispatch-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userAPI interface {
	RegisterUser(ctx context.Context, in service.RegisterUserInput) (entities.User, error)
	GetUser(ctx context.Context, id string) (entities.User, error)
	ReportUserLocation(ctx context.Context, id string, loc entities.UserLocation) (entities.User, error)
	SetBillingRefs(ctx context.Context, id, customerID, subscriptionID string) (entities.User, error)
}

func newUserFixture(t *testing.T) userAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewUserService(logger, repo.NewMemoryRepo())
}

func TestUserService_RegisterUser(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc := newUserFixture(t)
		user, err := svc.RegisterUser(ctx, service.RegisterUserInput{
			Username:       "alice",
			Email:          "alice@example.com",
			HashedPassword: "$2a$10$abcdefghijklmnopqrstuv",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.Nil(t, user.Location)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc := newUserFixture(t)
		for _, in := range []service.RegisterUserInput{
			{Email: "a@b.c", HashedPassword: "x"},
			{Username: "a", HashedPassword: "x"},
			{Username: "a", Email: "a@b.c"},
		} {
			_, err := svc.RegisterUser(ctx, in)
			assert.ErrorIs(t, err, entities.ErrValidation)
		}
	})

	t.Run("duplicate username and email", func(t *testing.T) {
		svc := newUserFixture(t)
		_, err := svc.RegisterUser(ctx, service.RegisterUserInput{Username: "alice", Email: "alice@example.com", HashedPassword: "x"})
		require.NoError(t, err)

		_, err = svc.RegisterUser(ctx, service.RegisterUserInput{Username: "alice", Email: "other@example.com", HashedPassword: "x"})
		assert.ErrorIs(t, err, entities.ErrValidation)

		_, err = svc.RegisterUser(ctx, service.RegisterUserInput{Username: "bob", Email: "alice@example.com", HashedPassword: "x"})
		assert.ErrorIs(t, err, entities.ErrValidation)
	})
}

func TestUserService_LocationAndBilling(t *testing.T) {
	ctx := context.Background()
	svc := newUserFixture(t)

	user, err := svc.RegisterUser(ctx, service.RegisterUserInput{Username: "alice", Email: "alice@example.com", HashedPassword: "x"})
	require.NoError(t, err)

	updated, err := svc.ReportUserLocation(ctx, user.ID, entities.UserLocation{Lat: 37.77, Lng: -122.41, Address: "1 Market St", Accuracy: 12})
	require.NoError(t, err)
	require.NotNil(t, updated.Location)
	assert.Equal(t, "1 Market St", updated.Location.Address)

	billed, err := svc.SetBillingRefs(ctx, user.ID, "cus_123", "sub_456")
	require.NoError(t, err)
	assert.Equal(t, "cus_123", billed.BillingCustomerID)
	assert.Equal(t, "sub_456", billed.BillingSubscriptionID)

	_, err = svc.ReportUserLocation(ctx, "nope", entities.UserLocation{})
	assert.ErrorIs(t, err, entities.ErrUserNotFound)

	_, err = svc.GetUser(ctx, "nope")
	assert.ErrorIs(t, err, entities.ErrUserNotFound)
}
