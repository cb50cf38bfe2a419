package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/courierly/dispatch-service/internal/entities"
)

type UserRepo interface {
	CreateUser(ctx context.Context, user entities.User) (entities.User, error)
	GetUser(ctx context.Context, id string) (entities.User, error)
	GetUserByUsername(ctx context.Context, username string) (entities.User, error)
	GetUserByEmail(ctx context.Context, email string) (entities.User, error)
	UpdateUserLocation(ctx context.Context, id string, loc entities.UserLocation) (entities.User, error)
	UpdateUserBilling(ctx context.Context, id, customerID, subscriptionID string) (entities.User, error)
}

type RegisterUserInput struct {
	Username       string
	Email          string
	HashedPassword string
}

type userService struct {
	logger *slog.Logger
	users  UserRepo
}

func NewUserService(logger *slog.Logger, users UserRepo) *userService {
	return &userService{
		logger: logger.With(slog.String("service", "user")),
		users:  users,
	}
}

func (s *userService) RegisterUser(ctx context.Context, in RegisterUserInput) (entities.User, error) {
	switch {
	case in.Username == "":
		return entities.User{}, fmt.Errorf("%w: username is required", entities.ErrValidation)
	case in.Email == "":
		return entities.User{}, fmt.Errorf("%w: email is required", entities.ErrValidation)
	case in.HashedPassword == "":
		return entities.User{}, fmt.Errorf("%w: credentials are required", entities.ErrValidation)
	}

	if err := s.ensureUnique(ctx, in.Username, in.Email); err != nil {
		return entities.User{}, err
	}

	user, err := s.users.CreateUser(ctx, entities.User{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: in.HashedPassword,
	})
	if err != nil {
		return entities.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.DebugContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

func (s *userService) ensureUnique(ctx context.Context, username, email string) error {
	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return fmt.Errorf("%w: username %s is taken", entities.ErrValidation, username)
	}
	if !errors.Is(err, entities.ErrUserNotFound) {
		return fmt.Errorf("failed to check username: %w", err)
	}

	_, err = s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return fmt.Errorf("%w: email %s is taken", entities.ErrValidation, email)
	}
	if !errors.Is(err, entities.ErrUserNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}
	return nil
}

func (s *userService) GetUser(ctx context.Context, id string) (entities.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *userService) ReportUserLocation(ctx context.Context, id string, loc entities.UserLocation) (entities.User, error) {
	return s.users.UpdateUserLocation(ctx, id, loc)
}

// SetBillingRefs stores the opaque handles the payment collaborator owns.
func (s *userService) SetBillingRefs(ctx context.Context, id, customerID, subscriptionID string) (entities.User, error) {
	return s.users.UpdateUserBilling(ctx, id, customerID, subscriptionID)
}
