package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/courierly/dispatch-service/internal/broadcast"
	"github.com/courierly/dispatch-service/internal/entities"
)

const defaultDriverRating = 5.0

// Broadcaster relays accepted position reports to live observers.
type Broadcaster interface {
	Publish(event broadcast.Event)
}

type RegisterDriverInput struct {
	Name  string
	Phone string
}

type driverService struct {
	logger  *slog.Logger
	drivers DriverRepo
	hub     Broadcaster
}

func NewDriverService(logger *slog.Logger, drivers DriverRepo, hub Broadcaster) *driverService {
	return &driverService{
		logger:  logger.With(slog.String("service", "driver")),
		drivers: drivers,
		hub:     hub,
	}
}

func (s *driverService) RegisterDriver(ctx context.Context, in RegisterDriverInput) (entities.Driver, error) {
	if in.Name == "" {
		return entities.Driver{}, fmt.Errorf("%w: driver name is required", entities.ErrValidation)
	}
	if in.Phone == "" {
		return entities.Driver{}, fmt.Errorf("%w: driver phone is required", entities.ErrValidation)
	}

	_, err := s.drivers.GetDriverByPhone(ctx, in.Phone)
	if err == nil {
		return entities.Driver{}, fmt.Errorf("%w: phone %s is already registered", entities.ErrValidation, in.Phone)
	}
	if !errors.Is(err, entities.ErrDriverNotFound) {
		return entities.Driver{}, fmt.Errorf("failed to check driver phone: %w", err)
	}

	driver, err := s.drivers.CreateDriver(ctx, entities.Driver{
		Name:     in.Name,
		Phone:    in.Phone,
		Rating:   defaultDriverRating,
		IsActive: true,
	})
	if err != nil {
		return entities.Driver{}, fmt.Errorf("failed to create driver: %w", err)
	}

	s.logger.DebugContext(ctx, "driver registered", slog.String("driver_id", driver.ID))
	return driver, nil
}

// DeactivateDriver takes a driver out of the assignment pool. The record is
// kept so past deliveries still resolve their driver reference.
func (s *driverService) DeactivateDriver(ctx context.Context, id string) (entities.Driver, error) {
	driver, err := s.drivers.DeactivateDriver(ctx, id)
	if err != nil {
		return entities.Driver{}, err
	}
	s.logger.InfoContext(ctx, "driver deactivated", slog.String("driver_id", driver.ID))
	return driver, nil
}

func (s *driverService) GetDriver(ctx context.Context, id string) (entities.Driver, error) {
	return s.drivers.GetDriver(ctx, id)
}

func (s *driverService) GetActiveDrivers(ctx context.Context) ([]entities.Driver, error) {
	return s.drivers.GetActiveDrivers(ctx)
}

// ReportPosition persists a driver position unconditionally (last write
// wins) and, only after the persist succeeded, forwards the event to the
// broadcast hub. An unknown driver produces no broadcast.
func (s *driverService) ReportPosition(ctx context.Context, driverID string, lat, lng float64) (entities.Driver, error) {
	driver, err := s.drivers.UpdateDriverLocation(ctx, driverID, entities.GeoPoint{Lat: lat, Lng: lng})
	if err != nil {
		return entities.Driver{}, err
	}

	s.hub.Publish(broadcast.Event{DriverID: driverID, Lat: lat, Lng: lng})
	return driver, nil
}
