package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/courierly/dispatch-service/internal/entities"
	"github.com/courierly/dispatch-service/pkg/trm"
)

// deliveryPromise is the fixed operational SLA stamped on every assignment.
// It is deliberately independent of the urgency tier, which only affects
// price.
const deliveryPromise = 11 * time.Minute

type DeliveryRepo interface {
	CreateDelivery(ctx context.Context, delivery entities.Delivery) (entities.Delivery, error)
	GetDelivery(ctx context.Context, id string) (entities.Delivery, error)
	GetDeliveriesByUser(ctx context.Context, userID string) ([]entities.Delivery, error)
	GetActiveDeliveriesByUser(ctx context.Context, userID string) ([]entities.Delivery, error)
	GetDeliveriesByDriver(ctx context.Context, driverID string) ([]entities.Delivery, error)

	// UpdateDelivery applies upd only while the stored status still equals
	// expect, returning entities.ErrConflict otherwise.
	UpdateDelivery(ctx context.Context, id string, expect entities.DeliveryStatus, upd entities.DeliveryUpdate) (entities.Delivery, error)
}

type DriverRepo interface {
	CreateDriver(ctx context.Context, driver entities.Driver) (entities.Driver, error)
	GetDriver(ctx context.Context, id string) (entities.Driver, error)
	GetDriverByPhone(ctx context.Context, phone string) (entities.Driver, error)
	GetActiveDrivers(ctx context.Context) ([]entities.Driver, error)
	UpdateDriverLocation(ctx context.Context, id string, loc entities.GeoPoint) (entities.Driver, error)
	DeactivateDriver(ctx context.Context, id string) (entities.Driver, error)
}

type Cache interface {
	Get(key string) (entities.Delivery, bool)
	Set(key string, value entities.Delivery)
}

// EventPublisher ships delivery lifecycle events to an external stream.
// Publication is fire-and-forget: failures are the publisher's problem and
// never fail the mutation that produced the event.
type EventPublisher interface {
	DeliveryEvent(ctx context.Context, kind string, delivery entities.Delivery)
}

const (
	EventDeliveryCreated = "delivery_created"
	EventDriverAssigned  = "driver_assigned"
	EventStatusChanged   = "status_changed"
)

type CreateDeliveryInput struct {
	UserID              string
	Pickup              entities.Location
	Dropoff             entities.Location
	ItemDescription     string
	PackageSize         entities.PackageSize
	Urgency             entities.Urgency
	SpecialInstructions string
}

type dispatchService struct {
	logger     *slog.Logger
	txManager  trm.Manager
	deliveries DeliveryRepo
	drivers    DriverRepo
	cache      Cache
	events     EventPublisher
	selectFrom DriverSelector
}

func NewDispatchService(
	logger *slog.Logger,
	txManager trm.Manager,
	deliveries DeliveryRepo,
	drivers DriverRepo,
	cache Cache,
	events EventPublisher,
	selector DriverSelector,
) *dispatchService {
	return &dispatchService{
		logger:     logger.With(slog.String("service", "dispatch")),
		txManager:  txManager,
		deliveries: deliveries,
		drivers:    drivers,
		cache:      cache,
		events:     events,
		selectFrom: selector,
	}
}

// CreateDelivery validates the request, fixes the fee schedule for its
// urgency tier and persists the delivery in the pending state. Driver
// assignment is a separate operation.
func (s *dispatchService) CreateDelivery(ctx context.Context, in CreateDeliveryInput) (entities.Delivery, error) {
	if err := validateCreateInput(in); err != nil {
		return entities.Delivery{}, err
	}

	fees, ok := entities.FeesForUrgency(in.Urgency)
	if !ok {
		return entities.Delivery{}, fmt.Errorf("%w: unknown urgency %q", entities.ErrValidation, in.Urgency)
	}

	delivery := entities.Delivery{
		UserID:              in.UserID,
		Pickup:              in.Pickup,
		Dropoff:             in.Dropoff,
		ItemDescription:     in.ItemDescription,
		PackageSize:         in.PackageSize,
		Urgency:             in.Urgency,
		SpecialInstructions: in.SpecialInstructions,
		Status:              entities.StatusPending,
		DeliveryFee:         fees.DeliveryFee,
		ServiceFee:          fees.ServiceFee,
		TotalAmount:         fees.TotalAmount,
	}

	created, err := s.deliveries.CreateDelivery(ctx, delivery)
	if err != nil {
		return entities.Delivery{}, fmt.Errorf("failed to create delivery: %w", err)
	}

	s.cache.Set(created.ID, created)
	s.events.DeliveryEvent(ctx, EventDeliveryCreated, created)
	s.logger.DebugContext(ctx, "delivery created",
		slog.String("delivery_id", created.ID),
		slog.String("urgency", string(created.Urgency)),
	)
	return created, nil
}

func validateCreateInput(in CreateDeliveryInput) error {
	switch {
	case in.UserID == "":
		return fmt.Errorf("%w: user id is required", entities.ErrValidation)
	case in.Pickup.Address == "":
		return fmt.Errorf("%w: pickup address is required", entities.ErrValidation)
	case in.Dropoff.Address == "":
		return fmt.Errorf("%w: delivery address is required", entities.ErrValidation)
	case in.ItemDescription == "":
		return fmt.Errorf("%w: item description is required", entities.ErrValidation)
	case !in.PackageSize.Valid():
		return fmt.Errorf("%w: unknown package size %q", entities.ErrValidation, in.PackageSize)
	case !in.Urgency.Valid():
		return fmt.Errorf("%w: unknown urgency %q", entities.ErrValidation, in.Urgency)
	}
	return nil
}

// AssignDriver picks an active driver for a pending delivery and commits the
// assignment with a status precondition, so two concurrent assignments of
// the same delivery cannot both succeed. The selected driver may still hold
// other deliveries; nothing reserves a driver exclusively.
func (s *dispatchService) AssignDriver(ctx context.Context, deliveryID string) (entities.Delivery, error) {
	var assigned entities.Delivery
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		delivery, err := s.deliveries.GetDelivery(ctx, deliveryID)
		if err != nil {
			return err
		}
		if delivery.Status != entities.StatusPending {
			return fmt.Errorf("%w: cannot assign a driver to a %s delivery", entities.ErrInvalidTransition, delivery.Status)
		}

		drivers, err := s.drivers.GetActiveDrivers(ctx)
		if err != nil {
			return fmt.Errorf("failed to list active drivers: %w", err)
		}
		if len(drivers) == 0 {
			return entities.ErrNoDriverAvailable
		}

		driver := s.selectFrom(drivers)
		assigned, err = s.deliveries.UpdateDelivery(ctx, deliveryID, entities.StatusPending, entities.DeliveryUpdate{
			Status:                entities.StatusAssigned,
			DriverID:              driver.ID,
			EstimatedDeliveryTime: time.Now().UTC().Add(deliveryPromise),
		})
		return err
	})
	if err != nil {
		return entities.Delivery{}, err
	}

	s.cache.Set(assigned.ID, assigned)
	s.events.DeliveryEvent(ctx, EventDriverAssigned, assigned)
	s.logger.DebugContext(ctx, "driver assigned",
		slog.String("delivery_id", assigned.ID),
		slog.String("driver_id", assigned.DriverID),
	)
	return assigned, nil
}

// UpdateStatus moves a delivery along its lifecycle. driverID is optional
// and only used to reassign explicitly together with the status change.
func (s *dispatchService) UpdateStatus(ctx context.Context, deliveryID string, next entities.DeliveryStatus, driverID string) (entities.Delivery, error) {
	if !next.Valid() {
		return entities.Delivery{}, fmt.Errorf("%w: unknown status %q", entities.ErrValidation, next)
	}

	delivery, err := s.deliveries.GetDelivery(ctx, deliveryID)
	if err != nil {
		return entities.Delivery{}, err
	}
	if !delivery.Status.CanTransitionTo(next) {
		return entities.Delivery{}, fmt.Errorf("%w: %s -> %s", entities.ErrInvalidTransition, delivery.Status, next)
	}

	upd := entities.DeliveryUpdate{Status: next, DriverID: driverID}
	if next == entities.StatusDelivered {
		upd.ActualDeliveryTime = time.Now().UTC()
	}

	updated, err := s.deliveries.UpdateDelivery(ctx, deliveryID, delivery.Status, upd)
	if err != nil {
		return entities.Delivery{}, err
	}

	s.cache.Set(updated.ID, updated)
	s.events.DeliveryEvent(ctx, EventStatusChanged, updated)
	s.logger.DebugContext(ctx, "delivery status updated",
		slog.String("delivery_id", updated.ID),
		slog.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *dispatchService) GetDelivery(ctx context.Context, id string) (entities.Delivery, error) {
	// The engine is the only writer and keeps the cache write-through, so a
	// hit cannot be stale within this process.
	if delivery, ok := s.cache.Get(id); ok {
		return delivery, nil
	}

	delivery, err := s.deliveries.GetDelivery(ctx, id)
	if err != nil {
		return entities.Delivery{}, err
	}
	s.cache.Set(delivery.ID, delivery)
	return delivery, nil
}

func (s *dispatchService) GetDeliveriesByUser(ctx context.Context, userID string) ([]entities.Delivery, error) {
	return s.deliveries.GetDeliveriesByUser(ctx, userID)
}

func (s *dispatchService) GetActiveDeliveriesByUser(ctx context.Context, userID string) ([]entities.Delivery, error) {
	return s.deliveries.GetActiveDeliveriesByUser(ctx, userID)
}

func (s *dispatchService) GetDeliveriesByDriver(ctx context.Context, driverID string) ([]entities.Delivery, error) {
	return s.deliveries.GetDeliveriesByDriver(ctx, driverID)
}
