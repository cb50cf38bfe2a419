package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/courierly/dispatch-service/internal/entities"
	"github.com/courierly/dispatch-service/pkg/trm"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var deliveryColumns = []string{
	"id", "user_id", "driver_id",
	"pickup_lat", "pickup_lng", "pickup_address",
	"dropoff_lat", "dropoff_lng", "dropoff_address",
	"item_description", "package_size", "urgency", "special_instructions",
	"status", "delivery_fee", "service_fee", "total_amount",
	"estimated_delivery_time", "actual_delivery_time",
	"created_at", "updated_at",
}

var driverColumns = []string{
	"id", "name", "phone", "rating", "current_lat", "current_lng", "is_active", "created_at",
}

var userColumns = []string{
	"id", "username", "email", "hashed_password",
	"billing_customer_id", "billing_subscription_id",
	"location_lat", "location_lng", "location_address", "location_accuracy",
	"created_at",
}

type postgresRepo struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

func NewPostgresRepo(db *sqlx.DB) *postgresRepo {
	return &postgresRepo{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *postgresRepo) CreateDelivery(ctx context.Context, d entities.Delivery) (entities.Delivery, error) {
	d.ID = uuid.NewString()
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	query, args := r.qb.Insert("deliveries").
		Columns(deliveryColumns...).
		Values(
			d.ID, d.UserID, nullString(d.DriverID),
			d.Pickup.Lat, d.Pickup.Lng, d.Pickup.Address,
			d.Dropoff.Lat, d.Dropoff.Lng, d.Dropoff.Address,
			d.ItemDescription, string(d.PackageSize), string(d.Urgency), nullString(d.SpecialInstructions),
			string(d.Status), d.DeliveryFee, d.ServiceFee, d.TotalAmount,
			nullTime(d.EstimatedDeliveryTime), nullTime(d.ActualDeliveryTime),
			d.CreatedAt, d.UpdatedAt,
		).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return entities.Delivery{}, fmt.Errorf("failed to insert delivery: %w", err)
	}
	return d, nil
}

func (r *postgresRepo) GetDelivery(ctx context.Context, id string) (entities.Delivery, error) {
	query, args := r.qb.Select(deliveryColumns...).
		From("deliveries").
		Where(sq.Eq{"id": id}).
		MustSql()

	var delivery Delivery
	err := r.getContext(ctx, &delivery, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Delivery{}, entities.ErrDeliveryNotFound
	}
	if err != nil {
		return entities.Delivery{}, fmt.Errorf("failed to get delivery: %w", err)
	}
	return DeliveryToEntity(delivery), nil
}

func (r *postgresRepo) GetDeliveriesByUser(ctx context.Context, userID string) ([]entities.Delivery, error) {
	return r.selectDeliveries(ctx, sq.Eq{"user_id": userID})
}

func (r *postgresRepo) GetActiveDeliveriesByUser(ctx context.Context, userID string) ([]entities.Delivery, error) {
	return r.selectDeliveries(ctx, sq.And{
		sq.Eq{"user_id": userID},
		sq.NotEq{"status": []string{string(entities.StatusDelivered), string(entities.StatusCancelled)}},
	})
}

func (r *postgresRepo) GetDeliveriesByDriver(ctx context.Context, driverID string) ([]entities.Delivery, error) {
	return r.selectDeliveries(ctx, sq.Eq{"driver_id": driverID})
}

func (r *postgresRepo) selectDeliveries(ctx context.Context, pred any) ([]entities.Delivery, error) {
	query, args := r.qb.Select(deliveryColumns...).
		From("deliveries").
		Where(pred).
		OrderBy("created_at DESC").
		MustSql()

	var rows []Delivery
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select deliveries: %w", err)
	}

	result := make([]entities.Delivery, 0, len(rows))
	for _, row := range rows {
		result = append(result, DeliveryToEntity(row))
	}
	return result, nil
}

// UpdateDelivery applies upd only while the stored status still equals
// expect. A zero-row update on an existing delivery means another writer
// got there first, which is reported as entities.ErrConflict.
func (r *postgresRepo) UpdateDelivery(ctx context.Context, id string, expect entities.DeliveryStatus, upd entities.DeliveryUpdate) (entities.Delivery, error) {
	q := r.qb.Update("deliveries").
		Set("status", string(upd.Status)).
		Set("updated_at", time.Now().UTC())
	if upd.DriverID != "" {
		q = q.Set("driver_id", upd.DriverID)
	}
	if !upd.EstimatedDeliveryTime.IsZero() {
		q = q.Set("estimated_delivery_time", upd.EstimatedDeliveryTime)
	}
	if !upd.ActualDeliveryTime.IsZero() {
		q = q.Set("actual_delivery_time", upd.ActualDeliveryTime)
	}

	query, args := q.
		Where(sq.Eq{"id": id, "status": string(expect)}).
		Suffix("RETURNING " + strings.Join(deliveryColumns, ", ")).
		MustSql()

	var delivery Delivery
	err := r.getContext(ctx, &delivery, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetDelivery(ctx, id); getErr != nil {
			return entities.Delivery{}, getErr
		}
		return entities.Delivery{}, entities.ErrConflict
	}
	if err != nil {
		return entities.Delivery{}, fmt.Errorf("failed to update delivery: %w", err)
	}
	return DeliveryToEntity(delivery), nil
}

func (r *postgresRepo) CreateDriver(ctx context.Context, d entities.Driver) (entities.Driver, error) {
	d.ID = uuid.NewString()
	d.CreatedAt = time.Now().UTC()

	builder := r.qb.Insert("drivers").
		Columns(driverColumns...)
	if d.Location != nil {
		builder = builder.Values(d.ID, d.Name, d.Phone, d.Rating, d.Location.Lat, d.Location.Lng, d.IsActive, d.CreatedAt)
	} else {
		builder = builder.Values(d.ID, d.Name, d.Phone, d.Rating, nil, nil, d.IsActive, d.CreatedAt)
	}

	query, args := builder.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return entities.Driver{}, fmt.Errorf("failed to insert driver: %w", err)
	}
	return d, nil
}

func (r *postgresRepo) GetDriver(ctx context.Context, id string) (entities.Driver, error) {
	return r.getDriver(ctx, sq.Eq{"id": id})
}

func (r *postgresRepo) GetDriverByPhone(ctx context.Context, phone string) (entities.Driver, error) {
	return r.getDriver(ctx, sq.Eq{"phone": phone})
}

func (r *postgresRepo) getDriver(ctx context.Context, pred any) (entities.Driver, error) {
	query, args := r.qb.Select(driverColumns...).
		From("drivers").
		Where(pred).
		MustSql()

	var driver Driver
	err := r.getContext(ctx, &driver, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Driver{}, entities.ErrDriverNotFound
	}
	if err != nil {
		return entities.Driver{}, fmt.Errorf("failed to get driver: %w", err)
	}
	return DriverToEntity(driver), nil
}

func (r *postgresRepo) GetActiveDrivers(ctx context.Context) ([]entities.Driver, error) {
	query, args := r.qb.Select(driverColumns...).
		From("drivers").
		Where(sq.Eq{"is_active": true}).
		OrderBy("created_at DESC").
		MustSql()

	var rows []Driver
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select active drivers: %w", err)
	}

	result := make([]entities.Driver, 0, len(rows))
	for _, row := range rows {
		result = append(result, DriverToEntity(row))
	}
	return result, nil
}

func (r *postgresRepo) UpdateDriverLocation(ctx context.Context, id string, loc entities.GeoPoint) (entities.Driver, error) {
	query, args := r.qb.Update("drivers").
		Set("current_lat", loc.Lat).
		Set("current_lng", loc.Lng).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(driverColumns, ", ")).
		MustSql()

	var driver Driver
	err := r.getContext(ctx, &driver, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Driver{}, entities.ErrDriverNotFound
	}
	if err != nil {
		return entities.Driver{}, fmt.Errorf("failed to update driver location: %w", err)
	}
	return DriverToEntity(driver), nil
}

func (r *postgresRepo) DeactivateDriver(ctx context.Context, id string) (entities.Driver, error) {
	query, args := r.qb.Update("drivers").
		Set("is_active", false).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(driverColumns, ", ")).
		MustSql()

	var driver Driver
	err := r.getContext(ctx, &driver, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Driver{}, entities.ErrDriverNotFound
	}
	if err != nil {
		return entities.Driver{}, fmt.Errorf("failed to deactivate driver: %w", err)
	}
	return DriverToEntity(driver), nil
}

func (r *postgresRepo) CreateUser(ctx context.Context, u entities.User) (entities.User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()

	query, args := r.qb.Insert("users").
		Columns("id", "username", "email", "hashed_password", "created_at").
		Values(u.ID, u.Username, u.Email, u.HashedPassword, u.CreatedAt).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return entities.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

func (r *postgresRepo) GetUser(ctx context.Context, id string) (entities.User, error) {
	return r.getUser(ctx, sq.Eq{"id": id})
}

func (r *postgresRepo) GetUserByUsername(ctx context.Context, username string) (entities.User, error) {
	return r.getUser(ctx, sq.Eq{"username": username})
}

func (r *postgresRepo) GetUserByEmail(ctx context.Context, email string) (entities.User, error) {
	return r.getUser(ctx, sq.Eq{"email": email})
}

func (r *postgresRepo) getUser(ctx context.Context, pred any) (entities.User, error) {
	query, args := r.qb.Select(userColumns...).
		From("users").
		Where(pred).
		MustSql()

	var user User
	err := r.getContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.User{}, entities.ErrUserNotFound
	}
	if err != nil {
		return entities.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return UserToEntity(user), nil
}

func (r *postgresRepo) UpdateUserLocation(ctx context.Context, id string, loc entities.UserLocation) (entities.User, error) {
	query, args := r.qb.Update("users").
		Set("location_lat", loc.Lat).
		Set("location_lng", loc.Lng).
		Set("location_address", nullString(loc.Address)).
		Set("location_accuracy", loc.Accuracy).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		MustSql()

	var user User
	err := r.getContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.User{}, entities.ErrUserNotFound
	}
	if err != nil {
		return entities.User{}, fmt.Errorf("failed to update user location: %w", err)
	}
	return UserToEntity(user), nil
}

func (r *postgresRepo) UpdateUserBilling(ctx context.Context, id, customerID, subscriptionID string) (entities.User, error) {
	query, args := r.qb.Update("users").
		Set("billing_customer_id", customerID).
		Set("billing_subscription_id", subscriptionID).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		MustSql()

	var user User
	err := r.getContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.User{}, entities.ErrUserNotFound
	}
	if err != nil {
		return entities.User{}, fmt.Errorf("failed to update user billing refs: %w", err)
	}
	return UserToEntity(user), nil
}

func (r *postgresRepo) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return r.db.ExecContext(ctx, query, args...)
}

func (r *postgresRepo) getContext(ctx context.Context, dest any, query string, args ...any) error {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return r.db.GetContext(ctx, dest, query, args...)
}

func (r *postgresRepo) selectContext(ctx context.Context, dest any, query string, args ...any) error {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return r.db.SelectContext(ctx, dest, query, args...)
}
