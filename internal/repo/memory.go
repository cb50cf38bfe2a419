package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/courierly/dispatch-service/internal/entities"

	"github.com/google/uuid"
)

// MemoryRepo keeps all records in process memory. It implements the same
// contract as the postgres backend, including the status-precondition check
// on delivery updates, so business code cannot tell the two apart.
type MemoryRepo struct {
	mu         sync.RWMutex
	users      map[string]entities.User
	drivers    map[string]entities.Driver
	deliveries map[string]entities.Delivery
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:      make(map[string]entities.User),
		drivers:    make(map[string]entities.Driver),
		deliveries: make(map[string]entities.Delivery),
	}
}

func (r *MemoryRepo) CreateDelivery(_ context.Context, d entities.Delivery) (entities.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d.ID = uuid.NewString()
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	r.deliveries[d.ID] = d
	return d, nil
}

func (r *MemoryRepo) GetDelivery(_ context.Context, id string) (entities.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.deliveries[id]
	if !ok {
		return entities.Delivery{}, entities.ErrDeliveryNotFound
	}
	return d, nil
}

func (r *MemoryRepo) GetDeliveriesByUser(_ context.Context, userID string) ([]entities.Delivery, error) {
	return r.filterDeliveries(func(d entities.Delivery) bool {
		return d.UserID == userID
	}), nil
}

func (r *MemoryRepo) GetActiveDeliveriesByUser(_ context.Context, userID string) ([]entities.Delivery, error) {
	return r.filterDeliveries(func(d entities.Delivery) bool {
		return d.UserID == userID && !d.Status.Terminal()
	}), nil
}

func (r *MemoryRepo) GetDeliveriesByDriver(_ context.Context, driverID string) ([]entities.Delivery, error) {
	return r.filterDeliveries(func(d entities.Delivery) bool {
		return d.DriverID == driverID
	}), nil
}

func (r *MemoryRepo) filterDeliveries(keep func(entities.Delivery) bool) []entities.Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]entities.Delivery, 0)
	for _, d := range r.deliveries {
		if keep(d) {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (r *MemoryRepo) UpdateDelivery(_ context.Context, id string, expect entities.DeliveryStatus, upd entities.DeliveryUpdate) (entities.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deliveries[id]
	if !ok {
		return entities.Delivery{}, entities.ErrDeliveryNotFound
	}
	if d.Status != expect {
		return entities.Delivery{}, entities.ErrConflict
	}

	d.Status = upd.Status
	if upd.DriverID != "" {
		d.DriverID = upd.DriverID
	}
	if !upd.EstimatedDeliveryTime.IsZero() {
		d.EstimatedDeliveryTime = upd.EstimatedDeliveryTime
	}
	if !upd.ActualDeliveryTime.IsZero() {
		d.ActualDeliveryTime = upd.ActualDeliveryTime
	}
	d.UpdatedAt = time.Now().UTC()

	r.deliveries[id] = d
	return d, nil
}

func (r *MemoryRepo) CreateDriver(_ context.Context, d entities.Driver) (entities.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d.ID = uuid.NewString()
	d.CreatedAt = time.Now().UTC()
	r.drivers[d.ID] = cloneDriver(d)
	return d, nil
}

func (r *MemoryRepo) GetDriver(_ context.Context, id string) (entities.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drivers[id]
	if !ok {
		return entities.Driver{}, entities.ErrDriverNotFound
	}
	return cloneDriver(d), nil
}

func (r *MemoryRepo) GetDriverByPhone(_ context.Context, phone string) (entities.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.drivers {
		if d.Phone == phone {
			return cloneDriver(d), nil
		}
	}
	return entities.Driver{}, entities.ErrDriverNotFound
}

func (r *MemoryRepo) GetActiveDrivers(_ context.Context) ([]entities.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]entities.Driver, 0)
	for _, d := range r.drivers {
		if d.IsActive {
			result = append(result, cloneDriver(d))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryRepo) UpdateDriverLocation(_ context.Context, id string, loc entities.GeoPoint) (entities.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[id]
	if !ok {
		return entities.Driver{}, entities.ErrDriverNotFound
	}
	d.Location = &entities.GeoPoint{Lat: loc.Lat, Lng: loc.Lng}
	r.drivers[id] = d
	return cloneDriver(d), nil
}

func (r *MemoryRepo) DeactivateDriver(_ context.Context, id string) (entities.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[id]
	if !ok {
		return entities.Driver{}, entities.ErrDriverNotFound
	}
	d.IsActive = false
	r.drivers[id] = d
	return cloneDriver(d), nil
}

func (r *MemoryRepo) CreateUser(_ context.Context, u entities.User) (entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	r.users[u.ID] = cloneUser(u)
	return u, nil
}

func (r *MemoryRepo) GetUser(_ context.Context, id string) (entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return entities.User{}, entities.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryRepo) GetUserByUsername(_ context.Context, username string) (entities.User, error) {
	return r.findUser(func(u entities.User) bool { return u.Username == username })
}

func (r *MemoryRepo) GetUserByEmail(_ context.Context, email string) (entities.User, error) {
	return r.findUser(func(u entities.User) bool { return u.Email == email })
}

func (r *MemoryRepo) findUser(match func(entities.User) bool) (entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return entities.User{}, entities.ErrUserNotFound
}

func (r *MemoryRepo) UpdateUserLocation(_ context.Context, id string, loc entities.UserLocation) (entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return entities.User{}, entities.ErrUserNotFound
	}
	u.Location = &entities.UserLocation{Lat: loc.Lat, Lng: loc.Lng, Address: loc.Address, Accuracy: loc.Accuracy}
	r.users[id] = u
	return cloneUser(u), nil
}

func (r *MemoryRepo) UpdateUserBilling(_ context.Context, id, customerID, subscriptionID string) (entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return entities.User{}, entities.ErrUserNotFound
	}
	u.BillingCustomerID = customerID
	u.BillingSubscriptionID = subscriptionID
	r.users[id] = u
	return cloneUser(u), nil
}

// Records with pointer fields are cloned on the way in and out so callers
// never share memory with the store.
func cloneDriver(d entities.Driver) entities.Driver {
	if d.Location != nil {
		loc := *d.Location
		d.Location = &loc
	}
	return d
}

func cloneUser(u entities.User) entities.User {
	if u.Location != nil {
		loc := *u.Location
		u.Location = &loc
	}
	return u
}
