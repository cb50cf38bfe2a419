package entities

import "time"

type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusAssigned  DeliveryStatus = "assigned"
	StatusPickingUp DeliveryStatus = "picking_up"
	StatusEnRoute   DeliveryStatus = "en_route"
	StatusDelivered DeliveryStatus = "delivered"
	StatusCancelled DeliveryStatus = "cancelled"
)

// lifecycleNext maps each status to the only status that may follow it on
// the happy path. Cancellation is handled separately: it is reachable from
// any non-terminal status.
var lifecycleNext = map[DeliveryStatus]DeliveryStatus{
	StatusPending:   StatusAssigned,
	StatusAssigned:  StatusPickingUp,
	StatusPickingUp: StatusEnRoute,
	StatusEnRoute:   StatusDelivered,
}

func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusPickingUp, StatusEnRoute, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s DeliveryStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether next directly follows s in the delivery
// lifecycle. Skipping steps (e.g. pending -> en_route) is not allowed.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if next == StatusCancelled {
		return !s.Terminal()
	}
	return lifecycleNext[s] == next
}

type PackageSize string

const (
	SizeSmall  PackageSize = "small"
	SizeMedium PackageSize = "medium"
	SizeLarge  PackageSize = "large"
	SizeXLarge PackageSize = "xlarge"
)

func (p PackageSize) Valid() bool {
	switch p {
	case SizeSmall, SizeMedium, SizeLarge, SizeXLarge:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyExpress  Urgency = "express"
	UrgencyStandard Urgency = "standard"
	UrgencyEconomy  Urgency = "economy"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyExpress, UrgencyStandard, UrgencyEconomy:
		return true
	}
	return false
}

type Fees struct {
	DeliveryFee float64
	ServiceFee  float64
	TotalAmount float64
}

// feeSchedule fixes the price of each urgency tier. Fees are computed once
// at creation time and stored with the delivery; they are never recomputed
// from this table on later reads.
var feeSchedule = map[Urgency]Fees{
	UrgencyExpress:  {DeliveryFee: 15, ServiceFee: 2.5, TotalAmount: 17.5},
	UrgencyStandard: {DeliveryFee: 10, ServiceFee: 2, TotalAmount: 12},
	UrgencyEconomy:  {DeliveryFee: 7, ServiceFee: 1.5, TotalAmount: 8.5},
}

func FeesForUrgency(u Urgency) (Fees, bool) {
	f, ok := feeSchedule[u]
	return f, ok
}

// Location is a geocoded point with its human-readable address.
type Location struct {
	Lat     float64
	Lng     float64
	Address string
}

type Delivery struct {
	ID                  string
	UserID              string
	DriverID            string // empty until a driver is assigned
	Pickup              Location
	Dropoff             Location
	ItemDescription     string
	PackageSize         PackageSize
	Urgency             Urgency
	SpecialInstructions string
	Status              DeliveryStatus

	DeliveryFee float64
	ServiceFee  float64
	TotalAmount float64

	EstimatedDeliveryTime time.Time // zero until a driver is assigned
	ActualDeliveryTime    time.Time // zero until delivered

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeliveryUpdate describes a status mutation. The repository applies it only
// while the stored status still matches the expected one, so concurrent
// writers cannot both succeed from the same prior state.
type DeliveryUpdate struct {
	Status                DeliveryStatus
	DriverID              string    // keeps the current driver when empty
	EstimatedDeliveryTime time.Time // applied when non-zero
	ActualDeliveryTime    time.Time // applied when non-zero
}
