package handler

import (
	"time"

	"github.com/courierly/dispatch-service/internal/entities"
)

type LocationJSON struct {
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
	Address string  `json:"address" validate:"required"`
}

type CreateDeliveryRequest struct {
	UserID              string       `json:"userId" validate:"required"`
	PickupLocation      LocationJSON `json:"pickupLocation" validate:"required"`
	DeliveryLocation    LocationJSON `json:"deliveryLocation" validate:"required"`
	ItemDescription     string       `json:"itemDescription" validate:"required"`
	PackageSize         string       `json:"packageSize" validate:"required,oneof=small medium large xlarge"`
	Urgency             string       `json:"urgency" validate:"required,oneof=express standard economy"`
	SpecialInstructions string       `json:"specialInstructions"`
}

type UpdateStatusRequest struct {
	Status   string `json:"status" validate:"required"`
	DriverID string `json:"driverId"`
}

type DeliveryResponse struct {
	ID                    string          `json:"id"`
	UserID                string          `json:"userId"`
	DriverID              string          `json:"driverId,omitempty"`
	PickupLocation        LocationJSON    `json:"pickupLocation"`
	DeliveryLocation      LocationJSON    `json:"deliveryLocation"`
	ItemDescription       string          `json:"itemDescription"`
	PackageSize           string          `json:"packageSize"`
	Urgency               string          `json:"urgency"`
	SpecialInstructions   string          `json:"specialInstructions,omitempty"`
	Status                string          `json:"status"`
	DeliveryFee           float64         `json:"deliveryFee"`
	ServiceFee            float64         `json:"serviceFee"`
	TotalAmount           float64         `json:"totalAmount"`
	EstimatedDeliveryTime *time.Time      `json:"estimatedDeliveryTime,omitempty"`
	ActualDeliveryTime    *time.Time      `json:"actualDeliveryTime,omitempty"`
	Driver                *DriverResponse `json:"driver,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

type RegisterDriverRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required,e164"`
}

type GeoPointJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type DriverResponse struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Phone           string        `json:"phone"`
	Rating          float64       `json:"rating"`
	CurrentLocation *GeoPointJSON `json:"currentLocation,omitempty"`
	IsActive        bool          `json:"isActive"`
	CreatedAt       time.Time     `json:"createdAt"`
}

type RegisterUserRequest struct {
	Username       string `json:"username" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	HashedPassword string `json:"hashedPassword" validate:"required"`
}

type UpdateUserLocationRequest struct {
	Lat      float64 `json:"lat" validate:"latitude"`
	Lng      float64 `json:"lng" validate:"longitude"`
	Address  string  `json:"address" validate:"required"`
	Accuracy float64 `json:"accuracy" validate:"gte=0"`
}

type UpdateBillingRequest struct {
	CustomerID     string `json:"customerId" validate:"required"`
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

type UserLocationJSON struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Address  string  `json:"address"`
	Accuracy float64 `json:"accuracy,omitempty"`
}

// UserResponse deliberately omits credentials and billing handles.
type UserResponse struct {
	ID        string            `json:"id"`
	Username  string            `json:"username"`
	Email     string            `json:"email"`
	Location  *UserLocationJSON `json:"location,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func locationToJSON(loc entities.Location) LocationJSON {
	return LocationJSON{Lat: loc.Lat, Lng: loc.Lng, Address: loc.Address}
}

func locationFromJSON(loc LocationJSON) entities.Location {
	return entities.Location{Lat: loc.Lat, Lng: loc.Lng, Address: loc.Address}
}

func deliveryToResponse(d entities.Delivery) DeliveryResponse {
	res := DeliveryResponse{
		ID:                  d.ID,
		UserID:              d.UserID,
		DriverID:            d.DriverID,
		PickupLocation:      locationToJSON(d.Pickup),
		DeliveryLocation:    locationToJSON(d.Dropoff),
		ItemDescription:     d.ItemDescription,
		PackageSize:         string(d.PackageSize),
		Urgency:             string(d.Urgency),
		SpecialInstructions: d.SpecialInstructions,
		Status:              string(d.Status),
		DeliveryFee:         d.DeliveryFee,
		ServiceFee:          d.ServiceFee,
		TotalAmount:         d.TotalAmount,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	if !d.EstimatedDeliveryTime.IsZero() {
		eta := d.EstimatedDeliveryTime
		res.EstimatedDeliveryTime = &eta
	}
	if !d.ActualDeliveryTime.IsZero() {
		actual := d.ActualDeliveryTime
		res.ActualDeliveryTime = &actual
	}
	return res
}

func driverToResponse(d entities.Driver) DriverResponse {
	res := DriverResponse{
		ID:        d.ID,
		Name:      d.Name,
		Phone:     d.Phone,
		Rating:    d.Rating,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
	}
	if d.Location != nil {
		res.CurrentLocation = &GeoPointJSON{Lat: d.Location.Lat, Lng: d.Location.Lng}
	}
	return res
}

func userToResponse(u entities.User) UserResponse {
	res := UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
	if u.Location != nil {
		res.Location = &UserLocationJSON{
			Lat:      u.Location.Lat,
			Lng:      u.Location.Lng,
			Address:  u.Location.Address,
			Accuracy: u.Location.Accuracy,
		}
	}
	return res
}
