package repo

import (
	"database/sql"
	"time"

	"github.com/courierly/dispatch-service/internal/entities"
)

type Delivery struct {
	ID                  string         `db:"id"`
	UserID              string         `db:"user_id"`
	DriverID            sql.NullString `db:"driver_id"`
	PickupLat           float64        `db:"pickup_lat"`
	PickupLng           float64        `db:"pickup_lng"`
	PickupAddress       string         `db:"pickup_address"`
	DropoffLat          float64        `db:"dropoff_lat"`
	DropoffLng          float64        `db:"dropoff_lng"`
	DropoffAddress      string         `db:"dropoff_address"`
	ItemDescription     string         `db:"item_description"`
	PackageSize         string         `db:"package_size"`
	Urgency             string         `db:"urgency"`
	SpecialInstructions sql.NullString `db:"special_instructions"`
	Status              string         `db:"status"`
	DeliveryFee         float64        `db:"delivery_fee"`
	ServiceFee          float64        `db:"service_fee"`
	TotalAmount         float64        `db:"total_amount"`
	EstimatedDelivery   sql.NullTime   `db:"estimated_delivery_time"`
	ActualDelivery      sql.NullTime   `db:"actual_delivery_time"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

type Driver struct {
	ID         string          `db:"id"`
	Name       string          `db:"name"`
	Phone      string          `db:"phone"`
	Rating     float64         `db:"rating"`
	CurrentLat sql.NullFloat64 `db:"current_lat"`
	CurrentLng sql.NullFloat64 `db:"current_lng"`
	IsActive   bool            `db:"is_active"`
	CreatedAt  time.Time       `db:"created_at"`
}

type User struct {
	ID               string          `db:"id"`
	Username         string          `db:"username"`
	Email            string          `db:"email"`
	HashedPassword   string          `db:"hashed_password"`
	BillingCustomer  sql.NullString  `db:"billing_customer_id"`
	BillingSub       sql.NullString  `db:"billing_subscription_id"`
	LocationLat      sql.NullFloat64 `db:"location_lat"`
	LocationLng      sql.NullFloat64 `db:"location_lng"`
	LocationAddress  sql.NullString  `db:"location_address"`
	LocationAccuracy sql.NullFloat64 `db:"location_accuracy"`
	CreatedAt        time.Time       `db:"created_at"`
}

func DeliveryToEntity(d Delivery) entities.Delivery {
	return entities.Delivery{
		ID:       d.ID,
		UserID:   d.UserID,
		DriverID: nullStringToString(d.DriverID),
		Pickup: entities.Location{
			Lat:     d.PickupLat,
			Lng:     d.PickupLng,
			Address: d.PickupAddress,
		},
		Dropoff: entities.Location{
			Lat:     d.DropoffLat,
			Lng:     d.DropoffLng,
			Address: d.DropoffAddress,
		},
		ItemDescription:       d.ItemDescription,
		PackageSize:           entities.PackageSize(d.PackageSize),
		Urgency:               entities.Urgency(d.Urgency),
		SpecialInstructions:   nullStringToString(d.SpecialInstructions),
		Status:                entities.DeliveryStatus(d.Status),
		DeliveryFee:           d.DeliveryFee,
		ServiceFee:            d.ServiceFee,
		TotalAmount:           d.TotalAmount,
		EstimatedDeliveryTime: nullTimeToTime(d.EstimatedDelivery),
		ActualDeliveryTime:    nullTimeToTime(d.ActualDelivery),
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

func DriverToEntity(d Driver) entities.Driver {
	driver := entities.Driver{
		ID:        d.ID,
		Name:      d.Name,
		Phone:     d.Phone,
		Rating:    d.Rating,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
	}
	if d.CurrentLat.Valid && d.CurrentLng.Valid {
		driver.Location = &entities.GeoPoint{Lat: d.CurrentLat.Float64, Lng: d.CurrentLng.Float64}
	}
	return driver
}

func UserToEntity(u User) entities.User {
	user := entities.User{
		ID:                    u.ID,
		Username:              u.Username,
		Email:                 u.Email,
		HashedPassword:        u.HashedPassword,
		BillingCustomerID:     nullStringToString(u.BillingCustomer),
		BillingSubscriptionID: nullStringToString(u.BillingSub),
		CreatedAt:             u.CreatedAt,
	}
	if u.LocationLat.Valid && u.LocationLng.Valid {
		user.Location = &entities.UserLocation{
			Lat:      u.LocationLat.Float64,
			Lng:      u.LocationLng.Float64,
			Address:  nullStringToString(u.LocationAddress),
			Accuracy: u.LocationAccuracy.Float64,
		}
	}
	return user
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullTimeToTime(nt sql.NullTime) time.Time {
	if nt.Valid {
		return nt.Time
	}
	return time.Time{}
}
