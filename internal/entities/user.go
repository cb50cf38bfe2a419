package entities

import "time"

// UserLocation is the last position a user reported, accuracy in meters.
type UserLocation struct {
	Lat      float64
	Lng      float64
	Address  string
	Accuracy float64
}

type User struct {
	ID       string
	Username string
	Email    string

	// HashedPassword is opaque to this service. Hashing and verification
	// belong to the auth collaborator.
	HashedPassword string

	// Billing references are opaque handles owned by the payment
	// collaborator. They are stored here only for referential integrity.
	BillingCustomerID     string
	BillingSubscriptionID string

	Location  *UserLocation
	CreatedAt time.Time
}
