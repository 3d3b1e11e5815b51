package entity

import (
	"time"
)

// Subscriber roles.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

// Subscriber represents a finalized, durable account. It is created only
// by the finalize step, after identity, age, and phone possession checks
// all hold.
type Subscriber struct {
	ID            int        `db:"id" json:"id"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	PhoneNumber   string     `db:"phone_number" json:"phone_number"`
	Email         *string    `db:"email" json:"email"`
	NationalIDEnc string     `db:"national_id_enc" json:"-"`
	BirthDate     time.Time  `db:"birth_date" json:"birth_date"`
	Role          string     `db:"role" json:"role"`
	RegisteredAt  time.Time  `db:"registered_at" json:"registered_at"`
	LastLoginAt   *time.Time `db:"last_login_at" json:"last_login_at"`
	IsActive      bool       `db:"is_active" json:"is_active"`
}

// TableName returns the table name for the Subscriber entity.
func (Subscriber) TableName() string {
	return "subscribers"
}

// SubscriberResponse represents the subscriber fields safe to return to
// clients. The national ID never leaves the service.
type SubscriberResponse struct {
	ID           int        `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	PhoneNumber  string     `json:"phone_number"`
	Email        *string    `json:"email"`
	Role         string     `json:"role"`
	RegisteredAt time.Time  `json:"registered_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

// ToResponse converts a Subscriber to its API representation.
func (s *Subscriber) ToResponse() *SubscriberResponse {
	return &SubscriberResponse{
		ID:           s.ID,
		FirstName:    s.FirstName,
		LastName:     s.LastName,
		PhoneNumber:  s.PhoneNumber,
		Email:        s.Email,
		Role:         s.Role,
		RegisteredAt: s.RegisteredAt,
		LastLoginAt:  s.LastLoginAt,
	}
}
