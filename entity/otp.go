package entity

import (
	"time"
)

// OTPPurpose binds a code to the flow it was issued for. A code issued
// for one purpose never verifies under another.
type OTPPurpose string

const (
	PurposeRegistration           OTPPurpose = "REGISTRATION"
	PurposeLogin                  OTPPurpose = "LOGIN"
	PurposeAdminProxyRegistration OTPPurpose = "ADMIN_PROXY_REGISTRATION"
)

// Valid reports whether p is a known purpose.
func (p OTPPurpose) Valid() bool {
	switch p {
	case PurposeRegistration, PurposeLogin, PurposeAdminProxyRegistration:
		return true
	}
	return false
}

// OTPToken represents a short-lived numeric code bound to a phone number
// and purpose. At most one unconsumed, unexpired token exists per
// (phone, purpose); issuing a new one invalidates prior tokens.
type OTPToken struct {
	ID           int        `db:"id" json:"id"`
	PhoneNumber  string     `db:"phone_number" json:"phone_number"`
	Purpose      OTPPurpose `db:"purpose" json:"purpose"`
	Code         string     `db:"code" json:"-"`
	AttemptsUsed int        `db:"attempts_used" json:"attempts_used"`
	Consumed     bool       `db:"consumed" json:"consumed"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt    time.Time  `db:"expires_at" json:"expires_at"`
	ConsumedAt   *time.Time `db:"consumed_at" json:"consumed_at"`
}

// TableName returns the table name for the OTPToken entity.
func (OTPToken) TableName() string {
	return "otp_tokens"
}

// MessageChannel selects the delivery channel for an OTP message.
type MessageChannel string

const (
	ChannelSMS      MessageChannel = "SMS"
	ChannelWhatsApp MessageChannel = "WHATSAPP"
)

// SendOTPRequest represents the request to send a login OTP.
type SendOTPRequest struct {
	PhoneNumber string         `json:"phone_number" validate:"required,phone_number"`
	Channel     MessageChannel `json:"channel,omitempty"`
}

// VerifyOTPRequest represents the request to verify a login OTP.
type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone_number"`
	Code        string `json:"code" validate:"required,min=4,max=8"`
}

// OTPResponse represents the send-OTP response. Reference is an opaque
// receipt for the issuance, usable in support correlation; it is never
// accepted in place of the code, and the code itself is never part of
// any API response.
type OTPResponse struct {
	Message     string    `json:"message"`
	PhoneNumber string    `json:"phone_number"`
	Reference   string    `json:"reference"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthResponse represents a successful authentication with a session token.
type AuthResponse struct {
	Token      string              `json:"token"`
	Subscriber *SubscriberResponse `json:"subscriber"`
	ExpiresAt  time.Time           `json:"expires_at"`
	Message    string              `json:"message"`
}

// RateLimitResult reports the outcome of a single rate-limit check.
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Limit     int       `json:"limit"`
}
