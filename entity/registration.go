package entity

import (
	"time"
)

// RegistrationStep enumerates the states of the registration flow.
// CurrentStep on a PendingRegistration holds the next step the flow
// expects; submissions for any other step are rejected.
type RegistrationStep string

const (
	StepIdentity           RegistrationStep = "IDENTITY"
	StepPersonalInfo       RegistrationStep = "PERSONAL_INFO"
	StepMobileVerification RegistrationStep = "MOBILE_VERIFICATION"
	StepTerms              RegistrationStep = "TERMS"
	StepComplete           RegistrationStep = "COMPLETE"
)

// NextStep is the legal transition table. Anything not listed here is an
// illegal transition.
var NextStep = map[RegistrationStep]RegistrationStep{
	StepIdentity:           StepPersonalInfo,
	StepPersonalInfo:       StepMobileVerification,
	StepMobileVerification: StepTerms,
	StepTerms:              StepComplete,
}

// Next returns the step that follows s in the flow, or the empty step
// for a terminal state.
func (s RegistrationStep) Next() RegistrationStep {
	return NextStep[s]
}

// PendingRegistration is a provisional, time-boxed record of an
// in-progress registration. The national ID is stored encrypted; the
// derived birth date is kept in the clear for age checks.
type PendingRegistration struct {
	ID            string           `db:"id" json:"id"`
	FirstName     string           `db:"first_name" json:"first_name"`
	LastName      string           `db:"last_name" json:"last_name"`
	PhoneNumber   string           `db:"phone_number" json:"phone_number"`
	Email         *string          `db:"email" json:"email"`
	NationalIDEnc string           `db:"national_id_enc" json:"-"`
	BirthDate     time.Time        `db:"birth_date" json:"birth_date"`
	Role          string           `db:"role" json:"role"`
	OTPPurpose    OTPPurpose       `db:"otp_purpose" json:"otp_purpose"`
	CurrentStep   RegistrationStep `db:"current_step" json:"current_step"`
	OTPVerified   bool             `db:"otp_verified" json:"otp_verified"`
	OTPVerifiedAt *time.Time       `db:"otp_verified_at" json:"otp_verified_at"`
	Finalized     bool             `db:"finalized" json:"finalized"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	ExpiresAt     time.Time        `db:"expires_at" json:"expires_at"`
}

// TableName returns the table name for the PendingRegistration entity.
func (PendingRegistration) TableName() string {
	return "pending_registrations"
}

// Expired reports whether the registration window has closed.
func (r *PendingRegistration) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IdentityRequest represents the first registration step: the national ID
// number and an explicit age attestation.
type IdentityRequest struct {
	IDNumber    string `json:"id_number" validate:"required,said"`
	AgeAttested bool   `json:"age_attested"`
}

// PersonalInfoRequest represents the second registration step.
type PersonalInfoRequest struct {
	FirstName   string         `json:"first_name" validate:"required,max=100"`
	LastName    string         `json:"last_name" validate:"required,max=100"`
	PhoneNumber string         `json:"phone_number" validate:"required,phone_number"`
	Email       string         `json:"email,omitempty" validate:"omitempty,email"`
	Channel     MessageChannel `json:"channel,omitempty"`
}

// VerifyMobileRequest carries the OTP the subscriber received.
type VerifyMobileRequest struct {
	Code string `json:"code" validate:"required,min=4,max=8"`
}

// ResendCodeRequest optionally picks the channel for a re-issued code.
type ResendCodeRequest struct {
	Channel MessageChannel `json:"channel,omitempty"`
}

// TermsRequest represents the consent step. Both consents are required.
type TermsRequest struct {
	TermsAccepted   bool `json:"terms_accepted"`
	PrivacyAccepted bool `json:"privacy_accepted"`
}

// RegistrationResponse reports the state of a pending registration after
// a step submission.
type RegistrationResponse struct {
	ID          string           `json:"id"`
	CurrentStep RegistrationStep `json:"current_step"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Message     string           `json:"message"`
}

// VerifyMobileResponse reports an OTP verification outcome inside the
// registration flow.
type VerifyMobileResponse struct {
	ID          string           `json:"id"`
	CurrentStep RegistrationStep `json:"current_step"`
	Verified    bool             `json:"verified"`
	Message     string           `json:"message"`
}

// AdminInitiateRequest is the staff-submitted combined payload: identity
// and personal info in one call, on behalf of the customer.
type AdminInitiateRequest struct {
	IDNumber    string         `json:"id_number" validate:"required,said"`
	AgeAttested bool           `json:"age_attested"`
	FirstName   string         `json:"first_name" validate:"required,max=100"`
	LastName    string         `json:"last_name" validate:"required,max=100"`
	PhoneNumber string         `json:"phone_number" validate:"required,phone_number"`
	Email       string         `json:"email,omitempty" validate:"omitempty,email"`
	Channel     MessageChannel `json:"channel,omitempty"`
}

// AdminStatusResponse is the poll contract for the admin-assisted flow.
// It exposes verification status only, never the code.
type AdminStatusResponse struct {
	ID           string           `json:"id"`
	CurrentStep  RegistrationStep `json:"current_step"`
	OTPSent      bool             `json:"otp_sent"`
	OTPVerified  bool             `json:"otp_verified"`
	AttemptsUsed int              `json:"attempts_used"`
	ExpiresAt    time.Time        `json:"expires_at"`
}
