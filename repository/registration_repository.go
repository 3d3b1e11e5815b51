package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"greengate/entity"
)

// RegistrationRepository interface defines PendingRegistration data
// operations. Step advancement and finalization are conditional updates
// keyed on the expected current state, so two racing requests cannot
// both advance (or finalize) the same registration.
type RegistrationRepository interface {
	Create(reg *entity.PendingRegistration) (*entity.PendingRegistration, error)
	GetByID(id string) (*entity.PendingRegistration, error)
	SetPersonalInfo(reg *entity.PendingRegistration) error
	AdvanceStep(id string, from, to entity.RegistrationStep) error
	MarkOTPVerified(id string) error
	ClaimFinalize(id string, now time.Time) (bool, error)
	DeleteExpired() (int64, error)
}

// registrationRepository implements RegistrationRepository interface
type registrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository creates a new registration repository instance
func NewRegistrationRepository(db *sqlx.DB) RegistrationRepository {
	return &registrationRepository{
		db: db,
	}
}

// Create creates a new pending registration.
func (r *registrationRepository) Create(reg *entity.PendingRegistration) (*entity.PendingRegistration, error) {
	query := `
		INSERT INTO pending_registrations
			(id, first_name, last_name, phone_number, email, national_id_enc, birth_date,
			 role, otp_purpose, current_step, otp_verified, finalized, created_at, expires_at)
		VALUES
			(:id, :first_name, :last_name, :phone_number, :email, :national_id_enc, :birth_date,
			 :role, :otp_purpose, :current_step, :otp_verified, :finalized, :created_at, :expires_at)
		RETURNING id, first_name, last_name, phone_number, email, national_id_enc, birth_date,
			role, otp_purpose, current_step, otp_verified, otp_verified_at, finalized, created_at, expires_at
	`

	reg.CreatedAt = time.Now()
	reg.OTPVerified = false
	reg.Finalized = false

	rows, err := r.db.NamedQuery(query, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending registration: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("failed to get created pending registration")
	}

	var created entity.PendingRegistration
	if err := rows.StructScan(&created); err != nil {
		return nil, fmt.Errorf("failed to scan created pending registration: %w", err)
	}

	return &created, nil
}

// GetByID retrieves a pending registration by id.
func (r *registrationRepository) GetByID(id string) (*entity.PendingRegistration, error) {
	query := `
		SELECT id, first_name, last_name, phone_number, email, national_id_enc, birth_date,
			role, otp_purpose, current_step, otp_verified, otp_verified_at, finalized, created_at, expires_at
		FROM pending_registrations
		WHERE id = $1
	`

	var reg entity.PendingRegistration
	err := r.db.Get(&reg, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending registration: %w", err)
	}

	return &reg, nil
}

// SetPersonalInfo stores the contact fields submitted at the
// PERSONAL_INFO step and advances to MOBILE_VERIFICATION. Guarded on the
// expected step so an out-of-order or duplicate submission cannot
// overwrite already-validated data.
func (r *registrationRepository) SetPersonalInfo(reg *entity.PendingRegistration) error {
	query := `
		UPDATE pending_registrations
		SET first_name = :first_name, last_name = :last_name, phone_number = :phone_number,
			email = :email, current_step = :current_step
		WHERE id = :id AND current_step = 'PERSONAL_INFO' AND finalized = FALSE
	`

	result, err := r.db.NamedExec(query, reg)
	if err != nil {
		return fmt.Errorf("failed to set personal info: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("pending registration not in expected step")
	}

	return nil
}

// AdvanceStep moves a registration from one step to the next. The
// conditional WHERE makes the transition a compare-and-swap.
func (r *registrationRepository) AdvanceStep(id string, from, to entity.RegistrationStep) error {
	query := `
		UPDATE pending_registrations
		SET current_step = $3
		WHERE id = $1 AND current_step = $2 AND finalized = FALSE
	`

	result, err := r.db.Exec(query, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to advance registration step: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("pending registration not in expected step")
	}

	return nil
}

// MarkOTPVerified records a successful possession proof and advances to
// the TERMS step.
func (r *registrationRepository) MarkOTPVerified(id string) error {
	query := `
		UPDATE pending_registrations
		SET otp_verified = TRUE, otp_verified_at = CURRENT_TIMESTAMP, current_step = 'TERMS'
		WHERE id = $1 AND current_step = 'MOBILE_VERIFICATION' AND finalized = FALSE
	`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to mark OTP verified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("pending registration not in expected step")
	}

	return nil
}

// ClaimFinalize atomically claims the right to finalize. It succeeds for
// exactly one caller: the update only matches an unfinalized,
// OTP-verified, unexpired row. Returns false when the claim was lost;
// the caller reloads the row to report why.
func (r *registrationRepository) ClaimFinalize(id string, now time.Time) (bool, error) {
	query := `
		UPDATE pending_registrations
		SET finalized = TRUE
		WHERE id = $1 AND finalized = FALSE AND otp_verified = TRUE AND expires_at > $2
	`

	result, err := r.db.Exec(query, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim finalize: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// DeleteExpired removes registrations past their TTL. Finalized rows are
// kept until then so a repeat finalize reports already-finalized instead
// of not-found.
func (r *registrationRepository) DeleteExpired() (int64, error) {
	query := `DELETE FROM pending_registrations WHERE expires_at < CURRENT_TIMESTAMP`

	result, err := r.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired registrations: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}
