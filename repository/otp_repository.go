package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"greengate/entity"
)

// ErrTokenConsumed reports that a conditional token update matched no
// row: the token is gone or was consumed by a concurrent issue or verify.
var ErrTokenConsumed = errors.New("OTP token not found or already consumed")

// OTPRepository interface defines OTP token data operations.
//
// Verification mutations (IncrementAttempts, MarkConsumed, Invalidate)
// are conditional single-row updates guarded by consumed = FALSE, so a
// concurrent issue or a duplicate verify loses the race cleanly instead
// of resurrecting a superseded token.
type OTPRepository interface {
	IssueReplacing(otp *entity.OTPToken) (*entity.OTPToken, error)
	GetActive(phoneNumber string, purpose entity.OTPPurpose) (*entity.OTPToken, error)
	IncrementAttempts(id int) (int, error)
	MarkConsumed(id int) error
	Invalidate(id int) error
	DeleteExpired() (int64, error)
}

// otpRepository implements OTPRepository interface
type otpRepository struct {
	db *sqlx.DB
}

// NewOTPRepository creates a new OTP repository instance
func NewOTPRepository(db *sqlx.DB) OTPRepository {
	return &otpRepository{
		db: db,
	}
}

// IssueReplacing invalidates any live token for (phone, purpose) and
// inserts the new one in a single transaction, so issue-racing-verify
// always observes either the old token or the new one, never both.
func (r *otpRepository) IssueReplacing(otp *entity.OTPToken) (*entity.OTPToken, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	invalidate := `
		UPDATE otp_tokens
		SET consumed = TRUE, consumed_at = CURRENT_TIMESTAMP
		WHERE phone_number = $1 AND purpose = $2 AND consumed = FALSE
	`
	if _, err := tx.Exec(invalidate, otp.PhoneNumber, otp.Purpose); err != nil {
		return nil, fmt.Errorf("failed to invalidate prior tokens: %w", err)
	}

	insert := `
		INSERT INTO otp_tokens (phone_number, purpose, code, attempts_used, consumed, created_at, expires_at)
		VALUES (:phone_number, :purpose, :code, :attempts_used, :consumed, :created_at, :expires_at)
		RETURNING id, phone_number, purpose, code, attempts_used, consumed, created_at, expires_at, consumed_at
	`

	otp.CreatedAt = time.Now()
	otp.AttemptsUsed = 0
	otp.Consumed = false

	rows, err := tx.NamedQuery(insert, otp)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTP token: %w", err)
	}

	if !rows.Next() {
		rows.Close()
		return nil, fmt.Errorf("failed to get created OTP token")
	}

	var created entity.OTPToken
	if err := rows.StructScan(&created); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to scan created OTP token: %w", err)
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &created, nil
}

// GetActive retrieves the latest unconsumed token for (phone, purpose).
// Expiry and attempt caps are decided by the caller, which needs to tell
// those cases apart.
func (r *otpRepository) GetActive(phoneNumber string, purpose entity.OTPPurpose) (*entity.OTPToken, error) {
	query := `
		SELECT id, phone_number, purpose, code, attempts_used, consumed, created_at, expires_at, consumed_at
		FROM otp_tokens
		WHERE phone_number = $1 AND purpose = $2 AND consumed = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`

	var otp entity.OTPToken
	err := r.db.Get(&otp, query, phoneNumber, purpose)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get OTP token: %w", err)
	}

	return &otp, nil
}

// IncrementAttempts records a failed verify and returns the new count.
func (r *otpRepository) IncrementAttempts(id int) (int, error) {
	query := `
		UPDATE otp_tokens
		SET attempts_used = attempts_used + 1
		WHERE id = $1 AND consumed = FALSE
		RETURNING attempts_used
	`

	var attempts int
	err := r.db.Get(&attempts, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrTokenConsumed
		}
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}

	return attempts, nil
}

// MarkConsumed marks a token consumed on successful verification. The
// consumed = FALSE guard makes this a one-shot claim: a replay or a
// concurrent verify of the same code fails here.
func (r *otpRepository) MarkConsumed(id int) error {
	query := `
		UPDATE otp_tokens
		SET consumed = TRUE, consumed_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND consumed = FALSE
	`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to mark OTP token consumed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTokenConsumed
	}

	return nil
}

// Invalidate kills a token that hit its attempt cap; a fresh issue is
// required afterwards.
func (r *otpRepository) Invalidate(id int) error {
	query := `
		UPDATE otp_tokens
		SET consumed = TRUE, consumed_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND consumed = FALSE
	`

	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to invalidate OTP token: %w", err)
	}

	return nil
}

// DeleteExpired deletes expired OTP tokens.
func (r *otpRepository) DeleteExpired() (int64, error) {
	query := `DELETE FROM otp_tokens WHERE expires_at < CURRENT_TIMESTAMP`

	result, err := r.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired OTP tokens: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}
