package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"greengate/entity"
)

// SubscriberRepository interface defines subscriber account data operations
type SubscriberRepository interface {
	Create(subscriber *entity.Subscriber) (*entity.Subscriber, error)
	GetByID(id int) (*entity.Subscriber, error)
	GetByPhoneNumber(phoneNumber string) (*entity.Subscriber, error)
	UpdateLastLogin(phoneNumber string) error
}

// subscriberRepository implements SubscriberRepository interface
type subscriberRepository struct {
	db *sqlx.DB
}

// NewSubscriberRepository creates a new subscriber repository instance
func NewSubscriberRepository(db *sqlx.DB) SubscriberRepository {
	return &subscriberRepository{
		db: db,
	}
}

// Create creates a new subscriber. The unique index on phone_number is
// the last line of defense against duplicate accounts.
func (r *subscriberRepository) Create(subscriber *entity.Subscriber) (*entity.Subscriber, error) {
	query := `
		INSERT INTO subscribers
			(first_name, last_name, phone_number, email, national_id_enc, birth_date, role,
			 registered_at, last_login_at, is_active)
		VALUES
			(:first_name, :last_name, :phone_number, :email, :national_id_enc, :birth_date, :role,
			 :registered_at, :last_login_at, :is_active)
		RETURNING id, first_name, last_name, phone_number, email, national_id_enc, birth_date, role,
			registered_at, last_login_at, is_active
	`

	now := time.Now()
	subscriber.RegisteredAt = now
	subscriber.LastLoginAt = &now
	subscriber.IsActive = true

	rows, err := r.db.NamedQuery(query, subscriber)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("failed to get created subscriber")
	}

	var created entity.Subscriber
	if err := rows.StructScan(&created); err != nil {
		return nil, fmt.Errorf("failed to scan created subscriber: %w", err)
	}

	return &created, nil
}

// GetByID retrieves a subscriber by ID
func (r *subscriberRepository) GetByID(id int) (*entity.Subscriber, error) {
	query := `
		SELECT id, first_name, last_name, phone_number, email, national_id_enc, birth_date, role,
			registered_at, last_login_at, is_active
		FROM subscribers
		WHERE id = $1 AND is_active = TRUE
	`

	var subscriber entity.Subscriber
	err := r.db.Get(&subscriber, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscriber by id: %w", err)
	}

	return &subscriber, nil
}

// GetByPhoneNumber retrieves a subscriber by phone number
func (r *subscriberRepository) GetByPhoneNumber(phoneNumber string) (*entity.Subscriber, error) {
	query := `
		SELECT id, first_name, last_name, phone_number, email, national_id_enc, birth_date, role,
			registered_at, last_login_at, is_active
		FROM subscribers
		WHERE phone_number = $1 AND is_active = TRUE
	`

	var subscriber entity.Subscriber
	err := r.db.Get(&subscriber, query, phoneNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscriber by phone number: %w", err)
	}

	return &subscriber, nil
}

// UpdateLastLogin updates the last login timestamp for a subscriber
func (r *subscriberRepository) UpdateLastLogin(phoneNumber string) error {
	query := `
		UPDATE subscribers
		SET last_login_at = CURRENT_TIMESTAMP
		WHERE phone_number = $1 AND is_active = TRUE
	`

	result, err := r.db.Exec(query, phoneNumber)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("subscriber not found or inactive")
	}

	return nil
}
