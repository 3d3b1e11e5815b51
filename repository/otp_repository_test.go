package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greengate/entity"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

func TestIssueReplacingInvalidatesAndInserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOTPRepository(db)

	now := time.Now()
	expiresAt := now.Add(5 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE otp_tokens").
		WithArgs("+27821234567", "LOGIN").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO otp_tokens").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "phone_number", "purpose", "code", "attempts_used",
			"consumed", "created_at", "expires_at", "consumed_at",
		}).AddRow(7, "+27821234567", "LOGIN", "123456", 0, false, now, expiresAt, nil))
	mock.ExpectCommit()

	created, err := repo.IssueReplacing(&entity.OTPToken{
		PhoneNumber: "+27821234567",
		Purpose:     entity.PurposeLogin,
		Code:        "123456",
		ExpiresAt:   expiresAt,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, created.ID)
	assert.False(t, created.Consumed)
	assert.Equal(t, 0, created.AttemptsUsed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveReturnsNilWithoutToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOTPRepository(db)

	mock.ExpectQuery("SELECT id, phone_number").
		WithArgs("+27821234567", "LOGIN").
		WillReturnError(sql.ErrNoRows)

	token, err := repo.GetActive("+27821234567", entity.PurposeLogin)
	require.NoError(t, err)
	assert.Nil(t, token)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementAttemptsReturnsNewCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOTPRepository(db)

	mock.ExpectQuery("UPDATE otp_tokens").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"attempts_used"}).AddRow(2))

	attempts, err := repo.IncrementAttempts(7)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementAttemptsOnConsumedToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOTPRepository(db)

	// The consumed = FALSE guard matched no row.
	mock.ExpectQuery("UPDATE otp_tokens").
		WithArgs(7).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.IncrementAttempts(7)
	require.ErrorIs(t, err, ErrTokenConsumed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkConsumedFailsWhenAlreadyConsumed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOTPRepository(db)

	// The consumed = FALSE guard matched no row.
	mock.ExpectExec("UPDATE otp_tokens").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkConsumed(7)
	require.ErrorIs(t, err, ErrTokenConsumed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpiredReportsCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOTPRepository(db)

	mock.ExpectExec("DELETE FROM otp_tokens").
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	require.NoError(t, mock.ExpectationsWereMet())
}
