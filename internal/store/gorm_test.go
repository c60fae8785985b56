package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"

	"otp-auth/internal/db"
	"otp-auth/internal/models"
)

var userColumns = []string{
	"id", "created_at", "updated_at", "name", "email", "password", "otp", "otp_expiry", "is_verified",
}

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := db.Open(postgres.New(postgres.Config{Conn: sqlDB}))
	require.NoError(t, err)
	return NewGormStore(gdb), mock
}

func TestGormStore_FindByEmail(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	exp := now.Add(5 * time.Minute)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", now, now, "Alice", "a@x.com", "hash", "123456", exp, false))

	u, err := s.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "Alice", u.Name)
	require.NotNil(t, u.OTPCode)
	assert.Equal(t, "123456", *u.OTPCode)
	assert.Equal(t, models.StateUnverifiedPending, u.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_FindByEmail_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := s.FindByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Create(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "users"`).WillReturnResult(sqlmock.NewResult(0, 1))

	u := &models.User{Name: "Alice", Email: "a@x.com", PasswordHash: "hash"}
	require.NoError(t, s.Create(context.Background(), u))
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Create_Duplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "users"`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.Create(context.Background(), &models.User{Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestGormStore_Update(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	u := &models.User{ID: "u1", Email: "a@x.com"}
	u.MarkVerified()
	require.NoError(t, s.Update(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Update_NoRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), &models.User{ID: "missing", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}
