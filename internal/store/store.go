// Package store persists user records keyed by email.
package store

import (
	"context"
	"errors"

	"otp-auth/internal/models"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserStore is the record store the auth service depends on. Emails passed
// in are already normalized.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
}
