package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// State is the verification lifecycle position of a User.
type State string

const (
	StateUnverified        State = "unverified"
	StateUnverifiedPending State = "unverified_pending_otp"
	StateVerified          State = "verified"
)

type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"column:password;not null" json:"-"`

	// OTPCode and OTPExpiry are set and cleared together.
	OTPCode    *string    `gorm:"column:otp" json:"-"`
	OTPExpiry  *time.Time `gorm:"column:otp_expiry" json:"-"`
	IsVerified bool       `gorm:"not null" json:"isVerified"`
}

// BeforeCreate assigns the opaque id.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (u *User) State() State {
	switch {
	case u.IsVerified:
		return StateVerified
	case u.HasPendingOTP():
		return StateUnverifiedPending
	default:
		return StateUnverified
	}
}

func (u *User) HasPendingOTP() bool {
	return u.OTPCode != nil && *u.OTPCode != "" && u.OTPExpiry != nil
}

// SetOTP opens a verification challenge.
func (u *User) SetOTP(code string, expiry time.Time) {
	u.OTPCode = &code
	u.OTPExpiry = &expiry
}

func (u *User) ClearOTP() {
	u.OTPCode = nil
	u.OTPExpiry = nil
}

// MarkVerified is the terminal transition.
func (u *User) MarkVerified() {
	u.IsVerified = true
	u.ClearOTP()
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	c := *u
	if u.OTPCode != nil {
		code := *u.OTPCode
		c.OTPCode = &code
	}
	if u.OTPExpiry != nil {
		exp := *u.OTPExpiry
		c.OTPExpiry = &exp
	}
	return &c
}

// NormalizeEmail lower-cases and trims an address; it is the lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
