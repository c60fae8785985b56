// Package services holds the account lifecycle: signup, OTP verification,
// OTP resend and login.
//
// A user moves from unverified to unverified with a pending OTP on signup
// or resend, and to verified on a matching, unexpired OTP. Nothing moves a
// user out of verified.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"otp-auth/internal/lock"
	"otp-auth/internal/logging"
	"otp-auth/internal/models"
	"otp-auth/internal/store"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type CodeGenerator interface {
	Generate() (code string, expiry time.Time, err error)
}

type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
}

type TokenIssuer interface {
	Issue(userID, email string) (string, time.Time, error)
}

type SignupResult struct {
	UserID    string
	Email     string
	OTPExpiry time.Time
}

type LoginResult struct {
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	users    store.UserStore
	hasher   PasswordHasher
	codes    CodeGenerator
	notifier Notifier
	tokens   TokenIssuer

	locker           lock.Locker
	log              logging.Logger
	now              func() time.Time
	mailFailureFatal bool
}

type Option func(*AuthService)

// WithLocker serializes Signup, VerifyOTP and ResendOTP per email.
func WithLocker(l lock.Locker) Option { return func(s *AuthService) { s.locker = l } }

func WithLogger(l logging.Logger) Option { return func(s *AuthService) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *AuthService) { s.now = now } }

// WithMailFailureFatal makes a failed OTP delivery fail the request. By
// default the failure is logged and the request still succeeds.
func WithMailFailureFatal(fatal bool) Option {
	return func(s *AuthService) { s.mailFailureFatal = fatal }
}

func NewAuthService(
	users store.UserStore,
	hasher PasswordHasher,
	codes CodeGenerator,
	notifier Notifier,
	tokens TokenIssuer,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		users:    users,
		hasher:   hasher,
		codes:    codes,
		notifier: notifier,
		tokens:   tokens,
		locker:   lock.Nop{},
		log:      logging.Nop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "auth_service")
	return s
}

// Signup creates an unverified account, or resets the name, password and
// OTP of an existing unverified one, then sends the OTP.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*SignupResult, error) {
	in := signupInput{
		Name:     strings.TrimSpace(name),
		Email:    models.NormalizeEmail(email),
		Password: password,
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	user, code, expiry, err := s.signupLocked(ctx, in)
	if err != nil {
		return nil, err
	}

	// The per-email lock is already released here.
	if err := s.deliver(ctx, in.Email, code); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "signup accepted", "user_id", user.ID, "email", in.Email)
	return &SignupResult{UserID: user.ID, Email: user.Email, OTPExpiry: expiry}, nil
}

func (s *AuthService) signupLocked(ctx context.Context, in signupInput) (*models.User, string, time.Time, error) {
	release, err := s.locker.Lock(ctx, in.Email)
	if err != nil {
		return nil, "", time.Time{}, serverError(fmt.Errorf("lock %s: %w", in.Email, err))
	}
	defer release()

	existing, err := s.find(ctx, in.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, "", time.Time{}, serverError(err)
	}
	if existing != nil && existing.IsVerified {
		return nil, "", time.Time{}, newError(ErrConflict, MsgAlreadyRegistered)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", time.Time{}, serverError(fmt.Errorf("hash password: %w", err))
	}
	code, expiry, err := s.codes.Generate()
	if err != nil {
		return nil, "", time.Time{}, serverError(err)
	}

	user, err := s.saveSignup(ctx, existing, in.Name, in.Email, hash, code, expiry)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, code, expiry, nil
}

func (s *AuthService) saveSignup(
	ctx context.Context,
	existing *models.User,
	name, email, hash, code string,
	expiry time.Time,
) (*models.User, error) {
	if existing == nil {
		u := &models.User{Name: name, Email: email, PasswordHash: hash}
		u.SetOTP(code, expiry)
		err := s.users.Create(ctx, u)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, store.ErrDuplicateEmail) {
			return nil, serverError(err)
		}
		// A concurrent signup created the record first; take the re-signup path.
		existing, err = s.find(ctx, email)
		if err != nil {
			return nil, serverError(err)
		}
		if existing.IsVerified {
			return nil, newError(ErrConflict, MsgAlreadyRegistered)
		}
	}

	existing.Name = name
	existing.PasswordHash = hash
	existing.SetOTP(code, expiry)
	if err := s.users.Update(ctx, existing); err != nil {
		return nil, serverError(err)
	}
	return existing, nil
}

// VerifyOTP checks code against the pending challenge and, on a match,
// marks the account verified.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	email = models.NormalizeEmail(email)
	if err := (verifyInput{Email: email, OTP: code}).validate(); err != nil {
		return err
	}

	release, err := s.locker.Lock(ctx, email)
	if err != nil {
		return serverError(fmt.Errorf("lock %s: %w", email, err))
	}
	defer release()

	user, err := s.find(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrNotFound, MsgUserNotFound)
	}
	if err != nil {
		return serverError(err)
	}

	if user.IsVerified {
		return newError(ErrConflict, MsgAlreadyVerified)
	}
	if !user.HasPendingOTP() {
		return newError(ErrState, MsgNoOTP)
	}
	// The expiry instant itself is still valid.
	if s.now().After(*user.OTPExpiry) {
		return newError(ErrExpired, MsgOTPExpired)
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(*user.OTPCode)) != 1 {
		s.log.Debug(ctx, "otp mismatch", "user_id", user.ID)
		return newError(ErrInvalidCredentials, MsgInvalidOTP)
	}

	user.MarkVerified()
	if err := s.users.Update(ctx, user); err != nil {
		return serverError(err)
	}

	s.log.Info(ctx, "account verified", "user_id", user.ID)
	return nil
}

// ResendOTP replaces any outstanding challenge with a fresh one.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	if err := (resendInput{Email: email}).validate(); err != nil {
		return err
	}

	user, code, err := s.resendLocked(ctx, email)
	if err != nil {
		return err
	}

	if err := s.deliver(ctx, email, code); err != nil {
		return err
	}

	s.log.Info(ctx, "otp resent", "user_id", user.ID)
	return nil
}

func (s *AuthService) resendLocked(ctx context.Context, email string) (*models.User, string, error) {
	release, err := s.locker.Lock(ctx, email)
	if err != nil {
		return nil, "", serverError(fmt.Errorf("lock %s: %w", email, err))
	}
	defer release()

	user, err := s.find(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", newError(ErrNotFound, MsgResendNotFound)
	}
	if err != nil {
		return nil, "", serverError(err)
	}
	if user.IsVerified {
		return nil, "", newError(ErrConflict, MsgResendVerified)
	}

	code, expiry, err := s.codes.Generate()
	if err != nil {
		return nil, "", serverError(err)
	}
	user.SetOTP(code, expiry)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, "", serverError(err)
	}
	return user, code, nil
}

// Login issues a session token for a verified account. An unknown email and
// a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = models.NormalizeEmail(email)
	if err := (loginInput{Email: email, Password: password}).validate(); err != nil {
		return nil, err
	}

	user, err := s.find(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrInvalidCredentials, MsgInvalidLogin)
	}
	if err != nil {
		return nil, serverError(err)
	}

	if !user.IsVerified {
		return nil, newError(ErrUnverified, MsgNotVerified)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, newError(ErrInvalidCredentials, MsgInvalidLogin)
	}

	tok, exp, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, serverError(err)
	}

	s.log.Info(ctx, "login succeeded", "user_id", user.ID)
	return &LoginResult{UserID: user.ID, Email: user.Email, Token: tok, ExpiresAt: exp}, nil
}

// Profile returns the account for an authenticated email.
func (s *AuthService) Profile(ctx context.Context, email string) (*models.User, error) {
	user, err := s.find(ctx, models.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, MsgUserNotFound)
	}
	if err != nil {
		return nil, serverError(err)
	}
	return user, nil
}

func (s *AuthService) find(ctx context.Context, email string) (*models.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// deliver runs after the record is persisted, so a delivery failure never
// hides a store failure.
func (s *AuthService) deliver(ctx context.Context, email, code string) error {
	err := s.notifier.SendOTP(ctx, email, code)
	if err == nil {
		return nil
	}
	if s.mailFailureFatal {
		return serverError(err)
	}
	s.log.Warn(ctx, "otp delivery failed", "email", email, "error", err)
	return nil
}
