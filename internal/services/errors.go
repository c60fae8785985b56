package services

import "errors"

// Error kinds. Match with errors.Is; the HTTP layer maps each kind to a
// status code.
var (
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrState              = errors.New("invalid state")
	ErrExpired            = errors.New("expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnverified         = errors.New("unverified")
	ErrServer             = errors.New("server error")
)

// Client-facing messages.
const (
	MsgSignupFieldsRequired = "All fields are required"
	MsgAlreadyRegistered    = "Email is already registered and verified. Please log in."
	MsgVerifyFieldsRequired = "Email and OTP are required"
	MsgUserNotFound         = "User not found"
	MsgAlreadyVerified      = "User is already verified"
	MsgNoOTP                = "No OTP found. Please sign up again or resend OTP."
	MsgOTPExpired           = "OTP has expired. Please request a new one."
	MsgInvalidOTP           = "Invalid OTP"
	MsgEmailRequired        = "Email is required"
	MsgResendNotFound       = "User not found. Please sign up."
	MsgResendVerified       = "User is already verified. Please log in."
	MsgLoginFieldsRequired  = "Email and password are required"
	MsgPasswordTooLong      = "Password must be at most 72 bytes"
	MsgInvalidLogin         = "Invalid email or password"
	MsgNotVerified          = "Account not verified. Please check your email for OTP."
	MsgServerError          = "Server error"
)

// Error pairs a kind with the message shown to clients. Err, when set, is
// the underlying cause and is only ever logged.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func serverError(cause error) *Error {
	return &Error{Kind: ErrServer, Message: MsgServerError, Err: cause}
}

// Message returns the client-facing text of err, or fallback when err
// carries none.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" && !errors.Is(e.Kind, ErrServer) {
		return e.Message
	}
	return fallback
}
