package services

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var passwordLength = validation.By(func(v interface{}) error {
	if s, _ := v.(string); len(s) > MaxPasswordBytes {
		return errors.New("must be at most 72 bytes")
	}
	return nil
})

type signupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in signupInput) validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
	if err != nil {
		return invalid(MsgSignupFieldsRequired, err)
	}
	if err := validation.ValidateStruct(&in, validation.Field(&in.Password, passwordLength)); err != nil {
		return invalid(MsgPasswordTooLong, err)
	}
	return nil
}

type verifyInput struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (in verifyInput) validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.OTP, validation.Required),
	)
	if err != nil {
		return invalid(MsgVerifyFieldsRequired, err)
	}
	return nil
}

type resendInput struct {
	Email string `json:"email"`
}

func (in resendInput) validate() error {
	if err := validation.ValidateStruct(&in, validation.Field(&in.Email, validation.Required)); err != nil {
		return invalid(MsgEmailRequired, err)
	}
	return nil
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in loginInput) validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
	if err != nil {
		return invalid(MsgLoginFieldsRequired, err)
	}
	return nil
}

func invalid(msg string, err error) error {
	return &Error{Kind: ErrValidation, Message: msg, Err: err}
}
