package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"otp-auth/internal/logging"
	"otp-auth/internal/middleware"
	"otp-auth/internal/services"
	"otp-auth/internal/utils"
)

type AuthController struct {
	auth   *services.AuthService
	log    logging.Logger
	otpTTL time.Duration
}

func NewAuthController(auth *services.AuthService, log logging.Logger, otpTTL time.Duration) *AuthController {
	return &AuthController{auth: auth, log: log.With("component", "auth_controller"), otpTTL: otpTTL}
}

// Required-field checks live in the service so every caller gets the same
// messages; binding only rejects malformed JSON.
type signupPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *AuthController) SignUp(c *gin.Context) {
	var p signupPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": services.MsgSignupFieldsRequired})
		return
	}

	res, err := a.auth.Signup(c.Request.Context(), p.Name, p.Email, p.Password)
	if err != nil {
		a.fail(c, err, "Server error during signup")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Signup successful. OTP sent to your email. Please verify within %d minutes.", utils.TTLMinutes(a.otpTTL)),
		"email":   res.Email,
	})
}

type verifyPayload struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (a *AuthController) VerifyOTP(c *gin.Context) {
	var p verifyPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": services.MsgVerifyFieldsRequired})
		return
	}

	if err := a.auth.VerifyOTP(c.Request.Context(), p.Email, p.OTP); err != nil {
		a.fail(c, err, "Server error during OTP verification")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account verified successfully. You can now log in."})
}

type resendPayload struct {
	Email string `json:"email"`
}

func (a *AuthController) ResendOTP(c *gin.Context) {
	var p resendPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": services.MsgEmailRequired})
		return
	}

	if err := a.auth.ResendOTP(c.Request.Context(), p.Email); err != nil {
		a.fail(c, err, "Server error during OTP resend")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "New OTP sent to your email."})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *AuthController) Login(c *gin.Context) {
	var p loginPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": services.MsgLoginFieldsRequired})
		return
	}

	res, err := a.auth.Login(c.Request.Context(), p.Email, p.Password)
	if err != nil {
		a.fail(c, err, "Server error during login")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "token": res.Token})
}

// Me returns the authenticated user's profile.
func (a *AuthController) Me(c *gin.Context) {
	email := c.GetString(middleware.EmailKey)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authorization required"})
		return
	}
	user, err := a.auth.Profile(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": services.MsgUserNotFound})
			return
		}
		a.fail(c, err, "Server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": gin.H{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"isVerified": user.IsVerified,
	}})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (a *AuthController) fail(c *gin.Context, err error, serverMsg string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		a.log.Error(c.Request.Context(), serverMsg, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"message": serverMsg})
		return
	}
	c.JSON(status, gin.H{"message": services.Message(err, serverMsg)})
}

// StatusFor maps a service error kind to an HTTP status. Not-found is
// reported as 400 so lookups don't reveal which addresses exist.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrServer):
		return http.StatusInternalServerError
	case errors.Is(err, services.ErrUnverified):
		return http.StatusForbidden
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrState),
		errors.Is(err, services.ErrExpired),
		errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
