package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultOTPDigits = 6
	DefaultOTPTTL    = 5 * time.Minute
)

// GenerateNumericOTP returns n uniformly random digits, zero-padded.
func GenerateNumericOTP(n int) (string, error) {
	if n <= 0 {
		n = DefaultOTPDigits
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	num, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	format := fmt.Sprintf("%%0%dd", n)
	return fmt.Sprintf(format, num.Int64()), nil
}

// OTPGenerator issues verification codes together with their expiry.
type OTPGenerator struct {
	Digits int
	TTL    time.Duration
	Now    func() time.Time
}

func NewOTPGenerator(digits int, ttl time.Duration) *OTPGenerator {
	if digits <= 0 {
		digits = DefaultOTPDigits
	}
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPGenerator{Digits: digits, TTL: ttl, Now: time.Now}
}

func (g *OTPGenerator) Generate() (code string, expiry time.Time, err error) {
	code, err = GenerateNumericOTP(g.Digits)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp: %w", err)
	}
	return code, g.Now().Add(g.TTL), nil
}

// TTLMinutes rounds ttl up to whole minutes for user-facing text. A 30s
// TTL is reported as one minute, never zero.
func TTLMinutes(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	return int((ttl + time.Minute - 1) / time.Minute)
}
