// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	Port     string `mapstructure:"PORT"`
	GinMode  string `mapstructure:"GIN_MODE"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "json" or "text".
	LogFormat string `mapstructure:"LOG_FORMAT"`

	DatabaseDSN string `mapstructure:"DATABASE_DSN"`

	// RedisAddr enables the redis lease locker when set.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`

	BcryptCost int           `mapstructure:"BCRYPT_COST"`
	OTPTTL     time.Duration `mapstructure:"OTP_TTL"`
	OTPDigits  int           `mapstructure:"OTP_DIGITS"`

	SMTPHost    string        `mapstructure:"SMTP_HOST"`
	SMTPPort    int           `mapstructure:"SMTP_PORT"`
	SMTPUser    string        `mapstructure:"SMTP_USER"`
	SMTPPass    string        `mapstructure:"SMTP_PASS"`
	FromEmail   string        `mapstructure:"FROM_EMAIL"`
	SMTPTimeout time.Duration `mapstructure:"SMTP_TIMEOUT"`
	// OTPLogDelivery writes codes to the log instead of mailing them when
	// SMTP is not configured. Rejected in release mode.
	OTPLogDelivery bool `mapstructure:"OTP_LOG_DELIVERY"`
	// MailFailureFatal turns an OTP delivery failure into a 500 instead of
	// a logged warning.
	MailFailureFatal bool `mapstructure:"MAIL_FAILURE_FATAL"`

	LockTTL  time.Duration `mapstructure:"LOCK_TTL"`
	LockWait time.Duration `mapstructure:"LOCK_WAIT"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var keys = []string{
	"PORT", "GIN_MODE", "LOG_LEVEL", "LOG_FORMAT",
	"DATABASE_DSN",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"JWT_SECRET", "ACCESS_TOKEN_TTL",
	"BCRYPT_COST", "OTP_TTL", "OTP_DIGITS",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "FROM_EMAIL", "SMTP_TIMEOUT",
	"MAIL_FAILURE_FATAL", "OTP_LOG_DELIVERY",
	"LOCK_TTL", "LOCK_WAIT",
	"SHUTDOWN_TIMEOUT",
}

// Load reads .env files (missing ones are ignored), then builds and
// validates a Config from the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables that are already set.
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "3000")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ACCESS_TOKEN_TTL", "1h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("OTP_DIGITS", 6)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_TIMEOUT", "10s")
	v.SetDefault("MAIL_FAILURE_FATAL", false)
	v.SetDefault("OTP_LOG_DELIVERY", false)
	v.SetDefault("LOCK_TTL", "10s")
	v.SetDefault("LOCK_WAIT", "3s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: PORT must be set")
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return errors.New("config: GIN_MODE must be debug, release or test")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("config: ACCESS_TOKEN_TTL must be positive")
	}
	if c.OTPTTL <= 0 {
		return errors.New("config: OTP_TTL must be positive")
	}
	if c.OTPDigits <= 0 || c.OTPDigits > 18 {
		return errors.New("config: OTP_DIGITS must be between 1 and 18")
	}
	if !c.SMTPConfigured() {
		if !c.OTPLogDelivery {
			return errors.New("config: SMTP_HOST and SMTP_USER must be set, or OTP_LOG_DELIVERY=true outside release mode")
		}
		if c.GinMode == "release" {
			return errors.New("config: OTP_LOG_DELIVERY is not allowed with GIN_MODE=release")
		}
	}
	return nil
}

// SMTPConfigured reports whether outbound mail credentials are present.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != ""
}
