package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"otp-auth/internal/config"
	"otp-auth/internal/controllers"
	"otp-auth/internal/db"
	"otp-auth/internal/lock"
	"otp-auth/internal/logging"
	"otp-auth/internal/redis"
	"otp-auth/internal/server"
	"otp-auth/internal/services"
	"otp-auth/internal/store"
	"otp-auth/internal/token"
	"otp-auth/internal/utils"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootLog := logging.New("info", "json")
	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(ctx, "load config", "error", err)
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	dbConn, err := db.Init(cfg.DatabaseDSN)
	if err != nil {
		log.Error(ctx, "init database", "error", err)
		return err
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisAddr != "" {
		rdb, err := redis.Init(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Error(ctx, "init redis", "error", err)
			return err
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.LockTTL, cfg.LockWait)
	}

	var notifier services.Notifier
	if cfg.SMTPConfigured() {
		smtpClient := utils.NewSMTPClient(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.FromEmail)
		smtpClient.Timeout = cfg.SMTPTimeout
		notifier = utils.NewOTPMailer(smtpClient, cfg.OTPTTL)
	} else {
		// Validate only lets this through with OTP_LOG_DELIVERY outside release mode.
		log.Warn(ctx, "OTP_LOG_DELIVERY enabled, OTP codes will only be logged")
		notifier = utils.NewLogMailer(log)
	}

	issuer := token.NewIssuer([]byte(cfg.JWTSecret), cfg.AccessTokenTTL)

	authSvc := services.NewAuthService(
		store.NewGormStore(dbConn),
		utils.NewPasswordHasher(cfg.BcryptCost),
		utils.NewOTPGenerator(cfg.OTPDigits, cfg.OTPTTL),
		notifier,
		issuer,
		services.WithLocker(locker),
		services.WithLogger(log),
		services.WithMailFailureFatal(cfg.MailFailureFatal),
	)

	auth := controllers.NewAuthController(authSvc, log, cfg.OTPTTL)
	r := server.NewRouter(auth, issuer, log)

	if err := server.Run(ctx, ":"+cfg.Port, r, cfg.ShutdownTimeout, log); err != nil {
		log.Error(ctx, "server stopped", "error", err)
		return err
	}
	return nil
}
