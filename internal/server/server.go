// Package server wires the HTTP routes and runs the listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"otp-auth/internal/controllers"
	"otp-auth/internal/logging"
	"otp-auth/internal/middleware"
)

// NewRouter mounts the auth API under /api/auth and the health check at
// /api/health.
func NewRouter(auth *controllers.AuthController, tokens middleware.TokenVerifier, log logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(log), middleware.Recovery(log))

	api := r.Group("/api")
	api.GET("/health", controllers.Health)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", auth.SignUp)
		authGroup.POST("/verify-otp", auth.VerifyOTP)
		authGroup.POST("/resend-otp", auth.ResendOTP)
		authGroup.POST("/login", auth.Login)
	}

	protected := authGroup.Group("")
	protected.Use(middleware.JWTMiddleware(tokens))
	{
		protected.GET("/me", auth.Me)
	}

	return r
}

// Run serves h on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func Run(ctx context.Context, addr string, h http.Handler, shutdownTimeout time.Duration, log logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
