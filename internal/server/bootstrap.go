package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/24bbnb21-oss/StaySmartAI/internal/access"
	"github.com/24bbnb21-oss/StaySmartAI/internal/config"
	"github.com/24bbnb21-oss/StaySmartAI/internal/database"
	apperrors "github.com/24bbnb21-oss/StaySmartAI/internal/errors"
	"github.com/24bbnb21-oss/StaySmartAI/internal/monitoring"
	"github.com/24bbnb21-oss/StaySmartAI/internal/ratelimit"
)

const shutdownTimeout = 30 * time.Second

// App owns every long-lived resource of the HTTP service
type App struct {
	cfg     *config.Config
	logger  *monitoring.Logger
	server  *Server
	http    *http.Server
	redis   *ratelimit.RedisClient
	limiter *ratelimit.RateLimiter
	db      *database.DB
	ledger  *database.LedgerService
}

// NewApp wires the service from cfg. Optional backends that fail to come up
// are disabled with a warning; the scoring endpoints keep working without them.
func NewApp(cfg *config.Config, logger *monitoring.Logger) (*App, error) {
	if logger == nil {
		logger = monitoring.NewLogger()
	}
	gin.SetMode(cfg.Server.Mode)

	app := &App{cfg: cfg, logger: logger}
	metrics := monitoring.NewMetrics()

	issuer, err := access.NewIssuer(cfg.Access.LicenseSecret)
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid license secret", err)
	}

	if cfg.RateLimit.Enabled {
		app.redis, err = ratelimit.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warn("Redis client unavailable, rate limiting in memory", "error", err)
		}
		app.limiter = ratelimit.NewRateLimiter(app.redis, ratelimit.ConfigFrom(cfg.RateLimit), metrics)
	}

	if cfg.Ledger.Enabled {
		app.db, err = database.NewDB(cfg.Ledger.Path)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to open run ledger: %w", err)
		}
		app.ledger = database.NewLedgerService(database.NewRepository(app.db), cfg.Ledger.RetentionDays)
		if cfg.Ledger.PruneSchedule != "" && cfg.Ledger.RetentionDays > 0 {
			if err := app.ledger.StartScheduler(cfg.Ledger.PruneSchedule); err != nil {
				app.Close()
				return nil, apperrors.NewConfigurationError("invalid ledger prune schedule", err)
			}
		}
	}

	app.server, err = New(Deps{
		Config:  cfg,
		Issuer:  issuer,
		Limiter: app.limiter,
		Ledger:  app.ledger,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	timeout := time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second
	app.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           app.server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout + 30*time.Second,
		WriteTimeout:      timeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return app, nil
}

// Handler returns the HTTP handler, mainly for tests
func (a *App) Handler() http.Handler {
	return a.http.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", "addr", a.http.Addr, "mode", gin.Mode(), "version", Version)
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("Server exited")
	return nil
}

// Close releases the limiter, Redis and the ledger
func (a *App) Close() {
	if a.server != nil {
		a.server.Close()
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.redis != nil {
		apperrors.SafeClose(a.redis, "redis client")
	}
	if a.ledger != nil {
		a.ledger.StopScheduler()
	}
	if a.db != nil {
		apperrors.SafeClose(a.db, "run ledger")
	}
	slog.Debug("Resources released")
}
