// Package server exposes the scoring pipeline over HTTP.
package server

import (
	"errors"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/24bbnb21-oss/StaySmartAI/internal/access"
	"github.com/24bbnb21-oss/StaySmartAI/internal/analysis"
	"github.com/24bbnb21-oss/StaySmartAI/internal/cache"
	"github.com/24bbnb21-oss/StaySmartAI/internal/config"
	"github.com/24bbnb21-oss/StaySmartAI/internal/database"
	_ "github.com/24bbnb21-oss/StaySmartAI/internal/docs"
	apperrors "github.com/24bbnb21-oss/StaySmartAI/internal/errors"
	"github.com/24bbnb21-oss/StaySmartAI/internal/middleware"
	"github.com/24bbnb21-oss/StaySmartAI/internal/monitoring"
	"github.com/24bbnb21-oss/StaySmartAI/internal/ratelimit"
	"github.com/24bbnb21-oss/StaySmartAI/internal/security"
)

const Version = "1.0.0"

// Deps are the collaborators of a Server. Limiter and Ledger are optional.
type Deps struct {
	Config  *config.Config
	Issuer  *access.Issuer
	Limiter *ratelimit.RateLimiter
	Ledger  *database.LedgerService
	Metrics *monitoring.Metrics
	Logger  *monitoring.Logger
}

// Server holds the router and the shared analyzer
type Server struct {
	cfg         *config.Config
	security    security.SecurityConfig
	analyzer    *analysis.Analyzer
	issuer      *access.Issuer
	limiter     *ratelimit.RateLimiter
	ledger      *database.LedgerService
	metrics     *monitoring.Metrics
	logger      *monitoring.Logger
	compression *middleware.CompressionMiddleware
	results     *cache.Cache[*scored] // nil when disabled
	started     time.Time
	router      *gin.Engine
}

// New validates deps and builds the router
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Issuer == nil {
		return nil, errors.New("server: license issuer is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = monitoring.NewLogger()
	}

	opts, err := analysis.OptionsFromConfig(deps.Config.Scoring)
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid scoring configuration", err)
	}

	s := &Server{
		cfg:         deps.Config,
		security:    security.ConfigFrom(deps.Config.Server),
		analyzer:    analysis.NewAnalyzer(opts, deps.Logger.Logger),
		issuer:      deps.Issuer,
		limiter:     deps.Limiter,
		ledger:      deps.Ledger,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		started:     time.Now(),
	}
	if minutes := deps.Config.Server.ResultCacheMinutes; minutes > 0 {
		s.results = cache.NewCache[*scored](time.Duration(minutes)*time.Minute, deps.Config.Server.ResultCacheEntries)
	}
	s.router = s.routes()
	return s, nil
}

// Router returns the configured gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Close stops background work owned by the server
func (s *Server) Close() {
	if s.results != nil {
		s.results.Close()
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()

	// monitoring first so it sees the final status of every request
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())
	r.Use(security.SecurityHeadersMiddleware(s.security.EnableHSTS))
	r.Use(security.CORSMiddleware(s.security.AllowedOrigins))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if gin.Mode() == gin.DebugMode {
		debug := r.Group("/debug/pprof")
		debug.GET("/", gin.WrapF(pprof.Index))
		debug.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		debug.GET("/profile", gin.WrapF(pprof.Profile))
		debug.GET("/symbol", gin.WrapF(pprof.Symbol))
		debug.GET("/trace", gin.WrapF(pprof.Trace))
		debug.GET("/:profile", func(c *gin.Context) {
			pprof.Handler(c.Param("profile")).ServeHTTP(c.Writer, c.Request)
		})
	}

	gate := access.Gate(s.issuer, access.GateConfig{
		AllowAnonymous: s.cfg.Access.AllowAnonymous,
		AnonymousPlan:  access.Plan(s.cfg.Access.AnonymousPlan),
	}, s.metrics, s.logger)

	api := r.Group("/api/v1")
	api.Use(s.compression.Handler())
	{
		api.GET("/requirements", s.handleRequirements)
		api.GET("/runs", gate, s.handleRuns)
		if s.limiter != nil {
			api.GET("/limits", s.limiter.HandleRateLimitStatus())
		}

		upload := api.Group("/analyze")
		upload.Use(
			security.RequestTimeout(s.security.RequestTimeout),
			security.MaxUploadSize(s.security.MaxUploadBytes),
			security.ValidateContentType(),
		)
		if s.limiter != nil {
			upload.Use(s.limiter.UploadRateLimitMiddleware())
		}
		upload.Use(gate)
		{
			upload.POST("", s.handleAnalyze)
			upload.POST("/export", access.RequireExport(s.metrics), s.handleExport)
		}
	}

	return r
}
