package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Access    AccessConfig    `yaml:"access"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

type ServerConfig struct {
	Host                  string   `yaml:"host"`
	Port                  string   `yaml:"port"`
	Mode                  string   `yaml:"mode"` // debug, release, test
	MaxUploadMB           int64    `yaml:"max_upload_mb"`
	AllowedOrigins        []string `yaml:"allowed_origins"`
	RequestTimeoutSeconds int      `yaml:"request_timeout_seconds"`
	ResultCacheMinutes    int      `yaml:"result_cache_minutes"` // 0 disables
	ResultCacheEntries    int      `yaml:"result_cache_entries"`
}

// ScoringConfig holds the named value judgments of the scoring pipeline.
type ScoringConfig struct {
	Seed            uint64  `yaml:"seed"`
	Weights         string  `yaml:"weights"`  // a, b
	Fill            string  `yaml:"fill"`     // uniform, normal
	Features        string  `yaml:"features"` // extended, core
	HoldoutFraction float64 `yaml:"holdout_fraction"`
	Trees           int     `yaml:"trees"`
	MediumThreshold int     `yaml:"medium_threshold"`
	HighThreshold   int     `yaml:"high_threshold"`
	ReplacementCost float64 `yaml:"replacement_cost"` // INR per high-risk employee
	TopN            int     `yaml:"top_n"`
}

type AccessConfig struct {
	LicenseSecret  string `yaml:"license_secret"`
	AllowAnonymous bool   `yaml:"allow_anonymous"`
	AnonymousPlan  string `yaml:"anonymous_plan"`
	LicenseTTLDays int    `yaml:"license_ttl_days"`
}

type RateLimitConfig struct {
	Enabled          bool    `yaml:"enabled"`
	UploadsPerMinute int     `yaml:"uploads_per_minute"`
	BurstMultiplier  float64 `yaml:"burst_multiplier"`
}

// RedisConfig for the optional distributed rate limiter
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LedgerConfig for the sqlite run ledger. Only run aggregates are stored.
type LedgerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	PruneSchedule string `yaml:"prune_schedule"` // cron spec
}

// Load reads .env (if any), then the YAML file over the defaults (if it
// exists), then environment overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	if configPath == "" {
		configPath = getEnvOrDefault("CONFIG_PATH", "config.yaml")
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  "8080",
			Mode:                  "release",
			MaxUploadMB:           10,
			AllowedOrigins:        []string{"http://localhost:3000", "http://localhost:5173"},
			RequestTimeoutSeconds: 60,
			ResultCacheMinutes:    15,
			ResultCacheEntries:    128,
		},
		Scoring: ScoringConfig{
			Seed:            42,
			Weights:         "a",
			Fill:            "uniform",
			Features:        "extended",
			HoldoutFraction: 0.2,
			Trees:           120,
			MediumThreshold: 50,
			HighThreshold:   70,
			ReplacementCost: 600000,
			TopN:            10,
		},
		Access: AccessConfig{
			LicenseSecret:  "staysmart-license-secret-change-in-production",
			AllowAnonymous: true,
			AnonymousPlan:  "free",
			LicenseTTLDays: 365,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			UploadsPerMinute: 30,
			BurstMultiplier:  1.5,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Ledger: LedgerConfig{
			Enabled:       true,
			Path:          "./data/staysmart.db",
			RetentionDays: 90,
			PruneSchedule: "0 3 * * *",
		},
	}
}

func (c *Config) overrideFromEnv() error {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	c.Server.Port = getEnvOrDefault("SERVER_PORT", getEnvOrDefault("PORT", c.Server.Port))
	c.Server.Mode = getEnvOrDefault("SERVER_MODE", getEnvOrDefault("GIN_MODE", c.Server.Mode))
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	if weights := os.Getenv("SCORING_WEIGHTS"); weights != "" {
		c.Scoring.Weights = weights
	}
	if fill := os.Getenv("SCORING_FILL"); fill != "" {
		c.Scoring.Fill = fill
	}
	if features := os.Getenv("SCORING_FEATURES"); features != "" {
		c.Scoring.Features = features
	}
	if secret := os.Getenv("LICENSE_SECRET"); secret != "" {
		c.Access.LicenseSecret = secret
	}
	if plan := os.Getenv("ANONYMOUS_PLAN"); plan != "" {
		c.Access.AnonymousPlan = plan
	}
	if path := os.Getenv("LEDGER_PATH"); path != "" {
		c.Ledger.Path = path
	}

	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(envInt64("MAX_UPLOAD_MB", &c.Server.MaxUploadMB))
	collect(envInt("REQUEST_TIMEOUT_SECONDS", &c.Server.RequestTimeoutSeconds))
	collect(envInt("RESULT_CACHE_MINUTES", &c.Server.ResultCacheMinutes))
	collect(envUint64("SCORING_SEED", &c.Scoring.Seed))
	collect(envFloat("SCORING_HOLDOUT", &c.Scoring.HoldoutFraction))
	collect(envInt("SCORING_TREES", &c.Scoring.Trees))
	collect(envFloat("REPLACEMENT_COST", &c.Scoring.ReplacementCost))
	collect(envBool("ALLOW_ANONYMOUS", &c.Access.AllowAnonymous))
	collect(envBool("RATE_LIMIT_ENABLED", &c.RateLimit.Enabled))
	collect(envInt("RATE_LIMIT_UPLOADS_PER_MINUTE", &c.RateLimit.UploadsPerMinute))
	collect(envBool("LEDGER_ENABLED", &c.Ledger.Enabled))
	collect(envInt("LEDGER_RETENTION_DAYS", &c.Ledger.RetentionDays))

	return errors.Join(errs...)
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

var (
	validWeights  = map[string]bool{"a": true, "b": true}
	validFill     = map[string]bool{"uniform": true, "normal": true}
	validFeatures = map[string]bool{"extended": true, "core": true}
	validPlans    = map[string]bool{"free": true, "pro": true, "enterprise": true}
	validModes    = map[string]bool{"debug": true, "release": true, "test": true}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port != "", "server.port is required")
	check(validModes[c.Server.Mode], "server.mode %q must be debug, release or test", c.Server.Mode)
	check(c.Server.MaxUploadMB > 0, "server.max_upload_mb must be positive")
	check(c.Server.RequestTimeoutSeconds > 0, "server.request_timeout_seconds must be positive")
	check(c.Server.ResultCacheMinutes >= 0, "server.result_cache_minutes must not be negative")
	check(c.Server.ResultCacheMinutes == 0 || c.Server.ResultCacheEntries > 0, "server.result_cache_entries must be positive when the cache is on")

	s := c.Scoring
	check(validWeights[strings.ToLower(s.Weights)], "scoring.weights %q must be a or b", s.Weights)
	check(validFill[strings.ToLower(s.Fill)], "scoring.fill %q must be uniform or normal", s.Fill)
	check(validFeatures[strings.ToLower(s.Features)], "scoring.features %q must be extended or core", s.Features)
	check(s.HoldoutFraction >= 0 && s.HoldoutFraction < 1, "scoring.holdout_fraction %v must be in [0,1)", s.HoldoutFraction)
	check(s.Trees > 0, "scoring.trees must be positive")
	check(s.MediumThreshold > 0 && s.HighThreshold > s.MediumThreshold && s.HighThreshold <= 100,
		"scoring thresholds %d/%d must satisfy 0 < medium < high <= 100", s.MediumThreshold, s.HighThreshold)
	check(s.ReplacementCost >= 0, "scoring.replacement_cost must not be negative")
	check(s.TopN > 0, "scoring.top_n must be positive")

	check(c.Access.LicenseSecret != "", "access.license_secret is required")
	check(validPlans[c.Access.AnonymousPlan], "access.anonymous_plan %q is not a known plan", c.Access.AnonymousPlan)
	check(c.Access.LicenseTTLDays > 0, "access.license_ttl_days must be positive")

	if c.RateLimit.Enabled {
		check(c.RateLimit.UploadsPerMinute > 0, "rate_limit.uploads_per_minute must be positive")
		check(c.RateLimit.BurstMultiplier >= 1, "rate_limit.burst_multiplier must be at least 1")
	}
	if c.Redis.Enabled {
		check(c.Redis.Addr != "", "redis.addr is required when redis is enabled")
	}
	if c.Ledger.Enabled {
		check(c.Ledger.Path != "", "ledger.path is required when the ledger is enabled")
		check(c.Ledger.RetentionDays >= 0, "ledger.retention_days must not be negative")
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func envUint64(key string, dst *uint64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %q is not a non-negative integer", key, v)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number", key, v)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	*dst = b
	return nil
}
