package security

import (
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/24bbnb21-oss/StaySmartAI/internal/config"
	apperrors "github.com/24bbnb21-oss/StaySmartAI/internal/errors"
)

// multipart framing on top of the file itself
const multipartOverhead = 64 << 10

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxUploadBytes int64
	AllowedOrigins []string
	RequestTimeout time.Duration
	EnableHSTS     bool
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxUploadBytes: 10 << 20,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		RequestTimeout: 60 * time.Second,
	}
}

// ConfigFrom maps server configuration onto SecurityConfig
func ConfigFrom(cfg config.ServerConfig) SecurityConfig {
	return SecurityConfig{
		MaxUploadBytes: cfg.MaxUploadMB << 20,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		EnableHSTS:     cfg.Mode == gin.ReleaseMode,
	}
}

// MaxUploadSize rejects bodies larger than the upload limit, early when the
// client declares Content-Length and while reading otherwise
func MaxUploadSize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit+multipartOverhead {
			_ = c.Error(apperrors.NewPayloadTooLargeError(limit))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
		c.Next()
	}
}

// ValidateContentType only admits multipart uploads and raw CSV bodies
func ValidateContentType() gin.HandlerFunc {
	allowed := map[string]bool{
		"multipart/form-data": true,
		"text/csv":            true,
	}

	return func(c *gin.Context) {
		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || !allowed[strings.ToLower(mediaType)] {
			appErr := apperrors.NewValidationError("Upload the employee file as multipart/form-data (field \"file\") or text/csv")
			appErr.HTTPStatus = http.StatusUnsupportedMediaType
			_ = c.Error(appErr)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ValidateUpload checks the uploaded file's name and size
func ValidateUpload(fh *multipart.FileHeader, limit int64) error {
	name := fh.Filename
	if name == "" || !utf8.ValidString(name) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("the uploaded file has an invalid name")
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
	default:
		return fmt.Errorf("only CSV files are accepted, got %q", filepath.Ext(name))
	}
	if fh.Size > limit {
		return fmt.Errorf("the uploaded file is %d bytes; the limit is %d MB", fh.Size, limit>>20)
	}
	return nil
}

// RequestTimeout bounds the request context so long model fits are cancelled
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Timeout", strconv.Itoa(int(timeout.Seconds())))

		c.Next()
	}
}

// CORSMiddleware allows browser dashboards on the configured origins
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-License-Key", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", "X-StaySmart-Plan"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	switch {
	case len(origins) == 0:
		cfg.AllowOriginFunc = func(string) bool { return false }
	case containsWildcard(origins):
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	default:
		cfg.AllowOrigins = origins
	}

	return cors.New(cfg)
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
