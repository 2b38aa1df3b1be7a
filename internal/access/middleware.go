package access

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/24bbnb21-oss/StaySmartAI/internal/errors"
	"github.com/24bbnb21-oss/StaySmartAI/internal/monitoring"
)

const (
	HeaderLicenseKey = "X-License-Key"
	grantKey         = "access.grant"
)

// GateConfig controls how requests without a key are treated
type GateConfig struct {
	AllowAnonymous bool
	AnonymousPlan  Plan
}

// Gate resolves the caller's Grant once and stores it on the context
func Gate(issuer *Issuer, cfg GateConfig, metrics *monitoring.Metrics, logger *monitoring.Logger) gin.HandlerFunc {
	deny := func(c *gin.Context, msg string, cause error) {
		if metrics != nil {
			metrics.IncrementAccessDenied()
		}
		if logger != nil {
			details := map[string]interface{}{"reason": msg}
			if cause != nil {
				details["error"] = cause.Error()
			}
			logger.SecurityLogger("access_denied", c.ClientIP(), c.GetHeader("User-Agent"), details)
		}
		_ = c.Error(apperrors.NewAccessError(msg, cause))
		c.Abort()
	}

	return func(c *gin.Context) {
		key := licenseKey(c)
		if key == "" {
			if !cfg.AllowAnonymous {
				deny(c, "A license key is required", nil)
				return
			}
			c.Set(grantKey, Grant{Plan: cfg.AnonymousPlan, Anonymous: true})
			c.Next()
			return
		}

		grant, err := issuer.Verify(key)
		if err != nil {
			msg := "The license key is not valid"
			if errors.Is(err, ErrExpiredLicense) {
				msg = "The license key has expired"
			}
			deny(c, msg, err)
			return
		}

		c.Set(grantKey, grant)
		c.Header("X-StaySmart-Plan", string(grant.Plan))
		c.Next()
	}
}

// RequireExport rejects callers whose plan does not include CSV export
func RequireExport(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := GrantFrom(c).AllowExport(); err != nil {
			if metrics != nil {
				metrics.IncrementAccessDenied()
			}
			_ = c.Error(apperrors.NewAccessError(err.Error(), nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

// GrantFrom returns the request's Grant, or an anonymous free grant when the
// Gate did not run
func GrantFrom(c *gin.Context) Grant {
	if v, ok := c.Get(grantKey); ok {
		if g, ok := v.(Grant); ok {
			return g
		}
	}
	return Grant{Plan: PlanFree, Anonymous: true}
}

func licenseKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader(HeaderLicenseKey)); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
