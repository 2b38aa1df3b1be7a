package security

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/24bbnb21-oss/StaySmartAI/internal/config"
	apperrors "github.com/24bbnb21-oss/StaySmartAI/internal/errors"
)

func TestSecurityConfig(t *testing.T) {
	cfg := DefaultSecurityConfig()

	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Contains(t, cfg.AllowedOrigins, "http://localhost:3000")
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)

	mapped := ConfigFrom(config.ServerConfig{
		MaxUploadMB:           2,
		AllowedOrigins:        []string{"https://hr.example.com"},
		RequestTimeoutSeconds: 5,
		Mode:                  gin.ReleaseMode,
	})
	assert.Equal(t, int64(2<<20), mapped.MaxUploadBytes)
	assert.Equal(t, 5*time.Second, mapped.RequestTimeout)
	assert.True(t, mapped.EnableHSTS)
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(SecurityHeadersMiddleware(false))
	r.GET("/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "test"}) })
	r.GET("/swagger/index.html", func(c *gin.Context) { c.String(http.StatusOK, "docs") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	headers := w.Header()
	assert.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", headers.Get("Referrer-Policy"))
	assert.Equal(t, "no-store", headers.Get("Cache-Control"))
	assert.Contains(t, headers.Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, headers.Get("Strict-Transport-Security"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "script-src 'self'")

	hsts := gin.New()
	hsts.Use(SecurityHeadersMiddleware(true))
	hsts.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	hsts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}

func TestValidateContentType(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	r.POST("/upload", ValidateContentType(), func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name           string
		contentType    string
		expectedStatus int
	}{
		{name: "multipart", contentType: "multipart/form-data; boundary=xyz", expectedStatus: http.StatusOK},
		{name: "raw csv", contentType: "text/csv; charset=utf-8", expectedStatus: http.StatusOK},
		{name: "json", contentType: "application/json", expectedStatus: http.StatusUnsupportedMediaType},
		{name: "missing", contentType: "", expectedStatus: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("a,b\n1,2\n"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestMaxUploadSize(t *testing.T) {
	gin.SetMode(gin.TestMode)

	const limit = 1 << 10

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	r.POST("/upload", MaxUploadSize(limit), func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("small body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("ok")))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("declared too large", func(t *testing.T) {
		body := bytes.Repeat([]byte("x"), limit+multipartOverhead+1)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "PAYLOAD_TOO_LARGE", resp["code"])
	})

	t.Run("streamed too large", func(t *testing.T) {
		body := bytes.Repeat([]byte("x"), limit+multipartOverhead+1)
		req := httptest.NewRequest(http.MethodPost, "/upload", io.NopCloser(bytes.NewReader(body)))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func TestValidateUpload(t *testing.T) {
	csv := []byte("satisfaction_score\n5\n")

	assert.NoError(t, ValidateUpload(fileHeader(t, "employees.csv", csv), 1<<20))
	assert.NoError(t, ValidateUpload(fileHeader(t, "EXPORT.TXT", csv), 1<<20))
	assert.ErrorContains(t, ValidateUpload(fileHeader(t, "employees.xlsx", csv), 1<<20), "only CSV")
	assert.ErrorContains(t, ValidateUpload(fileHeader(t, "big.csv", bytes.Repeat([]byte("1\n"), 600)), 1<<10), "limit")
}

func TestRequestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestTimeout(20 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
			c.Status(http.StatusGatewayTimeout)
		case <-time.After(time.Second):
			c.Status(http.StatusOK)
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Timeout"))
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		origins     []string
		origin      string
		allowOrigin string
	}{
		{name: "allowed origin", origins: []string{"http://localhost:3000"}, origin: "http://localhost:3000", allowOrigin: "http://localhost:3000"},
		{name: "unknown origin", origins: []string{"http://localhost:3000"}, origin: "https://evil.example", allowOrigin: ""},
		{name: "wildcard", origins: []string{"*"}, origin: "https://any.example", allowOrigin: "*"},
		{name: "no origins configured", origins: nil, origin: "http://localhost:3000", allowOrigin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORSMiddleware(tt.origins))
			r.GET("/api", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodOptions, "/api", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.allowOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
