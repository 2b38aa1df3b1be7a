package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(cm *CompressionMiddleware, body string, contentType string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/data", func(c *gin.Context) {
		c.Data(http.StatusOK, contentType, []byte(body))
	})
	return r
}

func TestCompressionLargeCSV(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	body := strings.Repeat("employee_id,flight_risk\n1,87\n", 200)
	r := newRouter(cm, body, "text/csv")

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Header().Values("Vary"), "Accept-Encoding")

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, body, string(plain))

	stats := cm.GetStats()
	assert.Equal(t, int64(1), stats["compressed_requests"])
	assert.Less(t, stats["compression_ratio"].(float64), 1.0)
}

func TestCompressionSkips(t *testing.T) {
	large := strings.Repeat("x", 4096)

	tests := []struct {
		name           string
		body           string
		contentType    string
		acceptEncoding string
	}{
		{name: "small body", body: `{"ok":true}`, contentType: "application/json", acceptEncoding: "gzip"},
		{name: "client without gzip", body: large, contentType: "text/csv", acceptEncoding: ""},
		{name: "binary content", body: large, contentType: "image/png", acceptEncoding: "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(NewCompressionMiddleware(DefaultCompressionConfig()), tt.body, tt.contentType)
			req := httptest.NewRequest(http.MethodGet, "/data", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Header().Get("Content-Encoding"))
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestCompressionLeavesErrorsToOuterHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cm := NewCompressionMiddleware(DefaultCompressionConfig())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 && !c.Writer.Written() {
			c.JSON(http.StatusBadRequest, gin.H{"error": c.Errors.Last().Error()})
		}
	})
	r.Use(cm.Handler())
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Abort()
	})

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), assert.AnError.Error())
}
