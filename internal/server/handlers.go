package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/24bbnb21-oss/StaySmartAI/internal/access"
	"github.com/24bbnb21-oss/StaySmartAI/internal/analysis"
	"github.com/24bbnb21-oss/StaySmartAI/internal/cache"
	"github.com/24bbnb21-oss/StaySmartAI/internal/dataset"
	apperrors "github.com/24bbnb21-oss/StaySmartAI/internal/errors"
	"github.com/24bbnb21-oss/StaySmartAI/internal/security"
	"github.com/24bbnb21-oss/StaySmartAI/internal/types"
)

// ExportFilename is the attachment name of scored CSV downloads
const ExportFilename = "staysmart_ai_results.csv"

// run is one completed pipeline invocation
type run struct {
	id       string
	grant    access.Grant
	result   *analysis.Result
	warnings []string
}

// handleAnalyze godoc
// @Summary Score attrition risk
// @Description Scores every employee row of an uploaded CSV and returns the dashboard summary
// @Tags analysis
// @Accept multipart/form-data,text/csv
// @Produce json
// @Param file formData file false "Employee CSV with a header row"
// @Param seed query int false "Random seed, default from configuration"
// @Param X-License-Key header string false "Signed license key"
// @Success 200 {object} types.AnalyzeResponse
// @Failure 400 {object} errors.AppError
// @Failure 403 {object} errors.AppError
// @Failure 413 {object} errors.AppError
// @Failure 429 {object} errors.AppError
// @Router /api/v1/analyze [post]
func (s *Server) handleAnalyze(c *gin.Context) {
	out, err := s.runPipeline(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("X-StaySmart-Run-ID", out.id)
	c.JSON(http.StatusOK, types.NewAnalyzeResponse(out.id, string(out.grant.Plan), out.result, out.warnings))
}

// handleExport godoc
// @Summary Score and download CSV
// @Description Scores an uploaded CSV and returns the augmented table as staysmart_ai_results.csv
// @Tags analysis
// @Accept multipart/form-data,text/csv
// @Produce text/csv
// @Param file formData file false "Employee CSV with a header row"
// @Param seed query int false "Random seed, default from configuration"
// @Param X-License-Key header string false "Signed license key"
// @Success 200 {file} file "CSV attachment"
// @Failure 403 {object} errors.AppError
// @Router /api/v1/analyze/export [post]
func (s *Server) handleExport(c *gin.Context) {
	out, err := s.runPipeline(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	body, err := dataset.Bytes(out.result.Table)
	if err != nil {
		s.fail(c, apperrors.NewInternalError("Failed to write the scored CSV", err))
		return
	}

	s.metrics.IncrementExport()
	c.Header("X-StaySmart-Run-ID", out.id)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": ExportFilename}))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}

// scored is a pipeline result kept in the result cache
type scored struct {
	result   *analysis.Result
	warnings []string
}

// runPipeline reads the upload, applies plan limits and scores it. Identical
// uploads scored with the same seed are served from the result cache.
func (s *Server) runPipeline(c *gin.Context) (*run, error) {
	start := time.Now()
	grant := access.GrantFrom(c)

	analyzer, err := s.analyzerFor(c)
	if err != nil {
		return nil, err
	}

	data, err := s.readUpload(c)
	if err != nil {
		return nil, err
	}

	out, err := s.score(c.Request.Context(), analyzer, data, grant)
	if err != nil {
		return nil, err
	}

	res := out.result
	rows := res.Table.Len()
	runID := s.record(c.Request.Context(), res, grant)

	distribution := make(map[string]int, len(res.Summary.Distribution))
	for cat, n := range res.Summary.Distribution {
		distribution[string(cat)] = n
	}
	s.metrics.RecordAnalysis(rows, res.Model.Kind, res.Defaulted, distribution)
	s.logger.AnalysisLogger(runID, rows, res.Model.Kind, res.Defaulted, res.Summary.HighRiskCount, time.Since(start))

	return &run{id: runID, grant: grant, result: res, warnings: out.warnings}, nil
}

func (s *Server) score(ctx context.Context, analyzer *analysis.Analyzer, data []byte, grant access.Grant) (*scored, error) {
	var key string
	if s.results != nil {
		key = cache.Key(data, []byte(strconv.FormatUint(analyzer.Options().Seed, 10)))
		if hit, ok := s.results.Get(key); ok {
			if err := s.allowRows(grant, hit.result.Table.Len()); err != nil {
				return nil, err
			}
			s.metrics.IncrementCacheHit()
			return hit, nil
		}
		s.metrics.IncrementCacheMiss()
	}

	parsed, err := dataset.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	if err := s.allowRows(grant, parsed.Table.Len()); err != nil {
		return nil, err
	}

	res, err := analyzer.Analyze(ctx, parsed.Table)
	if err != nil {
		return nil, err
	}

	out := &scored{result: res, warnings: warningStrings(parsed.Warnings)}
	if s.results != nil {
		s.results.Set(key, out)
	}
	return out, nil
}

func (s *Server) allowRows(grant access.Grant, rows int) error {
	if err := grant.AllowRows(rows); err != nil {
		s.metrics.IncrementAccessDenied()
		return apperrors.NewAccessError(err.Error(), nil)
	}
	return nil
}

// analyzerFor applies the seed query parameter
func (s *Server) analyzerFor(c *gin.Context) (*analysis.Analyzer, error) {
	var req types.AnalyzeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return nil, apperrors.NewValidationError("seed must be a non-negative integer", c.Query("seed"))
	}
	if req.Seed == nil {
		return s.analyzer, nil
	}
	return s.analyzer.WithSeed(*req.Seed), nil
}

// readUpload returns the "file" field of a multipart form or a raw CSV body
func (s *Server) readUpload(c *gin.Context) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))

	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, s.uploadError(err)
		}
		return data, nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, apperrors.NewValidationError("No file uploaded: send the CSV in the \"file\" form field")
		}
		return nil, s.uploadError(err)
	}
	if err := security.ValidateUpload(fh, s.security.MaxUploadBytes); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to open the uploaded file", err)
	}
	defer apperrors.SafeClose(f, "upload")

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, s.uploadError(err)
	}
	return data, nil
}

func (s *Server) uploadError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
		return apperrors.NewPayloadTooLargeError(s.security.MaxUploadBytes)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return apperrors.NewValidationError("The upload was cut off before it finished")
	}
	return apperrors.NewValidationError("Could not read the upload", err.Error())
}

// record writes the run to the ledger and returns its ID. Ledger failures are
// logged and never fail the request.
func (s *Server) record(ctx context.Context, res *analysis.Result, grant access.Grant) string {
	if s.ledger == nil {
		return uuid.NewString()
	}
	saved, err := s.ledger.RecordResult(ctx, res, string(grant.Plan))
	if err != nil {
		s.logger.Error("Failed to record run", "error", err)
		return uuid.NewString()
	}
	return saved.ID
}

func (s *Server) fail(c *gin.Context, err error) {
	s.metrics.IncrementAnalysisFailure()
	_ = c.Error(err)
	c.Abort()
}

func warningStrings(ws []dataset.Warning) []string {
	if len(ws) == 0 {
		return nil
	}
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, fmt.Sprintf("row %d: %s", w.Row, w.Message))
	}
	return out
}

// handleRequirements godoc
// @Summary List recognized input columns
// @Tags analysis
// @Produce json
// @Success 200 {object} types.RequirementsResponse
// @Router /api/v1/requirements [get]
func (s *Server) handleRequirements(c *gin.Context) {
	c.JSON(http.StatusOK, types.NewRequirementsResponse(s.cfg.Server.MaxUploadMB))
}

// handleRuns godoc
// @Summary Recent run summaries
// @Tags ledger
// @Produce json
// @Param limit query int false "Maximum runs to return (1-100)"
// @Success 200 {object} types.RunsResponse
// @Failure 404 {object} errors.AppError
// @Router /api/v1/runs [get]
func (s *Server) handleRuns(c *gin.Context) {
	if s.ledger == nil {
		appErr := apperrors.NewValidationError("The run ledger is disabled on this server")
		appErr.HTTPStatus = http.StatusNotFound
		_ = c.Error(appErr)
		c.Abort()
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			_ = c.Error(apperrors.NewValidationError("limit must be a positive integer", raw))
			c.Abort()
			return
		}
		limit = n
	}

	runs, err := s.ledger.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(apperrors.NewInternalError("Failed to read the run ledger", err))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, types.RunsResponse{Runs: runs, Count: len(runs)})
}

// handleHealth godoc
// @Summary Service health
// @Tags system
// @Produce json
// @Success 200 {object} types.HealthResponse
// @Router /health [get]
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := types.HealthResponse{
		Status:    "ok",
		Version:   Version,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Checks:    map[string]string{"analyzer": "ok"},
	}

	if s.ledger != nil {
		resp.Checks["ledger"] = "ok"
		if err := s.ledger.Ping(ctx); err != nil {
			resp.Checks["ledger"] = err.Error()
			resp.Status = "degraded"
		}
	} else {
		resp.Checks["ledger"] = "disabled"
	}

	switch {
	case s.limiter == nil:
		resp.Checks["rate_limit"] = "disabled"
	case !s.limiter.RedisEnabled():
		resp.Checks["rate_limit"] = "memory"
	default:
		resp.Checks["rate_limit"] = "redis"
		if err := s.limiter.HealthCheck(ctx); err != nil {
			// the in-memory fallback keeps limiting
			resp.Checks["rate_limit"] = "redis: " + err.Error()
			resp.Status = "degraded"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleMetrics godoc
// @Summary In-process counters
// @Tags system
// @Produce json
// @Success 200
// @Router /metrics [get]
func (s *Server) handleMetrics(c *gin.Context) {
	body := gin.H{
		"requests":    s.metrics.GetStats(),
		"analysis":    s.metrics.GetAnalysisStats(),
		"rate_limit":  s.metrics.GetRateLimitStats(),
		"compression": s.compression.GetStats(),
		"timestamp":   time.Now().Format(time.RFC3339),
	}
	if s.limiter != nil {
		body["limiter"] = s.limiter.GetStats()
	}
	if s.results != nil {
		body["result_cache"] = s.results.Stats()
	}
	if s.ledger != nil {
		body["ledger_pool"] = s.ledger.PoolStats()
	}
	c.JSON(http.StatusOK, body)
}
