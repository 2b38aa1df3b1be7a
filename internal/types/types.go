// Package types holds the JSON envelopes of the HTTP API.
package types

import (
	"time"

	"github.com/24bbnb21-oss/StaySmartAI/internal/analysis"
	"github.com/24bbnb21-oss/StaySmartAI/internal/database"
)

// AnalyzeRequest carries the query options of the analyze endpoints
type AnalyzeRequest struct {
	Seed *uint64 `form:"seed"`
}

// AnalyzeResponse is the body of POST /api/v1/analyze
type AnalyzeResponse struct {
	RunID           string               `json:"run_id"`
	Plan            string               `json:"plan"`
	NoData          bool                 `json:"no_data"`
	Notice          string               `json:"notice,omitempty"`
	DefaultedFields []string             `json:"defaulted_fields"`
	Warnings        []string             `json:"warnings,omitempty"`
	Model           analysis.ModelReport `json:"model"`
	Summary         analysis.Summary     `json:"summary"`
	Employees       []analysis.Employee  `json:"employees"`
}

// NewAnalyzeResponse wraps a pipeline result
func NewAnalyzeResponse(runID, plan string, res *analysis.Result, warnings []string) AnalyzeResponse {
	defaulted := res.Defaulted
	if defaulted == nil {
		defaulted = []string{}
	}
	employees := res.Employees
	if employees == nil {
		employees = []analysis.Employee{}
	}
	return AnalyzeResponse{
		RunID:           runID,
		Plan:            plan,
		NoData:          res.NoData,
		Notice:          res.Notice,
		DefaultedFields: defaulted,
		Warnings:        warnings,
		Model:           res.Model,
		Summary:         res.Summary,
		Employees:       employees,
	}
}

// Requirement describes one recognized input column
type Requirement struct {
	Column      string  `json:"column"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Required    bool    `json:"required"`
	Description string  `json:"description"`
}

// RequirementsResponse is the body of GET /api/v1/requirements
type RequirementsResponse struct {
	Columns     []Requirement `json:"columns"`
	Derived     []string      `json:"derived_columns"`
	MaxUploadMB int64         `json:"max_upload_mb"`
	Note        string        `json:"note"`
}

// NewRequirementsResponse lists the columns the pipeline understands
func NewRequirementsResponse(maxUploadMB int64) RequirementsResponse {
	fields := analysis.Fields()
	cols := make([]Requirement, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, Requirement{
			Column:      f.Name,
			Min:         f.Min,
			Max:         f.Max,
			Required:    f.Driver,
			Description: f.Description,
		})
	}
	return RequirementsResponse{
		Columns:     cols,
		Derived:     analysis.DerivedColumns,
		MaxUploadMB: maxUploadMB,
		Note:        "Missing columns are filled with synthetic values and reported in the response notice.",
	}
}

// RunsResponse is the body of GET /api/v1/runs
type RunsResponse struct {
	Runs  []database.RunRecord `json:"runs"`
	Count int                  `json:"count"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}
