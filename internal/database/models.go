package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/24bbnb21-oss/StaySmartAI/internal/analysis"
)

// RunRecord is the ledger entry of one scoring run
type RunRecord struct {
	ID              string    `json:"id" db:"id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	Rows            int       `json:"rows" db:"row_count"`
	LowCount        int       `json:"low_count" db:"low_count"`
	MediumCount     int       `json:"medium_count" db:"medium_count"`
	HighCount       int       `json:"high_count" db:"high_count"`
	AvgFlightRisk   float64   `json:"avg_flight_risk" db:"avg_flight_risk"`
	ModelKind       string    `json:"model_kind" db:"model_kind"`
	DefaultedFields []string  `json:"defaulted_fields" db:"defaulted_fields"`
	Seed            uint64    `json:"seed" db:"seed"`
	HoldoutAccuracy *float64  `json:"holdout_accuracy,omitempty" db:"holdout_accuracy"`
	Plan            string    `json:"plan,omitempty" db:"plan"`
}

// NewRunRecord summarizes a result with a generated ID
func NewRunRecord(res *analysis.Result, plan string) *RunRecord {
	defaulted := res.Defaulted
	if defaulted == nil {
		defaulted = []string{}
	}
	return &RunRecord{
		ID:              uuid.New().String(),
		CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
		Rows:            res.Summary.TotalEmployees,
		LowCount:        res.Summary.Distribution[analysis.CategoryLow],
		MediumCount:     res.Summary.Distribution[analysis.CategoryMedium],
		HighCount:       res.Summary.Distribution[analysis.CategoryHigh],
		AvgFlightRisk:   res.Summary.AverageFlightRisk,
		ModelKind:       res.Model.Kind,
		DefaultedFields: defaulted,
		Seed:            res.Model.Seed,
		HoldoutAccuracy: res.Model.HoldoutAccuracy,
		Plan:            plan,
	}
}
