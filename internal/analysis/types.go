// Package analysis scores employee attrition risk from a tabular HR dataset.
//
// The pipeline normalizes column names, synthesizes any missing driver columns,
// derives a weighted raw risk and a synthetic "left" label from it, then fits a
// random forest on that label and reports the predicted class-1 probability as
// a 0-100 flight risk with a Low/Medium/High category and up to three reasons.
//
// Because the label is computed from the same inputs the model sees, the
// flight risk is a self-consistency bootstrap of the weighted formula. It is
// not a validated probability that an employee will actually leave.
package analysis

import (
	"github.com/24bbnb21-oss/StaySmartAI/internal/dataset"
)

// Disclaimer accompanies every model report
const Disclaimer = "flight_risk reproduces a rule-based risk label with a random forest; " +
	"it is not a validated probability of real-world attrition"

type Category string

const (
	CategoryLow    Category = "Low"
	CategoryMedium Category = "Medium"
	CategoryHigh   Category = "High"
)

// Model kinds reported in ModelReport.Kind
const (
	ModelRandomForest = "random_forest"
	ModelFallback     = "fallback"
	ModelNone         = "none"
)

// Drivers are the five inputs of the raw risk formula
type Drivers struct {
	Satisfaction float64 `json:"satisfaction_score"`
	Engagement   float64 `json:"engagement_score"`
	LastHike     float64 `json:"last_hike_months"`
	Overtime     float64 `json:"overtime_hours"`
	Distance     float64 `json:"distance_from_home"`
}

// Employee is one scored row
type Employee struct {
	Row        int               `json:"row"`
	Record     map[string]string `json:"record"`
	Drivers    Drivers           `json:"drivers"`
	RawRisk    float64           `json:"raw_risk"`
	Left       int               `json:"left"`
	FlightRisk int               `json:"flight_risk"`
	Category   Category          `json:"risk_category"`
	Reasons    string            `json:"risk_reasons"`
}

type ModelReport struct {
	Kind              string             `json:"kind"`
	Trees             int                `json:"trees,omitempty"`
	Features          []string           `json:"features"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	TrainRows         int                `json:"train_rows"`
	TestRows          int                `json:"test_rows"`
	HoldoutAccuracy   *float64           `json:"holdout_accuracy,omitempty"`
	FallbackReason    string             `json:"fallback_reason,omitempty"`
	Seed              uint64             `json:"seed"`
	Weights           string             `json:"weights"`
	Disclaimer        string             `json:"disclaimer"`
}

// Result is the output of one pipeline run. Table holds the augmented
// dataset in upload column order with defaulted and derived columns appended
type Result struct {
	Table     *dataset.Table `json:"-"`
	Employees []Employee     `json:"employees"`
	Defaulted []string       `json:"defaulted_fields"`
	Notice    string         `json:"notice,omitempty"`
	Model     ModelReport    `json:"model"`
	Summary   Summary        `json:"summary"`
	NoData    bool           `json:"no_data"`
}
