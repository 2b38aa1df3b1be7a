package analysis

import (
	"fmt"
	"strings"

	"github.com/24bbnb21-oss/StaySmartAI/internal/dataset"
)

// Recognized numeric columns, after normalization
const (
	ColSatisfaction = "satisfaction_score"
	ColEngagement   = "engagement_score"
	ColLastHike     = "last_hike_months"
	ColOvertime     = "overtime_hours"
	ColDistance     = "distance_from_home"
	ColAge          = "age"
	ColTenure       = "years_at_company"
	ColSalary       = "salary_lakhs"
	ColWorkLife     = "work_life_balance"
)

// Derived columns appended to every output table
const (
	ColLeft         = "left"
	ColFlightRisk   = "flight_risk"
	ColRiskCategory = "risk_category"
	ColRiskReasons  = "risk_reasons"
)

// DerivedColumns lists the pipeline outputs in table order
var DerivedColumns = []string{ColLeft, ColFlightRisk, ColRiskCategory, ColRiskReasons}

// Field describes one recognized numeric column and the bound used when it
// has to be synthesized. Supplied values are never checked against the bound
type Field struct {
	Name        string  `json:"name"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Continuous  bool    `json:"continuous"`
	Driver      bool    `json:"driver"`
	Description string  `json:"description"`
}

// fields is ordered the way missing columns are filled and appended
var fields = []Field{
	{Name: ColSatisfaction, Min: 1, Max: 10, Driver: true, Description: "Job satisfaction, 1-10"},
	{Name: ColEngagement, Min: 1, Max: 10, Driver: true, Description: "Engagement, 1-10"},
	{Name: ColLastHike, Min: 0, Max: 36, Driver: true, Description: "Months since last increment"},
	{Name: ColOvertime, Min: 0, Max: 80, Driver: true, Description: "Monthly average overtime hours"},
	{Name: ColAge, Min: 22, Max: 55, Description: "Age in years"},
	{Name: ColTenure, Min: 0, Max: 15, Description: "Years at the company"},
	{Name: ColSalary, Min: 3, Max: 20, Continuous: true, Description: "Annual salary in lakhs"},
	{Name: ColWorkLife, Min: 1, Max: 5, Description: "Work-life balance, 1-5"},
	{Name: ColDistance, Min: 1, Max: 40, Driver: true, Description: "Daily commute distance in km"},
}

// Fields returns the recognized numeric columns
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// LookupField returns the bound for a recognized column
func LookupField(name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FeatureSet selects the model inputs
type FeatureSet string

const (
	FeaturesExtended FeatureSet = "extended"
	FeaturesCore     FeatureSet = "core"
)

var (
	extendedFeatures = []string{
		ColAge, ColTenure, ColSatisfaction,
		ColLastHike, ColOvertime,
		ColEngagement, ColSalary,
		ColWorkLife, ColDistance,
	}
	coreFeatures = []string{ColSatisfaction, ColEngagement, ColLastHike, ColOvertime, ColDistance}
)

// ParseFeatureSet maps a configuration name to a FeatureSet
func ParseFeatureSet(name string) (FeatureSet, error) {
	switch FeatureSet(strings.ToLower(name)) {
	case FeaturesExtended, "":
		return FeaturesExtended, nil
	case FeaturesCore:
		return FeaturesCore, nil
	default:
		return "", fmt.Errorf("unknown feature set %q (want extended or core)", name)
	}
}

// Columns returns the model inputs in the fixed order used for both fitting
// and prediction
func (fs FeatureSet) Columns() []string {
	src := extendedFeatures
	if fs == FeaturesCore {
		src = coreFeatures
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// required returns the fields that must exist before scoring, in fill order
func (fs FeatureSet) required() []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Driver || fs != FeaturesCore {
			out = append(out, f)
		}
	}
	return out
}

// NormalizeName lower-cases a header and replaces each space with an underscore
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// NormalizeColumns rewrites every header in place with NormalizeName.
// Other whitespace is kept and duplicates are not merged
func NormalizeColumns(t *dataset.Table) {
	for i, c := range t.Columns {
		t.Columns[i] = NormalizeName(c)
	}
}
