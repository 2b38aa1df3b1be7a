package analysis

import (
	"math"
	"slices"
)

// DefaultReplacementCost is the assumed cost in INR of replacing one employee
const DefaultReplacementCost = 600000

const rupeesPerCrore = 1e7

// AtRisk is one entry of the "most likely to leave" list
type AtRisk struct {
	Row        int                `json:"row"`
	FlightRisk int                `json:"flight_risk"`
	Category   Category           `json:"risk_category"`
	Reasons    string             `json:"risk_reasons"`
	Features   map[string]float64 `json:"features"`
}

// Summary holds the dashboard figures of one run
type Summary struct {
	TotalEmployees    int              `json:"total_employees"`
	HighRiskCount     int              `json:"high_risk_count"`
	AverageFlightRisk float64          `json:"average_flight_risk"`
	CostAtRisk        float64          `json:"cost_at_risk_inr"`
	CostAtRiskCrore   float64          `json:"cost_at_risk_crore"`
	Distribution      map[Category]int `json:"distribution"`
	TopAtRisk         []AtRisk         `json:"top_at_risk"`
}

// Summarize computes dashboard figures. The top list is ordered by flight
// risk, highest first, keeping row order among equal scores
func Summarize(employees []Employee, features []string, replacementCost float64, topN int) Summary {
	s := Summary{
		TotalEmployees: len(employees),
		Distribution: map[Category]int{
			CategoryLow:    0,
			CategoryMedium: 0,
			CategoryHigh:   0,
		},
		TopAtRisk: []AtRisk{},
	}
	if len(employees) == 0 {
		return s
	}

	total := 0
	for _, e := range employees {
		s.Distribution[e.Category]++
		total += e.FlightRisk
	}
	s.HighRiskCount = s.Distribution[CategoryHigh]
	s.AverageFlightRisk = math.Round(float64(total)/float64(len(employees))*10) / 10
	s.CostAtRisk = float64(s.HighRiskCount) * replacementCost
	s.CostAtRiskCrore = math.Round(s.CostAtRisk/rupeesPerCrore*100) / 100

	ranked := slices.Clone(employees)
	slices.SortStableFunc(ranked, func(a, b Employee) int { return b.FlightRisk - a.FlightRisk })
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	for _, e := range ranked {
		s.TopAtRisk = append(s.TopAtRisk, AtRisk{
			Row:        e.Row,
			FlightRisk: e.FlightRisk,
			Category:   e.Category,
			Reasons:    e.Reasons,
			Features:   featureValues(e, features),
		})
	}
	return s
}

func featureValues(e Employee, features []string) map[string]float64 {
	out := make(map[string]float64, len(features))
	for _, f := range features {
		if v, ok := parseCell(e.Record[f]); ok {
			out[f] = v
		}
	}
	return out
}
