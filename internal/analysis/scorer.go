package analysis

import (
	"fmt"
	"strings"
)

// Weights are the coefficients of the raw risk formula
type Weights struct {
	Name         string  `json:"name"`
	Satisfaction float64 `json:"satisfaction"`
	Engagement   float64 `json:"engagement"`
	LastHike     float64 `json:"last_hike"`
	Overtime     float64 `json:"overtime"`
	Distance     float64 `json:"distance"`
}

var (
	WeightsA = Weights{Name: "a", Satisfaction: 0.25, Engagement: 0.25, LastHike: 0.20, Overtime: 0.15, Distance: 0.15}
	WeightsB = Weights{Name: "b", Satisfaction: 0.30, Engagement: 0.30, LastHike: 0.20, Overtime: 0.10, Distance: 0.10}
)

// LabelThreshold is the raw risk above which an employee is labelled as leaving
const LabelThreshold = 5.5

func ParseWeights(name string) (Weights, error) {
	switch strings.ToLower(name) {
	case "a", "":
		return WeightsA, nil
	case "b":
		return WeightsB, nil
	default:
		return Weights{}, fmt.Errorf("unknown weight set %q (want a or b)", name)
	}
}

// RawRisk is the weighted sum of the five drivers, each rescaled to 0-10.
// Out-of-bound inputs are not clipped
func (w Weights) RawRisk(d Drivers) float64 {
	return w.Satisfaction*(10-d.Satisfaction) +
		w.Engagement*(10-d.Engagement) +
		w.LastHike*(d.LastHike/36*10) +
		w.Overtime*(d.Overtime/80*10) +
		w.Distance*(d.Distance/40*10)
}

// Label is the synthetic attrition label derived from a raw risk
func Label(rawRisk float64) int {
	if rawRisk > LabelThreshold {
		return 1
	}
	return 0
}
