package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Boundaries are the lowest flight risk of the Medium and High tiers
type Boundaries struct {
	Medium int `json:"medium"`
	High   int `json:"high"`
}

var DefaultBoundaries = Boundaries{Medium: 50, High: 70}

func (b Boundaries) Validate() error {
	if b.Medium <= 0 || b.High <= b.Medium || b.High > 100 {
		return fmt.Errorf("invalid category boundaries %d/%d: want 0 < medium < high <= 100", b.Medium, b.High)
	}
	return nil
}

// Categorize maps [0,Medium) to Low, [Medium,High) to Medium and the rest to High
func (b Boundaries) Categorize(flightRisk int) Category {
	switch {
	case flightRisk >= b.High:
		return CategoryHigh
	case flightRisk >= b.Medium:
		return CategoryMedium
	default:
		return CategoryLow
	}
}

const maxReasons = 3

type reasonRule struct {
	label string
	holds func(Drivers) bool
}

// reasonRules are in priority order
var reasonRules = []reasonRule{
	{"Low satisfaction", func(d Drivers) bool { return d.Satisfaction < 5 }},
	{"Low engagement", func(d Drivers) bool { return d.Engagement < 5 }},
	{"No recent hike", func(d Drivers) bool { return d.LastHike > 18 }},
	{"High overtime", func(d Drivers) bool { return d.Overtime > 50 }},
	{"Long commute", func(d Drivers) bool { return d.Distance > 25 }},
}

// Reasons returns the first three rules that hold for d
func Reasons(d Drivers) []string {
	out := make([]string, 0, maxReasons)
	for _, r := range reasonRules {
		if len(out) == maxReasons {
			break
		}
		if r.holds(d) {
			out = append(out, r.label)
		}
	}
	return out
}

// Explain joins Reasons with ", "
func Explain(d Drivers) string {
	return strings.Join(Reasons(d), ", ")
}

// FlightRiskFromProbability converts a class-1 probability to a 0-100 score
func FlightRiskFromProbability(p float64) int {
	return clampScore(math.RoundToEven(p * 100))
}

// FlightRiskFromRaw is the score used when no model can be fitted
func FlightRiskFromRaw(raw float64) int {
	return clampScore(math.RoundToEven(raw * 10))
}

func clampScore(v float64) int {
	return int(math.Min(math.Max(v, 0), 100))
}
