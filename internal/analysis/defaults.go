package analysis

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/24bbnb21-oss/StaySmartAI/internal/dataset"
)

// FillPolicy selects how synthesized values are drawn
type FillPolicy string

const (
	// FillUniform draws integers uniformly from the inclusive bound; continuous
	// fields are uniform over [min, max)
	FillUniform FillPolicy = "uniform"
	// FillNormal draws from a normal centred on the bound midpoint with
	// standard deviation 2, clipped to the bound
	FillNormal FillPolicy = "normal"
)

const normalSigma = 2

func ParseFillPolicy(name string) (FillPolicy, error) {
	switch FillPolicy(strings.ToLower(name)) {
	case FillUniform, "":
		return FillUniform, nil
	case FillNormal:
		return FillNormal, nil
	default:
		return "", fmt.Errorf("unknown fill policy %q (want uniform or normal)", name)
	}
}

// Filler synthesizes bounded values for absent columns and blank cells
type Filler struct {
	policy FillPolicy
	rng    *rand.Rand
}

func NewFiller(policy FillPolicy, rng *rand.Rand) *Filler {
	return &Filler{policy: policy, rng: rng}
}

// Draw returns one synthesized value inside the field's bound
func (f *Filler) Draw(field Field) float64 {
	if f.policy == FillNormal {
		n := distuv.Normal{Mu: (field.Min + field.Max) / 2, Sigma: normalSigma, Src: f.rng}
		v := math.Min(math.Max(n.Rand(), field.Min), field.Max)
		if field.Continuous {
			return round2(v)
		}
		return math.Round(v)
	}

	if field.Continuous {
		v := field.Min + f.rng.Float64()*(field.Max-field.Min)
		return math.Min(round2(v), field.Max)
	}
	lo, hi := int(field.Min), int(field.Max)
	return float64(lo + f.rng.IntN(hi-lo+1))
}

// FillReport lists what Fill changed
type FillReport struct {
	Columns []string // appended columns, in fill order
	Cells   int      // blank cells filled inside columns that were present
}

// Fill makes every required field present and non-blank. Missing columns are
// appended in the order given; supplied values are left as they are, even
// when outside the bound
func (f *Filler) Fill(t *dataset.Table, required []Field) FillReport {
	var report FillReport

	for _, field := range required {
		idx := t.Index(field.Name)
		if idx < 0 {
			values := make([]string, t.Len())
			for i := range values {
				values[i] = dataset.FormatNumber(f.Draw(field))
			}
			// lengths always match
			_ = t.SetColumn(field.Name, values)
			report.Columns = append(report.Columns, field.Name)
			continue
		}

		for _, row := range t.Rows {
			if strings.TrimSpace(row[idx]) == "" {
				row[idx] = dataset.FormatNumber(f.Draw(field))
				report.Cells++
			}
		}
	}

	return report
}

// Notice renders the user-facing message for a fill, or "" when nothing was synthesized
func (r FillReport) Notice() string {
	var parts []string
	if len(r.Columns) > 0 {
		parts = append(parts, "missing columns auto-filled with synthetic values: "+strings.Join(r.Columns, ", "))
	}
	if r.Cells > 0 {
		parts = append(parts, fmt.Sprintf("%d blank cells auto-filled with synthetic values", r.Cells))
	}
	return strings.Join(parts, "; ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
