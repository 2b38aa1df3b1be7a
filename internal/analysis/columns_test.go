package analysis

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/24bbnb21-oss/StaySmartAI/internal/dataset"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Satisfaction Score", "satisfaction_score"},
		{"OVERTIME_HOURS", "overtime_hours"},
		{" Age", "_age"},
		{"Distance  From Home", "distance__from_home"},
		{"years\tat company", "years\tat_company"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeName(tt.input), "input %q", tt.input)
	}
}

func TestNormalizeColumns_Idempotent(t *testing.T) {
	table := dataset.New([]string{"Employee ID", "Satisfaction Score", "satisfaction score", "Last Hike Months"})
	table.Rows = [][]string{{"E1", "4", "5", "12"}}

	NormalizeColumns(table)
	once := append([]string(nil), table.Columns...)
	NormalizeColumns(table)

	assert.Equal(t, once, table.Columns)
	assert.Equal(t, []string{"employee_id", "satisfaction_score", "satisfaction_score", "last_hike_months"}, table.Columns)
	assert.Equal(t, []string{"E1", "4", "5", "12"}, table.Rows[0])

	empty := dataset.New(nil)
	NormalizeColumns(empty)
	assert.Empty(t, empty.Columns)
}

func TestFeatureSet_Columns(t *testing.T) {
	assert.Equal(t, []string{
		"age", "years_at_company", "satisfaction_score",
		"last_hike_months", "overtime_hours",
		"engagement_score", "salary_lakhs",
		"work_life_balance", "distance_from_home",
	}, FeaturesExtended.Columns())
	assert.Len(t, FeaturesCore.Columns(), 5)

	fs, err := ParseFeatureSet("CORE")
	require.NoError(t, err)
	assert.Equal(t, FeaturesCore, fs)
	_, err = ParseFeatureSet("all")
	assert.Error(t, err)

	assert.Len(t, FeaturesCore.required(), 5)
	assert.Len(t, FeaturesExtended.required(), 9)
}

func TestFiller_DrawWithinBounds(t *testing.T) {
	for _, policy := range []FillPolicy{FillUniform, FillNormal} {
		t.Run(string(policy), func(t *testing.T) {
			filler := NewFiller(policy, rand.New(rand.NewPCG(42, 1)))
			for _, field := range Fields() {
				for i := 0; i < 2000; i++ {
					v := filler.Draw(field)
					require.GreaterOrEqual(t, v, field.Min, field.Name)
					require.LessOrEqual(t, v, field.Max, field.Name)
					if !field.Continuous {
						require.Equal(t, math.Trunc(v), v, field.Name)
					}
				}
			}
		})
	}
}

func TestFiller_UniformCoversInclusiveBound(t *testing.T) {
	filler := NewFiller(FillUniform, rand.New(rand.NewPCG(1, 1)))
	field, ok := LookupField(ColWorkLife)
	require.True(t, ok)

	seen := map[float64]bool{}
	for i := 0; i < 1000; i++ {
		seen[filler.Draw(field)] = true
	}
	assert.Len(t, seen, 5)
	assert.True(t, seen[1])
	assert.True(t, seen[5])
}

func TestFiller_Fill(t *testing.T) {
	for _, rows := range []int{1, 7, 250} {
		t.Run(strconv.Itoa(rows), func(t *testing.T) {
			table := dataset.New([]string{"name", "satisfaction_score", "overtime_hours"})
			for i := 0; i < rows; i++ {
				sat := "3"
				if i%2 == 0 {
					sat = ""
				}
				table.Rows = append(table.Rows, []string{"emp" + strconv.Itoa(i), sat, "95"})
			}

			report := NewFiller(FillUniform, rand.New(rand.NewPCG(42, 1))).Fill(table, FeaturesExtended.required())

			assert.Equal(t, []string{
				ColEngagement, ColLastHike, ColAge, ColTenure, ColSalary, ColWorkLife, ColDistance,
			}, report.Columns)
			assert.Equal(t, (rows+1)/2, report.Cells)
			assert.Contains(t, report.Notice(), "missing columns auto-filled with synthetic values: engagement_score")

			for _, field := range FeaturesExtended.required() {
				values, missing, err := table.Floats(field.Name)
				require.NoError(t, err)
				assert.NotContains(t, missing, true, field.Name)
				if field.Name == ColOvertime {
					// supplied values pass through even when out of bound
					assert.Equal(t, 95.0, values[0])
					continue
				}
				for _, v := range values {
					assert.GreaterOrEqual(t, v, field.Min)
					assert.LessOrEqual(t, v, field.Max)
				}
			}
		})
	}
}

func TestFiller_NothingToFill(t *testing.T) {
	table := dataset.New(FeaturesCore.Columns())
	table.Rows = [][]string{{"5", "5", "5", "5", "5"}}

	report := NewFiller(FillNormal, rand.New(rand.NewPCG(42, 1))).Fill(table, FeaturesCore.required())
	assert.Empty(t, report.Columns)
	assert.Zero(t, report.Cells)
	assert.Empty(t, report.Notice())
	assert.Equal(t, FeaturesCore.Columns(), table.Columns)
}

func TestParseFillPolicy(t *testing.T) {
	p, err := ParseFillPolicy("Normal")
	require.NoError(t, err)
	assert.Equal(t, FillNormal, p)

	_, err = ParseFillPolicy("gaussian")
	assert.True(t, err != nil && strings.Contains(err.Error(), "gaussian"))
}
