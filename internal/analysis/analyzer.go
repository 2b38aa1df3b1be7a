package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/24bbnb21-oss/StaySmartAI/internal/config"
	"github.com/24bbnb21-oss/StaySmartAI/internal/dataset"
	"github.com/24bbnb21-oss/StaySmartAI/internal/forest"
)

// DefaultSeed makes runs reproducible when no seed is configured
const DefaultSeed = 42

// minHoldoutRows is the smallest table that is split for hold-out accuracy
const minHoldoutRows = 5

// Random streams derived from the run seed. Each stage owns one stream so
// that skipping a stage (no columns to fill) leaves the others unchanged
const (
	streamFill uint64 = iota + 1
	streamSplit
	streamForest
)

// Options configures one pipeline run
type Options struct {
	Seed            uint64
	Weights         Weights
	Fill            FillPolicy
	Features        FeatureSet
	HoldoutFraction float64
	Trees           int
	Boundaries      Boundaries
	ReplacementCost float64
	TopN            int
}

func DefaultOptions() Options {
	return Options{
		Seed:            DefaultSeed,
		Weights:         WeightsA,
		Fill:            FillUniform,
		Features:        FeaturesExtended,
		HoldoutFraction: 0.2,
		Trees:           120,
		Boundaries:      DefaultBoundaries,
		ReplacementCost: DefaultReplacementCost,
		TopN:            10,
	}
}

// OptionsFromConfig resolves the named scoring settings
func OptionsFromConfig(cfg config.ScoringConfig) (Options, error) {
	weights, err := ParseWeights(cfg.Weights)
	if err != nil {
		return Options{}, err
	}
	fill, err := ParseFillPolicy(cfg.Fill)
	if err != nil {
		return Options{}, err
	}
	features, err := ParseFeatureSet(cfg.Features)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Seed:            cfg.Seed,
		Weights:         weights,
		Fill:            fill,
		Features:        features,
		HoldoutFraction: cfg.HoldoutFraction,
		Trees:           cfg.Trees,
		Boundaries:      Boundaries{Medium: cfg.MediumThreshold, High: cfg.HighThreshold},
		ReplacementCost: cfg.ReplacementCost,
		TopN:            cfg.TopN,
	}
	return opts, opts.Validate()
}

func (o Options) Validate() error {
	if o.HoldoutFraction < 0 || o.HoldoutFraction >= 1 {
		return fmt.Errorf("holdout fraction %v must be in [0,1)", o.HoldoutFraction)
	}
	if o.Trees <= 0 {
		return fmt.Errorf("tree count must be positive, got %d", o.Trees)
	}
	if o.TopN <= 0 {
		return fmt.Errorf("top-N must be positive, got %d", o.TopN)
	}
	return o.Boundaries.Validate()
}

// Analyzer runs the scoring pipeline. It holds no per-run state and may be
// shared; every call to Analyze builds its own random streams and model
type Analyzer struct {
	opts   Options
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer. A nil logger uses slog.Default()
func NewAnalyzer(opts Options, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{opts: opts, logger: logger}
}

func (a *Analyzer) Options() Options {
	return a.opts
}

// WithSeed returns an analyzer that differs only in its seed
func (a *Analyzer) WithSeed(seed uint64) *Analyzer {
	opts := a.opts
	opts.Seed = seed
	return &Analyzer{opts: opts, logger: a.logger}
}

// Analyze scores every row of t. The table is modified in place: headers are
// normalized, missing fields appended and the derived columns set. A
// *dataset.ParseError is returned when a recognized column holds a value that
// is not a number
func (a *Analyzer) Analyze(ctx context.Context, t *dataset.Table) (*Result, error) {
	start := time.Now()
	opts := a.opts
	features := opts.Features.Columns()

	NormalizeColumns(t)

	res := &Result{
		Table:     t,
		Employees: []Employee{},
		Defaulted: []string{},
		Model: ModelReport{
			Kind:       ModelNone,
			Features:   features,
			Seed:       opts.Seed,
			Weights:    opts.Weights.Name,
			Disclaimer: Disclaimer,
		},
	}

	if t.Len() == 0 {
		for _, col := range DerivedColumns {
			if err := t.SetColumn(col, []string{}); err != nil {
				return nil, err
			}
		}
		res.NoData = true
		res.Summary = Summarize(nil, features, opts.ReplacementCost, opts.TopN)
		a.logger.Info("Analysis skipped: no data rows", "columns", len(t.Columns))
		return res, nil
	}

	filler := NewFiller(opts.Fill, rand.New(rand.NewPCG(opts.Seed, streamFill)))
	fill := filler.Fill(t, opts.Features.required())
	res.Defaulted = append(res.Defaulted, fill.Columns...)
	res.Notice = fill.Notice()
	if res.Notice != "" {
		a.logger.Warn("Synthetic values used", "columns", fill.Columns, "blank_cells", fill.Cells, "policy", opts.Fill)
	}

	columns, err := numericColumns(t, slices.Concat(coreFeatures, features))
	if err != nil {
		return nil, err
	}

	n := t.Len()
	drivers := make([]Drivers, n)
	raw := make([]float64, n)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		drivers[i] = Drivers{
			Satisfaction: columns[ColSatisfaction][i],
			Engagement:   columns[ColEngagement][i],
			LastHike:     columns[ColLastHike][i],
			Overtime:     columns[ColOvertime][i],
			Distance:     columns[ColDistance][i],
		}
		raw[i] = opts.Weights.RawRisk(drivers[i])
		labels[i] = Label(raw[i])
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x := make([][]float64, n)
	for i := range x {
		row := make([]float64, len(features))
		for j, f := range features {
			row[j] = columns[f][i]
		}
		x[i] = row
	}

	flight, err := a.predict(ctx, x, labels, raw, &res.Model)
	if err != nil {
		return nil, err
	}

	leftCol := make([]string, n)
	flightCol := make([]string, n)
	categoryCol := make([]string, n)
	reasonsCol := make([]string, n)
	for i := 0; i < n; i++ {
		category := opts.Boundaries.Categorize(flight[i])
		reasons := Explain(drivers[i])
		leftCol[i] = strconv.Itoa(labels[i])
		flightCol[i] = strconv.Itoa(flight[i])
		categoryCol[i] = string(category)
		reasonsCol[i] = reasons

		res.Employees = append(res.Employees, Employee{
			Row:        i + 1,
			Drivers:    drivers[i],
			RawRisk:    raw[i],
			Left:       labels[i],
			FlightRisk: flight[i],
			Category:   category,
			Reasons:    reasons,
		})
	}

	for _, c := range []struct {
		name   string
		values []string
	}{
		{ColLeft, leftCol},
		{ColFlightRisk, flightCol},
		{ColRiskCategory, categoryCol},
		{ColRiskReasons, reasonsCol},
	} {
		if err := t.SetColumn(c.name, c.values); err != nil {
			return nil, err
		}
	}

	for i := range res.Employees {
		res.Employees[i].Record = t.Record(i)
	}
	res.Summary = Summarize(res.Employees, features, opts.ReplacementCost, opts.TopN)

	a.logger.Info("Analysis pipeline finished",
		"rows", n,
		"model", res.Model.Kind,
		"defaulted_fields", res.Defaulted,
		"high_risk", res.Summary.HighRiskCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// predict fills report and returns one flight risk per row. It falls back to
// the scaled raw risk when the labels it would train on have a single class
func (a *Analyzer) predict(ctx context.Context, x [][]float64, labels []int, raw []float64, report *ModelReport) ([]int, error) {
	opts := a.opts
	n := len(x)

	train, test := a.split(n)
	trainX := pick(x, train)
	trainY := pick(labels, train)
	report.TrainRows, report.TestRows = len(train), len(test)

	if reason := singleClass(labels, trainY); reason != "" {
		return fallback(raw, report, reason), nil
	}

	scaler := FitScaler(trainX)
	model, err := forest.Fit(ctx, scaler.Transform(trainX), trainY,
		forest.Config{Trees: opts.Trees},
		rand.New(rand.NewPCG(opts.Seed, streamForest)))
	if errors.Is(err, forest.ErrSingleClass) {
		return fallback(raw, report, "training labels have a single class"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fit model: %w", err)
	}

	proba := model.PredictProbaAll(scaler.Transform(x))
	flight := make([]int, n)
	for i, p := range proba {
		flight[i] = FlightRiskFromProbability(p)
	}

	report.Kind = ModelRandomForest
	report.Trees = model.Trees()
	report.FeatureImportance = make(map[string]float64, len(report.Features))
	for j, imp := range model.Importances() {
		report.FeatureImportance[report.Features[j]] = math.Round(imp*1e4) / 1e4
	}

	if len(test) > 0 {
		correct := 0
		for _, i := range test {
			predicted := 0
			if proba[i] > 0.5 {
				predicted = 1
			}
			if predicted == labels[i] {
				correct++
			}
		}
		acc := float64(correct) / float64(len(test))
		report.HoldoutAccuracy = &acc
	}

	return flight, nil
}

// split returns training and hold-out row indices. Small tables are not split
func (a *Analyzer) split(n int) (train, test []int) {
	frac := a.opts.HoldoutFraction
	if frac <= 0 || n < minHoldoutRows {
		train = make([]int, n)
		for i := range train {
			train[i] = i
		}
		return train, nil
	}

	perm := rand.New(rand.NewPCG(a.opts.Seed, streamSplit)).Perm(n)
	testN := min(int(math.Ceil(float64(n)*frac)), n-1)
	return perm[testN:], perm[:testN]
}

func singleClass(all, train []int) string {
	if constant(all) {
		return fmt.Sprintf("every row has left=%d", all[0])
	}
	if constant(train) {
		return fmt.Sprintf("every training row has left=%d", train[0])
	}
	return ""
}

func constant(labels []int) bool {
	for _, l := range labels[1:] {
		if l != labels[0] {
			return false
		}
	}
	return true
}

func fallback(raw []float64, report *ModelReport, reason string) []int {
	report.Kind = ModelFallback
	report.FallbackReason = reason
	flight := make([]int, len(raw))
	for i, r := range raw {
		flight[i] = FlightRiskFromRaw(r)
	}
	return flight
}

func pick[T any](src []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}

// numericColumns parses each named column once
func numericColumns(t *dataset.Table, names []string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(names))
	for _, name := range names {
		if _, done := out[name]; done {
			continue
		}
		values, _, err := t.Floats(name)
		if err != nil {
			return nil, err
		}
		out[name] = values
	}
	return out, nil
}

func parseCell(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
