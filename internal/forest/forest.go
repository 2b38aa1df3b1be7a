// Package forest is a small random-forest binary classifier: bootstrap
// aggregation of CART trees grown with Gini impurity and random feature
// subsets at every split.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

var (
	ErrNoSamples   = errors.New("forest: no training samples")
	ErrSingleClass = errors.New("forest: training labels contain a single class")
)

// Config holds the forest hyperparameters. Zero values select defaults.
type Config struct {
	Trees           int // default 120
	MaxFeatures     int // features tried per split, default floor(sqrt(features))
	MinSamplesSplit int // default 2
	MaxDepth        int // 0 grows trees until leaves are pure
}

func (c Config) withDefaults(nFeatures int) Config {
	if c.Trees <= 0 {
		c.Trees = 120
	}
	if c.MaxFeatures <= 0 {
		c.MaxFeatures = max(1, int(math.Sqrt(float64(nFeatures))))
	}
	if c.MaxFeatures > nFeatures {
		c.MaxFeatures = nFeatures
	}
	if c.MinSamplesSplit < 2 {
		c.MinSamplesSplit = 2
	}
	return c
}

// Forest is a fitted ensemble. It is read-only after Fit and safe for
// concurrent prediction.
type Forest struct {
	trees      []*node
	nFeatures  int
	importance []float64
}

// Fit grows a forest on x (rows of equal width) with binary labels y.
// All randomness is drawn from rng, so a fixed seed gives a fixed forest.
// ctx is checked before each tree; its error is returned unwrapped.
func Fit(ctx context.Context, x [][]float64, y []int, cfg Config, rng *rand.Rand) (*Forest, error) {
	if len(x) == 0 {
		return nil, ErrNoSamples
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("forest: %d rows but %d labels", len(x), len(y))
	}

	nFeatures := len(x[0])
	if nFeatures == 0 {
		return nil, fmt.Errorf("forest: rows have no features")
	}

	pos := 0
	for i, label := range y {
		if len(x[i]) != nFeatures {
			return nil, fmt.Errorf("forest: row %d has %d features, expected %d", i, len(x[i]), nFeatures)
		}
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("forest: label %d at row %d is not binary", label, i)
		}
		pos += label
	}
	if pos == 0 || pos == len(y) {
		return nil, ErrSingleClass
	}

	cfg = cfg.withDefaults(nFeatures)
	f := &Forest{
		trees:      make([]*node, 0, cfg.Trees),
		nFeatures:  nFeatures,
		importance: make([]float64, nFeatures),
	}

	n := len(x)
	for t := 0; t < cfg.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.IntN(n)
		}

		b := &treeBuilder{
			x:           x,
			y:           y,
			maxFeatures: cfg.MaxFeatures,
			minSplit:    cfg.MinSamplesSplit,
			maxDepth:    cfg.MaxDepth,
			rng:         rng,
			importance:  make([]float64, nFeatures),
			buf:         make([]sample, 0, n),
		}
		f.trees = append(f.trees, b.build(idx, 0))
		accumulateImportance(f.importance, b.importance)
	}

	normalize(f.importance)
	return f, nil
}

func accumulateImportance(dst, tree []float64) {
	total := 0.0
	for _, v := range tree {
		total += v
	}
	if total == 0 {
		return
	}
	for i, v := range tree {
		dst[i] += v / total
	}
}

func normalize(v []float64) {
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total == 0 {
		return
	}
	for i := range v {
		v[i] /= total
	}
}

// Trees returns the number of fitted trees.
func (f *Forest) Trees() int {
	return len(f.trees)
}

// PredictProba returns the mean class-1 leaf fraction across trees.
func (f *Forest) PredictProba(row []float64) float64 {
	sum := 0.0
	for _, t := range f.trees {
		sum += t.predict(row)
	}
	return sum / float64(len(f.trees))
}

// PredictProbaAll scores every row of x.
func (f *Forest) PredictProbaAll(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = f.PredictProba(row)
	}
	return out
}

// Importances returns the normalized mean decrease in Gini impurity per feature.
func (f *Forest) Importances() []float64 {
	out := make([]float64, len(f.importance))
	copy(out, f.importance)
	return out
}
