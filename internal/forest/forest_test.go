package forest

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func separable(n int) ([][]float64, []int) {
	x := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		v := float64(i)
		x[i] = []float64{v, float64(i % 3), 7}
		if v >= float64(n)/2 {
			y[i] = 1
		}
	}
	return x, y
}

func TestFit_Separable(t *testing.T) {
	x, y := separable(40)

	f, err := Fit(context.Background(), x, y, Config{Trees: 50}, rand.New(rand.NewPCG(42, 3)))
	require.NoError(t, err)
	assert.Equal(t, 50, f.Trees())

	assert.Less(t, f.PredictProba([]float64{1, 1, 7}), 0.2)
	assert.Greater(t, f.PredictProba([]float64{38, 2, 7}), 0.8)

	imp := f.Importances()
	require.Len(t, imp, 3)
	assert.Greater(t, imp[0], imp[1])
	assert.Equal(t, 0.0, imp[2])
}

func TestFit_Deterministic(t *testing.T) {
	x, y := separable(30)
	for i := range x {
		x[i][1] = float64((i * 7) % 11)
	}
	y[3], y[25] = 1, 0

	a, err := Fit(context.Background(), x, y, Config{}, rand.New(rand.NewPCG(42, 3)))
	require.NoError(t, err)
	b, err := Fit(context.Background(), x, y, Config{}, rand.New(rand.NewPCG(42, 3)))
	require.NoError(t, err)

	assert.Equal(t, a.PredictProbaAll(x), b.PredictProbaAll(x))
	assert.Equal(t, 120, a.Trees())
}

func TestFit_ProbabilityBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	x := make([][]float64, 60)
	y := make([]int, 60)
	for i := range x {
		x[i] = []float64{rng.Float64(), rng.Float64()}
		y[i] = rng.IntN(2)
	}
	y[0], y[1] = 0, 1

	f, err := Fit(context.Background(), x, y, Config{Trees: 10}, rand.New(rand.NewPCG(42, 3)))
	require.NoError(t, err)
	for _, p := range f.PredictProbaAll(x) {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestFit_Errors(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 3))

	tests := []struct {
		name    string
		x       [][]float64
		y       []int
		wantErr error
	}{
		{name: "no samples", x: nil, y: nil, wantErr: ErrNoSamples},
		{name: "all zeros", x: [][]float64{{1}, {2}}, y: []int{0, 0}, wantErr: ErrSingleClass},
		{name: "all ones", x: [][]float64{{1}, {2}}, y: []int{1, 1}, wantErr: ErrSingleClass},
		{name: "length mismatch", x: [][]float64{{1}, {2}}, y: []int{0}},
		{name: "ragged rows", x: [][]float64{{1, 2}, {2}}, y: []int{0, 1}},
		{name: "non-binary label", x: [][]float64{{1}, {2}}, y: []int{0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(context.Background(), tt.x, tt.y, Config{Trees: 3}, rng)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

type expiringContext struct {
	context.Context
	checks, limit int
}

func (c *expiringContext) Err() error {
	c.checks++
	if c.checks > c.limit {
		return context.DeadlineExceeded
	}
	return nil
}

func TestFit_StopsWhenContextExpires(t *testing.T) {
	x, y := separable(40)
	ctx := &expiringContext{Context: context.Background(), limit: 3}

	f, err := Fit(ctx, x, y, Config{Trees: 50}, rand.New(rand.NewPCG(42, 3)))
	assert.Nil(t, f)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 4, ctx.checks)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Fit(canceled, x, y, Config{Trees: 5}, rand.New(rand.NewPCG(42, 3)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{}.withDefaults(9)
	assert.Equal(t, 120, c.Trees)
	assert.Equal(t, 3, c.MaxFeatures)
	assert.Equal(t, 2, c.MinSamplesSplit)

	c = Config{MaxFeatures: 20}.withDefaults(5)
	assert.Equal(t, 5, c.MaxFeatures)

	c = Config{}.withDefaults(1)
	assert.Equal(t, 1, c.MaxFeatures)
}
