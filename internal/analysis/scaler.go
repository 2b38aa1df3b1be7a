package analysis

import (
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes feature columns with the population mean and standard
// deviation of the rows it was fitted on
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes per-column statistics. A constant column gets a divisor of 1
func FitScaler(x [][]float64) *Scaler {
	if len(x) == 0 {
		return &Scaler{}
	}

	width := len(x[0])
	s := &Scaler{Mean: make([]float64, width), Std: make([]float64, width)}
	col := make([]float64, len(x))
	for j := 0; j < width; j++ {
		for i, row := range x {
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j], s.Std[j] = mean, std
	}
	return s
}

// Transform returns a standardized copy of x
func (s *Scaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		z := make([]float64, len(row))
		for j, v := range row {
			z[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = z
	}
	return out
}
