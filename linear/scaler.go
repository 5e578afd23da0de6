// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package linear

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// A Scaler standardizes feature columns to zero mean and unit
// variance. SGD in particular is sensitive to feature scale; the
// recipes fit a scaler on training data and apply it ahead of the
// model. Fields are exported for gob serialization.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes column means and standard deviations of x.
// Constant columns get unit scale so that transforming is always
// defined.
func FitScaler(x mat.Matrix) *Scaler {
	n, d := x.Dims()
	s := &Scaler{Mean: make([]float64, d), Scale: make([]float64, d)}
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, x)
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s
}

// Transform returns a standardized copy of x.
func (s *Scaler) Transform(x mat.Matrix) *mat.Dense {
	n, d := x.Dims()
	out := mat.NewDense(n, d, nil)
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		out.SetRow(i, s.Apply(row))
	}
	return out
}

// Apply standardizes a single feature vector, returning a new slice.
func (s *Scaler) Apply(v []float64) []float64 {
	out := make([]float64, len(v))
	for j := range v {
		out[j] = (v[j] - s.Mean[j]) / s.Scale[j]
	}
	return out
}
