// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/grailbio/base/errors"
)

// SGD is a linear regressor trained by stochastic gradient descent
// on the squared loss. Unlike OLS and Ridge it supports incremental
// fitting: PartialFit folds one batch of rows into the model without
// revisiting earlier batches, so arbitrarily large datasets can be
// fit one partition at a time.
type SGD struct {
	// Rate is the learning rate.
	Rate float64
	// L2 is the coefficient penalty; zero disables regularization.
	L2 float64
	// Epochs is the number of passes Fit makes over its input.
	Epochs int

	// Model holds the current parameters. It is valid after the
	// first Fit or PartialFit call.
	Model Model
}

// NewSGD returns an SGD regressor with the given learning rate,
// penalty, and epoch count.
func NewSGD(rate, l2 float64, epochs int) *SGD {
	return &SGD{Rate: rate, L2: l2, Epochs: epochs}
}

// Fit trains the model from scratch, making Epochs passes over the
// rows of x.
func (s *SGD) Fit(x mat.Matrix, y []float64) error {
	_, d := x.Dims()
	s.Model = Model{Weights: make([]float64, d)}
	for epoch := 0; epoch < s.Epochs; epoch++ {
		if err := s.PartialFit(x, y); err != nil {
			return err
		}
	}
	return nil
}

// PartialFit makes a single pass over the rows of x, updating the
// model in place. The first call initializes the parameters; later
// calls may present different batches.
func (s *SGD) PartialFit(x mat.Matrix, y []float64) error {
	n, d := x.Dims()
	if n != len(y) {
		return errors.E("linear.SGD", "design matrix and labels disagree on row count")
	}
	if s.Model.Weights == nil {
		s.Model = Model{Weights: make([]float64, d)}
	}
	if len(s.Model.Weights) != d {
		return errors.E("linear.SGD", "batch feature count changed between fits")
	}
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		g := s.Model.Predict(row) - y[i]
		for j, w := range s.Model.Weights {
			s.Model.Weights[j] = w - s.Rate*(g*row[j]+s.L2*w)
		}
		s.Model.Bias -= s.Rate * g
	}
	return nil
}
