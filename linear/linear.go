// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package linear implements the linear models used by the taxitip
// recipes: ordinary least squares, ridge regression, and a
// stochastic gradient descent regressor supporting incremental
// fitting over partitions of data too large to hold in memory.
// Models fit and predict over gonum matrices; fitted models
// serialize to a single artifact that can be written to any storage
// scheme registered with base/file.
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/grailbio/base/errors"
)

// A Model is a fitted linear predictor: a weight per feature and an
// intercept. Fields are exported for gob serialization.
type Model struct {
	Weights []float64
	Bias    float64
}

// Predict returns the model's prediction for a single feature
// vector, which must have len(m.Weights) entries.
func (m *Model) Predict(x []float64) float64 {
	pred := m.Bias
	for i, w := range m.Weights {
		pred += w * x[i]
	}
	return pred
}

// PredictAll returns predictions for every row of x.
func (m *Model) PredictAll(x mat.Matrix) []float64 {
	n, d := x.Dims()
	preds := make([]float64, n)
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		preds[i] = m.Predict(row)
	}
	return preds
}

// OLS fits an ordinary least squares model with intercept by QR
// decomposition of the design matrix.
func OLS(x mat.Matrix, y []float64) (*Model, error) {
	n, d := x.Dims()
	if n != len(y) {
		return nil, errors.E("linear.OLS", "design matrix and labels disagree on row count")
	}
	if n < d+1 {
		return nil, errors.E("linear.OLS", "fewer rows than parameters")
	}
	var qr mat.QR
	qr.Factorize(augment(x))
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, mat.NewVecDense(n, y)); err != nil {
		return nil, errors.E("linear.OLS", err)
	}
	return unpack(&beta, d), nil
}

// Ridge fits an L2-regularized least squares model with intercept by
// solving the normal equations. The intercept is not penalized.
func Ridge(x mat.Matrix, y []float64, alpha float64) (*Model, error) {
	n, d := x.Dims()
	if n != len(y) {
		return nil, errors.E("linear.Ridge", "design matrix and labels disagree on row count")
	}
	if alpha < 0 {
		return nil, errors.E("linear.Ridge", "negative regularization")
	}
	xa := augment(x)
	var gram mat.SymDense
	gram.SymOuterK(1, xa.T())
	for i := 0; i < d; i++ {
		gram.SetSym(i, i, gram.At(i, i)+alpha)
	}
	var b mat.VecDense
	b.MulVec(xa.T(), mat.NewVecDense(n, y))
	var chol mat.Cholesky
	if !chol.Factorize(&gram) {
		return nil, errors.E("linear.Ridge", "singular normal equations")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &b); err != nil {
		return nil, errors.E("linear.Ridge", err)
	}
	weights := make([]float64, d)
	for i := range weights {
		weights[i] = beta.AtVec(i)
	}
	return &Model{Weights: weights, Bias: beta.AtVec(d)}, nil
}

// augment appends an all-ones intercept column to x.
func augment(x mat.Matrix) *mat.Dense {
	n, d := x.Dims()
	xa := mat.NewDense(n, d+1, nil)
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		for j, v := range row {
			xa.Set(i, j, v)
		}
		xa.Set(i, d, 1)
	}
	return xa
}

func unpack(beta *mat.Dense, d int) *Model {
	weights := make([]float64, d)
	for i := range weights {
		weights[i] = beta.At(i, 0)
	}
	return &Model{Weights: weights, Bias: beta.At(d, 0)}
}
