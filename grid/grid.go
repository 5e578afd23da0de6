// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package grid implements hyperparameter grid search for the SGD
// tip-fraction regressor. A grid is the cross product of candidate
// values; each point is scored by k-fold cross validation. Search
// distributes the fits over a Bigslice cluster, one task per point,
// with every task reading the same materialized training sample.
package grid

import (
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/taxitip/feature"
	"github.com/grailbio/taxitip/linear"
)

// A Point is one hyperparameter assignment for the SGD regressor.
type Point struct {
	// Rate is the learning rate.
	Rate float64
	// L2 is the coefficient penalty.
	L2 float64
	// Epochs is the number of training passes.
	Epochs int
}

// A Score is the cross-validated evaluation of one grid point:
// mean squared error and R², averaged over validation folds.
type Score struct {
	Point Point
	MSE   float64
	R2    float64
}

// Grid expands candidate values into their cross product.
func Grid(rates, l2s []float64, epochs []int) []Point {
	points := make([]Point, 0, len(rates)*len(l2s)*len(epochs))
	for _, rate := range rates {
		for _, l2 := range l2s {
			for _, e := range epochs {
				points = append(points, Point{Rate: rate, L2: l2, Epochs: e})
			}
		}
	}
	return points
}

// CrossValidate scores a grid point by k-fold cross validation over
// the given rows. Folds are assigned round-robin; each fold's model
// is trained with a scaler fit on that fold's training rows.
func CrossValidate(p Point, rows []feature.Row, folds int) (Score, error) {
	if folds < 2 {
		return Score{}, errors.E("grid.CrossValidate", "need at least 2 folds")
	}
	if len(rows) < folds {
		return Score{}, errors.E("grid.CrossValidate", "fewer rows than folds")
	}
	score := Score{Point: p}
	for fold := 0; fold < folds; fold++ {
		var train, valid []feature.Row
		for i, row := range rows {
			if i%folds == fold {
				valid = append(valid, row)
			} else {
				train = append(train, row)
			}
		}
		mse, r2, err := fitScore(p, train, valid)
		if err != nil {
			return Score{}, err
		}
		score.MSE += mse / float64(folds)
		score.R2 += r2 / float64(folds)
	}
	return score, nil
}

func fitScore(p Point, train, valid []feature.Row) (mse, r2 float64, err error) {
	x, y := feature.Matrix(train)
	scaler := linear.FitScaler(x)
	sgd := linear.NewSGD(p.Rate, p.L2, p.Epochs)
	if err := sgd.Fit(scaler.Transform(x), y); err != nil {
		return 0, 0, err
	}
	vx, vy := feature.Matrix(valid)
	pred := sgd.Model.PredictAll(scaler.Transform(vx))
	return linear.MSE(pred, vy), linear.R2(pred, vy), nil
}

// Best returns the score with the lowest mean squared error.
func Best(scores []Score) Score {
	best := scores[0]
	for _, s := range scores[1:] {
		if s.MSE < best.MSE {
			best = s
		}
	}
	return best
}

// Sort orders scores by ascending mean squared error.
func Sort(scores []Score) {
	sort.Slice(scores, func(i, j int) bool { return scores[i].MSE < scores[j].MSE })
}
