// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package linear

import (
	"gonum.org/v1/gonum/stat"
)

// MSE returns the mean squared error of predictions against labels.
func MSE(pred, y []float64) float64 {
	if len(pred) != len(y) {
		panic("linear: prediction and label lengths disagree")
	}
	var sum float64
	for i := range pred {
		d := pred[i] - y[i]
		sum += d * d
	}
	return sum / float64(len(pred))
}

// R2 returns the coefficient of determination of predictions against
// labels.
func R2(pred, y []float64) float64 {
	return stat.RSquaredFrom(pred, y, nil)
}
