// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package linear

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/grailbio/testutil"
)

// synthetic builds n rows of y = 2*x0 - 3*x1 + 0.5 with optional
// noise.
func synthetic(n int, noise float64) (*mat.Dense, []float64) {
	r := rand.New(rand.NewSource(0))
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0, x1 := r.Float64()*10, r.Float64()*10
		x.Set(i, 0, x0)
		x.Set(i, 1, x1)
		y[i] = 2*x0 - 3*x1 + 0.5 + noise*r.NormFloat64()
	}
	return x, y
}

func almost(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

func TestOLS(t *testing.T) {
	x, y := synthetic(100, 0)
	m, err := OLS(x, y)
	if err != nil {
		t.Fatal(err)
	}
	if !almost(m.Weights[0], 2, 1e-9) || !almost(m.Weights[1], -3, 1e-9) || !almost(m.Bias, 0.5, 1e-9) {
		t.Errorf("got weights %v bias %v, want [2 -3] 0.5", m.Weights, m.Bias)
	}
	pred := m.PredictAll(x)
	if got := MSE(pred, y); !almost(got, 0, 1e-18) {
		t.Errorf("got mse %v, want 0", got)
	}
	if got := R2(pred, y); !almost(got, 1, 1e-12) {
		t.Errorf("got r2 %v, want 1", got)
	}
}

func TestOLSDegenerate(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	if _, err := OLS(x, []float64{1}); err == nil {
		t.Error("expected error for mismatched labels")
	}
	if _, err := OLS(x, []float64{1, 2}); err == nil {
		t.Error("expected error for underdetermined system")
	}
}

func TestRidge(t *testing.T) {
	x, y := synthetic(200, 0.1)
	ols, err := OLS(x, y)
	if err != nil {
		t.Fatal(err)
	}
	small, err := Ridge(x, y, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	// With a vanishing penalty, ridge agrees with OLS.
	for i := range ols.Weights {
		if !almost(small.Weights[i], ols.Weights[i], 1e-6) {
			t.Errorf("got weight %v, want %v", small.Weights[i], ols.Weights[i])
		}
	}
	// A heavy penalty shrinks coefficients toward zero.
	heavy, err := Ridge(x, y, 1e6)
	if err != nil {
		t.Fatal(err)
	}
	for i := range heavy.Weights {
		if math.Abs(heavy.Weights[i]) >= math.Abs(ols.Weights[i]) {
			t.Errorf("weight %d not shrunk: %v vs %v", i, heavy.Weights[i], ols.Weights[i])
		}
	}
}

func TestSGD(t *testing.T) {
	x, y := synthetic(500, 0)
	scaler := FitScaler(x)
	sgd := NewSGD(0.01, 0, 200)
	if err := sgd.Fit(scaler.Transform(x), y); err != nil {
		t.Fatal(err)
	}
	pred := sgd.Model.PredictAll(scaler.Transform(x))
	if got := R2(pred, y); got < 0.99 {
		t.Errorf("got r2 %v, want >= 0.99", got)
	}
}

func TestSGDPartialFit(t *testing.T) {
	x, y := synthetic(500, 0)
	scaler := FitScaler(x)
	sx := scaler.Transform(x)
	sgd := NewSGD(0.01, 0, 0)
	// Feed the data in batches, several passes' worth.
	const batch = 100
	for pass := 0; pass < 200; pass++ {
		for lo := 0; lo < 500; lo += batch {
			bx := sx.Slice(lo, lo+batch, 0, 2)
			if err := sgd.PartialFit(bx, y[lo:lo+batch]); err != nil {
				t.Fatal(err)
			}
		}
	}
	pred := sgd.Model.PredictAll(sx)
	if got := R2(pred, y); got < 0.99 {
		t.Errorf("got r2 %v, want >= 0.99", got)
	}
	// Batches must agree on feature count.
	if err := sgd.PartialFit(mat.NewDense(1, 3, nil), []float64{0}); err == nil {
		t.Error("expected error for changed feature count")
	}
}

func TestScaler(t *testing.T) {
	x, _ := synthetic(100, 0)
	s := FitScaler(x)
	sx := s.Transform(x)
	n, d := sx.Dims()
	for j := 0; j < d; j++ {
		var mean, vari float64
		for i := 0; i < n; i++ {
			mean += sx.At(i, j)
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			dev := sx.At(i, j) - mean
			vari += dev * dev
		}
		vari /= float64(n - 1)
		if !almost(mean, 0, 1e-12) {
			t.Errorf("column %d: got mean %v, want 0", j, mean)
		}
		if !almost(vari, 1, 1e-9) {
			t.Errorf("column %d: got variance %v, want 1", j, vari)
		}
	}
	// Constant columns transform without dividing by zero.
	c := FitScaler(mat.NewDense(3, 1, []float64{7, 7, 7}))
	out := c.Apply([]float64{7})
	if got, want := out[0], 0.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestArtifactRoundtrip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(dir, "model")
	a := &Artifact{
		Features: []string{"x0", "x1"},
		Scaler:   &Scaler{Mean: []float64{1, 2}, Scale: []float64{3, 4}},
		Model:    Model{Weights: []float64{0.5, -0.25}, Bias: 2},
	}
	if err := Save(ctx, path, a); err != nil {
		t.Fatal(err)
	}
	b, err := Load(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("got %v, want %v", b, a)
	}
	v := []float64{4, 10}
	if got, want := b.Predict(v), a.Predict(v); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestArtifactPredict(t *testing.T) {
	a := &Artifact{
		Model: Model{Weights: []float64{2, -1}, Bias: 1},
	}
	if got, want := a.Predict([]float64{3, 4}), 3.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
