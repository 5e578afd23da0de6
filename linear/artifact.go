// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package linear

import (
	"context"
	"encoding/gob"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// An Artifact is a fitted model together with everything needed to
// apply it to new data: the feature names the model was trained on
// and the scaler, if any, applied ahead of it. Artifacts gob-encode
// to a single file on any storage scheme registered with base/file.
type Artifact struct {
	// Features names the model's input columns, in order.
	Features []string
	// Scaler standardizes inputs before prediction; nil if the
	// model was trained on raw features.
	Scaler *Scaler
	// Model is the fitted predictor.
	Model Model
}

// Predict applies the artifact to a single raw feature vector.
func (a *Artifact) Predict(v []float64) float64 {
	if a.Scaler != nil {
		v = a.Scaler.Apply(v)
	}
	return a.Model.Predict(v)
}

// Save writes the artifact to the given path.
func Save(ctx context.Context, path string, a *Artifact) error {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E("linear.Save", path, err)
	}
	if err := gob.NewEncoder(f.Writer(ctx)).Encode(a); err != nil {
		f.Close(ctx)
		return errors.E("linear.Save", path, err)
	}
	return f.Close(ctx)
}

// Load reads an artifact written by Save.
func Load(ctx context.Context, path string) (*Artifact, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E("linear.Load", path, err)
	}
	defer f.Close(ctx)
	a := new(Artifact)
	if err := gob.NewDecoder(f.Reader(ctx)).Decode(a); err != nil {
		return nil, errors.E("linear.Load", path, err)
	}
	return a, nil
}
