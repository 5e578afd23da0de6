// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package grid

import (
	"context"

	"github.com/grailbio/bigslice"
	"github.com/grailbio/bigslice/exec"
	"github.com/grailbio/bigslice/sliceio"

	"github.com/grailbio/taxitip"
)

// search evaluates grid points in parallel, one shard per point.
// Every shard loads the materialized training sample and cross
// validates its point, emitting a single score row. The sample is
// loaded per shard rather than shipped through the task graph: the
// sample is small by construction, and reading it from storage is
// how each worker would obtain it anyway.
var search = bigslice.Func(func(points []Point, paths []string, folds int) bigslice.Slice {
	ctx := context.Background()
	type state struct {
		done bool
	}
	return bigslice.ReaderFunc(len(points), func(shard int, state *state, out []Score) (int, error) {
		if state.done {
			return 0, sliceio.EOF
		}
		rows, err := taxitip.ReadRows(ctx, paths)
		if err != nil {
			return 0, err
		}
		score, err := CrossValidate(points[shard], rows, folds)
		if err != nil {
			return 0, err
		}
		state.done = true
		out[0] = score
		return 1, nil
	})
})

// Search cross-validates every grid point on the session's cluster,
// reading the training sample materialized at paths (see
// taxitip.WriteRows). It returns all scores ordered by ascending
// mean squared error.
func Search(ctx context.Context, sess *exec.Session, points []Point, paths []string, folds int) ([]Score, error) {
	res, err := sess.Run(ctx, search, points, paths, folds)
	if err != nil {
		return nil, err
	}
	scan := res.Scan(ctx)
	scores := make([]Score, 0, len(points))
	var score Score
	for scan.Scan(ctx, &score) {
		scores = append(scores, score)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	Sort(scores)
	return scores, nil
}
