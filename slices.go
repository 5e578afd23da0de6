// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package taxitip

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigslice"
	"github.com/grailbio/bigslice/metrics"
	"github.com/grailbio/bigslice/sliceio"

	"github.com/grailbio/taxitip/feature"
	"github.com/grailbio/taxitip/trip"
)

// DroppedFares counts rows excluded by feature derivation because
// of a non-positive fare. Read it from a result's metrics scope.
var DroppedFares = metrics.NewCounter()

// Trips returns a Slice<trip.Trip> reading the given monthly trip
// files, one shard per file. Malformed rows are skipped by the trip
// decoder and logged per shard.
func Trips(files []string) bigslice.Slice {
	ctx := context.Background()
	type state struct {
		reader *trip.Reader
		file   file.File
	}
	return bigslice.ReaderFunc(len(files), func(shard int, state *state, trips []trip.Trip) (n int, err error) {
		if state.file == nil {
			log.Printf("reading trips from %s", files[shard])
			state.file, err = file.Open(ctx, files[shard])
			if err != nil {
				return
			}
			state.reader, err = trip.NewReader(state.file.Reader(ctx))
			if err != nil {
				state.file.Close(ctx)
				return
			}
		}
		for i := range trips {
			trips[i], err = state.reader.Read()
			if err == io.EOF {
				if skipped := state.reader.Skipped(); skipped > 0 {
					log.Printf("%s: skipped %d malformed rows", files[shard], skipped)
				}
				err = state.file.Close(ctx)
				if err == nil {
					err = sliceio.EOF
				}
				return i, err
			}
			if err != nil {
				state.file.Close(ctx)
				return i, err
			}
		}
		return len(trips), nil
	})
}

// Features applies feature derivation to a Slice<trip.Trip>,
// producing a Slice<feature.Row>. Trips with non-positive fares are
// dropped and counted in DroppedFares.
func Features(slice bigslice.Slice) bigslice.Slice {
	return bigslice.Flatmap(slice, func(ctx context.Context, t trip.Trip) []feature.Row {
		row, ok := feature.FromTrip(t)
		if !ok {
			DroppedFares.Incr(metrics.ContextScope(ctx), 1)
			return nil
		}
		return []feature.Row{row}
	})
}

// Sample returns the deterministic subset of a Slice<trip.Trip>
// whose hash fraction falls below rate. The same trips are selected
// regardless of sharding or executor.
func Sample(slice bigslice.Slice, rate float64) bigslice.Slice {
	return bigslice.Filter(slice, func(t trip.Trip) bool {
		return Fraction(t) < rate
	})
}

// Split partitions a Slice<trip.Trip> into train and test slices by
// row hash, holding out the given fraction for test. The partition
// is deterministic and the two slices are disjoint.
func Split(slice bigslice.Slice, holdout float64) (train, test bigslice.Slice) {
	train = bigslice.Filter(slice, func(t trip.Trip) bool {
		return Fraction(t) >= holdout
	})
	test = bigslice.Filter(slice, func(t trip.Trip) bool {
		return Fraction(t) < holdout
	})
	return train, test
}

// WriteRows materializes a Slice<feature.Row> as per-shard gob
// files named prefix-NNN-of-MMM; RowPaths reports the paths written
// for a given sharding.
func WriteRows(slice bigslice.Slice, prefix string) bigslice.Slice {
	nshard := slice.NumShard()
	return bigslice.Scan(slice, func(shard int, scan *sliceio.Scanner) error {
		ctx := context.Background()
		f, err := file.Create(ctx, rowPath(prefix, shard, nshard))
		if err != nil {
			return err
		}
		w := bufio.NewWriter(f.Writer(ctx))
		enc := gob.NewEncoder(w)
		var row feature.Row
		for scan.Scan(ctx, &row) {
			if err := enc.Encode(row); err != nil {
				f.Close(ctx)
				return err
			}
		}
		if err := scan.Err(); err != nil {
			f.Close(ctx)
			return err
		}
		if err := w.Flush(); err != nil {
			f.Close(ctx)
			return err
		}
		return f.Close(ctx)
	})
}

// RowPaths returns the paths written by WriteRows for a slice of
// nshard shards.
func RowPaths(prefix string, nshard int) []string {
	paths := make([]string, nshard)
	for shard := range paths {
		paths[shard] = rowPath(prefix, shard, nshard)
	}
	return paths
}

// ReadRows reads back feature rows materialized by WriteRows.
func ReadRows(ctx context.Context, paths []string) ([]feature.Row, error) {
	var rows []feature.Row
	for _, path := range paths {
		f, err := file.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		dec := gob.NewDecoder(bufio.NewReader(f.Reader(ctx)))
		for {
			var row feature.Row
			if err := dec.Decode(&row); err == io.EOF {
				break
			} else if err != nil {
				f.Close(ctx)
				return nil, err
			}
			rows = append(rows, row)
		}
		if err := f.Close(ctx); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func rowPath(prefix string, shard, nshard int) string {
	return fmt.Sprintf("%s-%03d-of-%03d", prefix, shard, nshard)
}
