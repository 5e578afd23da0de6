// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Tiptrain scales the tip-fraction workflow to the full dataset:
// monthly trip files are read and featurized on the cluster, and
// the driver folds the resulting partitions into an incrementally
// fit SGD model. Nothing is ever held in memory beyond one batch,
// so the recipe runs unchanged over a single month or the whole
// archive. Evaluation uses a deterministic hash holdout so that the
// same rows are held out no matter how the data are sharded.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigmachine/ec2system"
	"github.com/grailbio/bigslice"
	"github.com/grailbio/bigslice/exec"
	"github.com/grailbio/bigslice/slicecmd"

	"github.com/grailbio/taxitip"
	"github.com/grailbio/taxitip/feature"
	"github.com/grailbio/taxitip/linear"
	"github.com/grailbio/taxitip/trip"
)

func init() {
	file.RegisterImplementation("s3", s3file.NewImplementation(
		s3file.NewDefaultProvider(session.Options{})))
	s3file.SetBucketRegion("nyc-tlc", "us-east-1")
}

// features computes the featurized training or test partition of
// the given trip files.
var features = bigslice.Func(func(files []string, holdout float64, test bool) bigslice.Slice {
	trips := taxitip.Trips(files)
	train, held := taxitip.Split(trips, holdout)
	if test {
		return taxitip.Features(held)
	}
	return taxitip.Features(train)
})

func main() {
	var (
		data    = flag.String("data", ".", "directory or S3 prefix holding monthly trip files")
		months  = flag.String("months", "2019-01:2019-12", "month or inclusive month range")
		holdout = flag.Float64("holdout", 0.1, "fraction of rows held out for evaluation")
		rate    = flag.Float64("rate", 0.01, "SGD learning rate")
		l2      = flag.Float64("l2", 0, "SGD L2 penalty")
		batch   = flag.Int("batch", 1<<16, "rows per incremental fit")
		out     = flag.String("o", "", "if set, save the model artifact to this path")
	)
	slicecmd.RegisterSystem("ec2", &ec2system.System{
		InstanceType: "m5.2xlarge",
	})
	slicecmd.Main(func(sess *exec.Session, args []string) error {
		ctx := context.Background()
		from, to, err := trip.ParseRange(*months)
		if err != nil {
			return err
		}
		paths, err := trip.List(ctx, *data, from, to)
		if err != nil {
			return err
		}
		log.Printf("training on %d monthly files", len(paths))

		res, err := sess.Run(ctx, features, paths, *holdout, false)
		if err != nil {
			return err
		}
		sgd := linear.NewSGD(*rate, *l2, 1)
		var scaler *linear.Scaler
		n, err := partialFit(ctx, res, sgd, &scaler, *batch)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no training rows: every row was held out or dropped (-holdout=%g)", *holdout)
		}
		log.Printf("fit %d rows incrementally; %d rows dropped for non-positive fares",
			n, taxitip.DroppedFares.Value(res.Scope()))

		res, err = sess.Run(ctx, features, paths, *holdout, true)
		if err != nil {
			return err
		}
		if err := evaluate(ctx, res, sgd, scaler); err != nil {
			return err
		}

		if *out != "" {
			artifact := &linear.Artifact{Features: feature.Names, Scaler: scaler, Model: sgd.Model}
			if err := linear.Save(ctx, *out, artifact); err != nil {
				return err
			}
			log.Printf("saved model to %s", *out)
		}
		return nil
	})
}

// partialFit streams featurized rows from the result, folding them
// into the model one batch at a time. The scaler is fit on the
// first batch, which is large enough to pin down per-column
// moments.
func partialFit(ctx context.Context, res *exec.Result, sgd *linear.SGD, scaler **linear.Scaler, batch int) (int, error) {
	scan := res.Scan(ctx)
	var (
		rows  = make([]feature.Row, 0, batch)
		row   feature.Row
		total int
	)
	fit := func() error {
		if len(rows) == 0 {
			return nil
		}
		x, y := feature.Matrix(rows)
		if *scaler == nil {
			*scaler = linear.FitScaler(x)
		}
		if err := sgd.PartialFit((*scaler).Transform(x), y); err != nil {
			return err
		}
		total += len(rows)
		rows = rows[:0]
		return nil
	}
	for scan.Scan(ctx, &row) {
		rows = append(rows, row)
		if len(rows) == batch {
			if err := fit(); err != nil {
				return total, err
			}
		}
	}
	if err := scan.Err(); err != nil {
		return total, err
	}
	return total, fit()
}

// evaluate streams the held-out rows, accumulating sufficient
// statistics for MSE and R² without materializing predictions.
func evaluate(ctx context.Context, res *exec.Result, sgd *linear.SGD, scaler *linear.Scaler) error {
	scan := res.Scan(ctx)
	var (
		row              feature.Row
		n                int
		sse, sumY, sumY2 float64
	)
	for scan.Scan(ctx, &row) {
		pred := sgd.Model.Predict(scaler.Apply(row.Vector()))
		d := pred - row.Label
		sse += d * d
		sumY += row.Label
		sumY2 += row.Label * row.Label
		n++
	}
	if err := scan.Err(); err != nil {
		return err
	}
	if n == 0 {
		log.Error.Printf("no held-out rows; skipping evaluation")
		return nil
	}
	mse := sse / float64(n)
	sstot := sumY2 - sumY*sumY/float64(n)
	log.Printf("evaluated %d held-out rows: mse=%.6f r2=%.4f", n, mse, 1-sse/sstot)
	return nil
}
