// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Tiplocal is the single-machine rendition of the tip-fraction
// workflow: load one or a few months of trip records into memory,
// derive features, and fit linear models, the way one would with a
// dataframe library on a laptop. It exists to establish the recipe
// that tiptrain and tipsearch scale up, and to show where it breaks:
// when the requested months no longer fit in memory, tiplocal warns
// and carries on so the failure can be observed.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"golang.org/x/sync/errgroup"

	"github.com/grailbio/taxitip"
	"github.com/grailbio/taxitip/feature"
	"github.com/grailbio/taxitip/linear"
	"github.com/grailbio/taxitip/trip"
)

// memoryBudget is a rough bound on the trip data tiplocal will load
// without complaint. Decoded trip records run about 50 bytes each;
// a month of yellow cab data is several hundred megabytes of CSV.
const memoryBudget = 4 << 30

func init() {
	file.RegisterImplementation("s3", s3file.NewImplementation(
		s3file.NewDefaultProvider(session.Options{})))
	s3file.SetBucketRegion("nyc-tlc", "us-east-1")
}

func main() {
	var (
		data    = flag.String("data", ".", "directory or S3 prefix holding monthly trip files")
		months  = flag.String("months", "2019-01", "month or inclusive month range, e.g. 2019-01 or 2019-01:2019-03")
		holdout = flag.Float64("holdout", 0.1, "fraction of rows held out for evaluation")
		rate    = flag.Float64("rate", 0.01, "SGD learning rate")
		l2      = flag.Float64("l2", 0, "SGD L2 penalty")
		epochs  = flag.Int("epochs", 5, "SGD training passes")
		out     = flag.String("o", "", "if set, save the SGD model artifact to this path")
	)
	log.AddFlags()
	flag.Parse()
	ctx := context.Background()

	from, to, err := trip.ParseRange(*months)
	if err != nil {
		log.Fatal(err)
	}
	paths, err := trip.List(ctx, *data, from, to)
	if err != nil {
		log.Fatal(err)
	}
	if len(paths) == 0 {
		log.Fatalf("no monthly trip files for %s under %s", *months, *data)
	}
	checkBudget(ctx, paths)

	// Load months concurrently; each file is decoded independently.
	loaded := make([][]trip.Trip, len(paths))
	err = traverse.Each(len(paths), func(i int) error {
		trips, skipped, err := trip.ReadFile(ctx, paths[i])
		if err != nil {
			return err
		}
		if skipped > 0 {
			log.Printf("%s: skipped %d malformed rows", paths[i], skipped)
		}
		loaded[i] = trips
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	var train, test []feature.Row
	var dropped int
	for _, trips := range loaded {
		for _, t := range trips {
			row, ok := feature.FromTrip(t)
			if !ok {
				dropped++
				continue
			}
			if taxitip.Fraction(t) < *holdout {
				test = append(test, row)
			} else {
				train = append(train, row)
			}
		}
	}
	log.Printf("%d train rows, %d test rows, %d dropped (non-positive fare)", len(train), len(test), dropped)
	if len(train) == 0 || len(test) == 0 {
		log.Fatal("not enough rows to train and evaluate")
	}

	x, y := feature.Matrix(train)
	tx, ty := feature.Matrix(test)
	scaler := linear.FitScaler(x)
	sx, stx := scaler.Transform(x), scaler.Transform(tx)

	// The two fits are independent; run them concurrently.
	var (
		g   errgroup.Group
		ols *linear.Model
		sgd = linear.NewSGD(*rate, *l2, *epochs)
	)
	g.Go(func() error {
		var err error
		ols, err = linear.OLS(x, y)
		return err
	})
	g.Go(func() error {
		return sgd.Fit(sx, y)
	})
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}

	report("ols", ols.PredictAll(tx), ty)
	report("sgd", sgd.Model.PredictAll(stx), ty)

	if *out != "" {
		artifact := &linear.Artifact{Features: feature.Names, Scaler: scaler, Model: sgd.Model}
		if err := linear.Save(ctx, *out, artifact); err != nil {
			log.Fatal(err)
		}
		log.Printf("saved model to %s", *out)
	}
}

func report(name string, pred, y []float64) {
	fmt.Printf("%s\tmse=%.6f\tr2=%.4f\n", name, linear.MSE(pred, y), linear.R2(pred, y))
}

// checkBudget warns when the requested months cannot plausibly be
// held in memory. This is the point of the exercise: the in-memory
// recipe does not survive the full dataset, and the fix is not a
// bigger machine but the streaming pipeline in cmd/tiptrain.
func checkBudget(ctx context.Context, paths []string) {
	var total int64
	for _, path := range paths {
		info, err := file.Stat(ctx, path)
		if err != nil {
			log.Error.Printf("stat %s: %v", path, err)
			return
		}
		total += info.Size()
	}
	if total > memoryBudget {
		log.Error.Printf("requested months total %d bytes of CSV, more than the %d byte budget; "+
			"expect to run out of memory. Use tiptrain to stream the full dataset.", total, memoryBudget)
	}
}
