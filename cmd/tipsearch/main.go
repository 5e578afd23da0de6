// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Tipsearch runs a hyperparameter grid search for the tip-fraction
// SGD model on a Bigslice cluster. The search follows the shape of
// the single-machine workflow: a deterministic sample of the trip
// data is featurized on the cluster and materialized to shared
// storage, then each grid point is cross validated by its own task
// against that sample. For distributed runs the sample prefix must
// name storage reachable by the workers, e.g. an s3:// prefix.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

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
	"github.com/grailbio/taxitip/grid"
	"github.com/grailbio/taxitip/linear"
	"github.com/grailbio/taxitip/trip"
)

func init() {
	file.RegisterImplementation("s3", s3file.NewImplementation(
		s3file.NewDefaultProvider(session.Options{})))
	s3file.SetBucketRegion("nyc-tlc", "us-east-1")
}

// materialize featurizes a deterministic sample of the trip files
// and writes it to per-shard files under prefix.
var materialize = bigslice.Func(func(files []string, rate float64, prefix string) bigslice.Slice {
	trips := taxitip.Sample(taxitip.Trips(files), rate)
	return taxitip.WriteRows(taxitip.Features(trips), prefix)
})

func main() {
	var (
		data   = flag.String("data", ".", "directory or S3 prefix holding monthly trip files")
		months = flag.String("months", "2019-01", "month or inclusive month range")
		rate   = flag.Float64("sample", 0.01, "fraction of rows sampled for the search")
		prefix = flag.String("prefix", os.TempDir()+"/tipsearch-sample", "prefix for the materialized sample; must be worker-reachable for distributed runs")
		rates  = flag.String("rates", "0.001,0.01,0.1", "candidate learning rates")
		l2s    = flag.String("l2s", "0,0.0001,0.001", "candidate L2 penalties")
		epochs = flag.String("epochs", "5", "candidate epoch counts")
		folds  = flag.Int("folds", 5, "cross validation folds")
		out    = flag.String("o", "", "if set, refit the best point on the sample and save the artifact")
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
		points := grid.Grid(floats(*rates), floats(*l2s), ints(*epochs))
		log.Printf("searching %d grid points over a %g sample of %d files", len(points), *rate, len(paths))

		if _, err := sess.Run(ctx, materialize, paths, *rate, *prefix); err != nil {
			return err
		}
		samples := taxitip.RowPaths(*prefix, len(paths))
		scores, err := grid.Search(ctx, sess, points, samples, *folds)
		if err != nil {
			return err
		}
		printScores(scores)

		if *out != "" {
			if err := saveBest(ctx, grid.Best(scores).Point, samples, *out); err != nil {
				return err
			}
		}
		return nil
	})
}

func printScores(scores []grid.Score) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "rate\tl2\tepochs\tmse\tr2")
	for _, s := range scores {
		fmt.Fprintf(w, "%g\t%g\t%d\t%.6f\t%.4f\n", s.Point.Rate, s.Point.L2, s.Point.Epochs, s.MSE, s.R2)
	}
	w.Flush()
}

// saveBest refits the winning point on the whole sample and writes
// the model artifact.
func saveBest(ctx context.Context, p grid.Point, samples []string, path string) error {
	rows, err := taxitip.ReadRows(ctx, samples)
	if err != nil {
		return err
	}
	x, y := feature.Matrix(rows)
	scaler := linear.FitScaler(x)
	sgd := linear.NewSGD(p.Rate, p.L2, p.Epochs)
	if err := sgd.Fit(scaler.Transform(x), y); err != nil {
		return err
	}
	artifact := &linear.Artifact{Features: feature.Names, Scaler: scaler, Model: sgd.Model}
	if err := linear.Save(ctx, path, artifact); err != nil {
		return err
	}
	log.Printf("saved best model (rate=%g l2=%g epochs=%d) to %s", p.Rate, p.L2, p.Epochs, path)
	return nil
}

func floats(s string) []float64 {
	var vs []float64
	for _, field := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			log.Fatalf("bad value %q: %v", field, err)
		}
		vs = append(vs, v)
	}
	return vs
}

func ints(s string) []int {
	var vs []int
	for _, field := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			log.Fatalf("bad value %q: %v", field, err)
		}
		vs = append(vs, v)
	}
	return vs
}
