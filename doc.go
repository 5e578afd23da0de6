// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
Package taxitip is a worked example of scaling a single-machine
tabular learning workflow onto Bigslice. The task is small and
concrete: predict the tip fraction (tip amount over fare amount) of
a New York yellow cab ride from features derived from its pickup
time. The interesting part is not the model but the recipe, shown
three ways at increasing scale:

 1. cmd/tiplocal fits on one or a few months of data entirely in
    memory, the way one would with a dataframe library on a laptop.
    It also demonstrates why the recipe stops working: the monthly
    trip files sum to far more than memory.

 2. cmd/tiptrain streams every month through a Bigslice pipeline,
    deriving features on the cluster and folding partitions into an
    incrementally-fit model on the driver.

 3. cmd/tipsearch runs a hyperparameter grid search, one fit per
    grid point, fanned out across the cluster.

The package itself provides the slice constructors shared by the
drivers: a sharded reader over monthly trip files, the feature
derivation applied as a slice transformation, and deterministic
hash-based sampling and train/test splitting. Subpackages trip,
feature, linear, and grid hold the ingestion, derivation, models,
and search pieces, each usable without Bigslice.

All file paths accept any scheme registered with base/file; the
drivers register s3, so the TLC's public monthly files can be read
directly from S3.
*/
package taxitip
