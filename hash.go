// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package taxitip

import (
	"encoding/binary"
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/grailbio/taxitip/trip"
)

// hashBuckets is the resolution of hash-derived row fractions.
const hashBuckets = 1 << 20

// tripHash returns a stable hash of a trip record. Sampling and
// splitting decisions are functions of this hash, so they are
// deterministic across runs, shardings, and executors.
func tripHash(t trip.Trip) uint64 {
	var b [32]byte
	binary.LittleEndian.PutUint64(b[0:], uint64(t.Pickup.UnixNano()))
	binary.LittleEndian.PutUint64(b[8:], uint64(int64(t.Passengers)))
	binary.LittleEndian.PutUint64(b[16:], math.Float64bits(t.Fare))
	binary.LittleEndian.PutUint64(b[24:], math.Float64bits(t.Tip))
	return murmur3.Sum64(b[:])
}

// Fraction maps a trip to a stable, uniform value in [0, 1). It is
// the basis of Sample and Split; single-machine recipes use it
// directly so that their subsets agree with the distributed ones.
func Fraction(t trip.Trip) float64 {
	return float64(tripHash(t)%hashBuckets) / hashBuckets
}
