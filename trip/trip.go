// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package trip implements ingestion of the NYC TLC yellow cab trip
// records: a header-driven CSV decoder for the monthly trip files,
// the monthly file naming convention, and listing of monthly files
// from a storage prefix. The decoder is deliberately tolerant: the
// TLC has reordered and added columns over the years, and the data
// contain malformed rows which are skipped and counted rather than
// failing the read.
package trip

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// TimeLayout is the timestamp layout used by the TLC trip files.
const TimeLayout = "2006-01-02 15:04:05"

// A Trip is a single yellow cab trip record, carrying just the
// attributes consumed by feature derivation.
type Trip struct {
	// Pickup is the trip's pickup time.
	Pickup time.Time
	// Passengers is the reported passenger count, or -1 if the
	// field was absent from the record.
	Passengers int
	// Fare is the metered fare amount in dollars.
	Fare float64
	// Tip is the tip amount in dollars.
	Tip float64
}

// Column names matched (case insensitively) against the file header.
// The pickup timestamp has gone by several names across TLC schema
// revisions; all are accepted.
var (
	pickupColumns    = []string{"tpep_pickup_datetime", "lpep_pickup_datetime", "pickup_datetime"}
	passengerColumns = []string{"passenger_count"}
	fareColumns      = []string{"fare_amount"}
	tipColumns       = []string{"tip_amount"}
)

// A Reader decodes trip records from a single CSV trip file.
// Malformed rows are skipped, not returned as errors; the skip
// count is available from Skipped.
type Reader struct {
	csv     *csv.Reader
	pickup  int
	pass    int
	fare    int
	tip     int
	skipped int
}

// NewReader returns a Reader decoding trips from the CSV data in r.
// NewReader consumes the header row; it returns an error if the
// header is missing any required column.
func NewReader(r io.Reader) (*Reader, error) {
	c := csv.NewReader(r)
	c.ReuseRecord = true
	// Trip files occasionally contain short rows; tolerate them and
	// let field extraction skip the row instead.
	c.FieldsPerRecord = -1
	header, err := c.Read()
	if err != nil {
		return nil, errors.E("trip.NewReader", err)
	}
	t := &Reader{csv: c}
	if t.pickup = index(header, pickupColumns); t.pickup < 0 {
		return nil, errors.E("trip.NewReader", "no pickup timestamp column")
	}
	if t.fare = index(header, fareColumns); t.fare < 0 {
		return nil, errors.E("trip.NewReader", "no fare amount column")
	}
	if t.tip = index(header, tipColumns); t.tip < 0 {
		return nil, errors.E("trip.NewReader", "no tip amount column")
	}
	// Passenger count is optional; its absence yields the -1
	// sentinel on every record.
	t.pass = index(header, passengerColumns)
	return t, nil
}

// Read returns the next well-formed trip record, skipping malformed
// rows. It returns io.EOF when the file is exhausted.
func (r *Reader) Read() (Trip, error) {
	for {
		fields, err := r.csv.Read()
		if err != nil {
			return Trip{}, err
		}
		trip, ok := r.decode(fields)
		if !ok {
			r.skipped++
			continue
		}
		return trip, nil
	}
}

// Skipped returns the number of malformed rows skipped so far.
func (r *Reader) Skipped() int { return r.skipped }

func (r *Reader) decode(fields []string) (Trip, bool) {
	if r.pickup >= len(fields) || r.fare >= len(fields) || r.tip >= len(fields) {
		return Trip{}, false
	}
	pickup, err := time.Parse(TimeLayout, fields[r.pickup])
	if err != nil {
		return Trip{}, false
	}
	fare, err := strconv.ParseFloat(fields[r.fare], 64)
	if err != nil {
		return Trip{}, false
	}
	tip, err := strconv.ParseFloat(fields[r.tip], 64)
	if err != nil {
		return Trip{}, false
	}
	passengers := -1
	if r.pass >= 0 && r.pass < len(fields) {
		if n, err := strconv.Atoi(strings.TrimSpace(fields[r.pass])); err == nil {
			passengers = n
		}
	}
	return Trip{Pickup: pickup, Passengers: passengers, Fare: fare, Tip: tip}, true
}

// ReadFile reads all trip records from the file at the given path,
// which may name any file scheme registered with base/file (e.g.,
// a local path or an s3:// URL). It returns the records along with
// the number of malformed rows skipped.
func ReadFile(ctx context.Context, path string) ([]Trip, int, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close(ctx)
	r, err := NewReader(f.Reader(ctx))
	if err != nil {
		return nil, 0, errors.E("trip.ReadFile", path, err)
	}
	var trips []Trip
	for {
		trip, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, r.Skipped(), errors.E("trip.ReadFile", path, err)
		}
		trips = append(trips, trip)
	}
	return trips, r.Skipped(), nil
}

func index(header []string, names []string) int {
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		for _, name := range names {
			if col == name {
				return i
			}
		}
	}
	return -1
}
