// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package feature derives model-ready rows from raw trip records.
// The derivation is the one transformation this repository owns: a
// pure, single-pass function from a trip to six calendar and
// passenger features and a tip-fraction label. It involves no
// concurrency and no state; distributed application of the
// derivation is composed in package taxitip.
package feature

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/grailbio/taxitip/trip"
)

// Sentinel replaces absent values in derived rows.
const Sentinel = -1

// Names of the derived feature columns, in Row field order.
var Names = []string{
	"pickup_weekday",
	"pickup_weekofyear",
	"pickup_hour",
	"pickup_week_hour",
	"pickup_minute",
	"passenger_count",
}

// LabelName names the prediction target.
const LabelName = "tip_fraction"

// A Row is one model-ready record: the derived features of a trip
// together with its label. All fields are float64; absent values
// are Sentinel.
type Row struct {
	// Weekday is the pickup day of week, Monday=0 through Sunday=6.
	Weekday float64
	// WeekOfYear is the ISO week number of the pickup.
	WeekOfYear float64
	// Hour is the pickup hour of day, 0-23.
	Hour float64
	// WeekHour combines weekday and hour: Weekday*24 + Hour.
	WeekHour float64
	// Minute is the pickup minute, 0-59.
	Minute float64
	// Passengers is the reported passenger count.
	Passengers float64
	// Label is the tip fraction: tip amount over fare amount.
	Label float64
}

// FromTrip derives the feature row for t. The second return value
// is false when the trip is excluded: trips with a non-positive
// fare are dropped so that the label's division is always defined.
func FromTrip(t trip.Trip) (Row, bool) {
	if t.Fare <= 0 {
		return Row{}, false
	}
	weekday := float64((int(t.Pickup.Weekday()) + 6) % 7)
	_, week := t.Pickup.ISOWeek()
	hour := float64(t.Pickup.Hour())
	r := Row{
		Weekday:    weekday,
		WeekOfYear: float64(week),
		Hour:       hour,
		WeekHour:   weekday*24 + hour,
		Minute:     float64(t.Pickup.Minute()),
		Passengers: float64(t.Passengers),
		Label:      t.Tip / t.Fare,
	}
	return r.fill(), true
}

// Vector returns the row's feature values in Names order. The label
// is not included.
func (r Row) Vector() []float64 {
	return []float64{r.Weekday, r.WeekOfYear, r.Hour, r.WeekHour, r.Minute, r.Passengers}
}

// fill replaces absent values with Sentinel. Passenger count is the
// only field that can be absent in the raw data; NaNs are normalized
// too since downstream solvers will not tolerate them.
func (r Row) fill() Row {
	if r.Passengers < 0 {
		r.Passengers = Sentinel
	}
	for _, f := range []*float64{&r.Weekday, &r.WeekOfYear, &r.Hour, &r.WeekHour, &r.Minute, &r.Passengers, &r.Label} {
		if math.IsNaN(*f) {
			*f = Sentinel
		}
	}
	return r
}

// Matrix packs rows into a design matrix and label vector for model
// fitting. The matrix has one row per input row and one column per
// feature, in Names order.
func Matrix(rows []Row) (x *mat.Dense, y []float64) {
	x = mat.NewDense(len(rows), len(Names), nil)
	y = make([]float64, len(rows))
	for i, r := range rows {
		x.SetRow(i, r.Vector())
		y[i] = r.Label
	}
	return x, y
}
