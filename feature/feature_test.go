// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package feature

import (
	"math"
	"reflect"
	"testing"
	"time"

	fuzz "github.com/google/gofuzz"

	"github.com/grailbio/taxitip/trip"
)

func TestFromTrip(t *testing.T) {
	// Monday 2019-01-07 13:45, fare 10, tip 2.
	tr := trip.Trip{
		Pickup:     time.Date(2019, 1, 7, 13, 45, 0, 0, time.UTC),
		Passengers: 2,
		Fare:       10,
		Tip:        2,
	}
	row, ok := FromTrip(tr)
	if !ok {
		t.Fatal("trip excluded")
	}
	want := Row{
		Weekday:    0,
		WeekOfYear: 2,
		Hour:       13,
		WeekHour:   13,
		Minute:     45,
		Passengers: 2,
		Label:      0.2,
	}
	if row != want {
		t.Errorf("got %v, want %v", row, want)
	}
}

func TestFromTripExcludesNonPositiveFares(t *testing.T) {
	for _, fare := range []float64{0, -1, -0.01} {
		tr := trip.Trip{Pickup: time.Now(), Passengers: 1, Fare: fare, Tip: 1}
		if _, ok := FromTrip(tr); ok {
			t.Errorf("fare %v: trip not excluded", fare)
		}
	}
}

func TestFromTripSentinel(t *testing.T) {
	tr := trip.Trip{
		Pickup:     time.Date(2019, 6, 30, 23, 0, 0, 0, time.UTC), // a Sunday
		Passengers: -1,
		Fare:       5,
		Tip:        0,
	}
	row, ok := FromTrip(tr)
	if !ok {
		t.Fatal("trip excluded")
	}
	if got, want := row.Passengers, float64(Sentinel); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := row.Weekday, 6.0; got != want {
		t.Errorf("got weekday %v, want %v", got, want)
	}
	if got, want := row.WeekHour, 6*24+23.0; got != want {
		t.Errorf("got week hour %v, want %v", got, want)
	}
}

// fuzzTrip yields trips with valid timestamps and occasional absent
// passenger counts and non-positive fares.
func fuzzTrip(tr *trip.Trip, c fuzz.Continue) {
	tr.Pickup = time.Unix(1546300800+c.Int63n(365*24*3600), 0).UTC() // within 2019
	tr.Passengers = c.Intn(8) - 1
	tr.Fare = float64(c.Intn(100)) - 10
	tr.Tip = c.Float64() * 20
}

func TestFromTripInvariants(t *testing.T) {
	fz := fuzz.New().Funcs(fuzzTrip)
	var tr trip.Trip
	for i := 0; i < 10000; i++ {
		fz.Fuzz(&tr)
		row, ok := FromTrip(tr)
		if tr.Fare <= 0 {
			if ok {
				t.Fatalf("%v: trip with fare %v not excluded", tr, tr.Fare)
			}
			continue
		}
		if !ok {
			t.Fatalf("%v: trip with fare %v excluded", tr, tr.Fare)
		}
		if got, want := row.Label, tr.Tip/tr.Fare; got != want {
			t.Errorf("got label %v, want %v", got, want)
		}
		if got, want := row.WeekHour, row.Weekday*24+row.Hour; got != want {
			t.Errorf("got week hour %v, want %v", got, want)
		}
		for i, v := range row.Vector() {
			if math.IsNaN(v) {
				t.Errorf("%v: feature %s is NaN", tr, Names[i])
			}
		}
		// The derivation is pure: deriving again yields the same row.
		again, _ := FromTrip(tr)
		if row != again {
			t.Errorf("got %v then %v for the same trip", row, again)
		}
	}
}

func TestVector(t *testing.T) {
	row := Row{Weekday: 1, WeekOfYear: 2, Hour: 3, WeekHour: 27, Minute: 4, Passengers: 5, Label: 0.5}
	want := []float64{1, 2, 3, 27, 4, 5}
	if got := row.Vector(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := len(Names), len(want); got != want {
		t.Errorf("got %v names, want %v", got, want)
	}
}

func TestMatrix(t *testing.T) {
	rows := []Row{
		{Weekday: 0, WeekOfYear: 1, Hour: 2, WeekHour: 2, Minute: 3, Passengers: 1, Label: 0.1},
		{Weekday: 6, WeekOfYear: 52, Hour: 23, WeekHour: 167, Minute: 59, Passengers: -1, Label: 0.3},
	}
	x, y := Matrix(rows)
	r, c := x.Dims()
	if r != 2 || c != len(Names) {
		t.Fatalf("got %dx%d matrix, want 2x%d", r, c, len(Names))
	}
	if got, want := y, []float64{0.1, 0.3}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := x.At(1, 3), 167.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
