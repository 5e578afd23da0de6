// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trip

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// A Month identifies one month of trip data. The TLC publishes one
// CSV file per month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a month in the form "2019-01".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, errors.E("trip.ParseMonth", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// ParseRange parses a month or an inclusive month range: "2019-01"
// or "2019-01:2019-06".
func ParseRange(s string) (from, to Month, err error) {
	parts := strings.SplitN(s, ":", 2)
	if from, err = ParseMonth(parts[0]); err != nil {
		return
	}
	to = from
	if len(parts) == 2 {
		if to, err = ParseMonth(parts[1]); err != nil {
			return
		}
	}
	if to.Before(from) {
		err = errors.E("trip.ParseRange", s, "range ends before it begins")
	}
	return
}

// String returns the month in the form "2019-01".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// File returns the name of the month's trip file, following the TLC
// convention, e.g. "yellow_tripdata_2019-01.csv".
func (m Month) File() string {
	return fmt.Sprintf("yellow_tripdata_%s.csv", m)
}

// Next returns the month following m.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Before tells whether m precedes n.
func (m Month) Before(n Month) bool {
	if m.Year != n.Year {
		return m.Year < n.Year
	}
	return m.Month < n.Month
}

// Range returns the months from from through to, inclusive.
func Range(from, to Month) []Month {
	var months []Month
	for m := from; !to.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months
}

var monthFile = regexp.MustCompile(`^yellow_tripdata_(\d{4})-(\d{2})\.csv$`)

// List enumerates the monthly trip files stored under prefix (a
// local directory or an s3:// prefix) whose months fall within
// [from, to], returning their full paths in month order. Files under
// the prefix that do not follow the monthly naming convention are
// ignored.
func List(ctx context.Context, prefix string, from, to Month) ([]string, error) {
	lst := file.List(ctx, prefix, true)
	var paths []string
	for lst.Scan() {
		m, ok := matchMonth(lst.Path())
		if !ok {
			continue
		}
		if m.Before(from) || to.Before(m) {
			continue
		}
		paths = append(paths, lst.Path())
	}
	if err := lst.Err(); err != nil {
		return nil, errors.E("trip.List", prefix, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func matchMonth(p string) (Month, bool) {
	groups := monthFile.FindStringSubmatch(path.Base(p))
	if groups == nil {
		return Month{}, false
	}
	m, err := ParseMonth(groups[1] + "-" + groups[2])
	if err != nil {
		return Month{}, false
	}
	return m, true
}
