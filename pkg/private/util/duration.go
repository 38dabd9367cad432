// Copyright 2025 Canarygate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package util contains small utilities shared across packages.
package util

import (
	"strconv"
	"strings"
	"time"

	"github.com/canarygate/canarygate/pkg/private/serrors"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = 365 * day
)

// ParseDuration parses a duration string. In addition to the units supported
// by time.ParseDuration, it understands d (days), w (weeks) and y (years).
// The extended units only support integer values.
func ParseDuration(s string) (time.Duration, error) {
	var unit time.Duration
	switch {
	case strings.HasSuffix(s, "d"):
		unit = day
	case strings.HasSuffix(s, "w"):
		unit = week
	case strings.HasSuffix(s, "y"):
		unit = year
	default:
		return time.ParseDuration(s)
	}
	count, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, serrors.Wrap("parsing duration", err, "duration", s)
	}
	return time.Duration(count) * unit, nil
}

// FmtDuration formats the duration with the largest unit that represents it
// exactly.
func FmtDuration(d time.Duration) string {
	for _, u := range []struct {
		unit   time.Duration
		suffix string
	}{{year, "y"}, {week, "w"}, {day, "d"}} {
		if d != 0 && d%u.unit == 0 {
			return strconv.FormatInt(int64(d/u.unit), 10) + u.suffix
		}
	}
	return d.String()
}
