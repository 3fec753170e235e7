// SPDX-License-Identifier: AGPL-3.0-or-later
// ov-core - openvocs voice-loop backend core
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// The source code is available at <https://github.com/openvocs/ov-core>

// Package imf formats and parses the RFC 5322 fixed-locale IMF-fixdate
// form used by the HTTP Date header ("Sun, 06 Nov 1994 08:49:37 GMT"),
// independent of the process locale: day and month names are always
// English, and the trailing "GMT" is matched case-sensitively.
package imf

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var dayNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var monthNames = [...]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// ErrMalformed is returned when the input does not match the fixed
// IMF-fixdate layout.
var ErrMalformed = errors.New("imf: malformed IMF-fixdate")

// Format renders t as a fixed-locale IMF-fixdate string, converting to UTC
// first since the form always carries the "GMT" suffix.
func Format(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf(
		"%s, %02d %s %04d %02d:%02d:%02d GMT",
		dayNames[u.Weekday()], u.Day(), monthNames[u.Month()-1], u.Year(),
		u.Hour(), u.Minute(), u.Second(),
	)
}

// Parse reads a fixed-locale IMF-fixdate string back into a time.Time in
// UTC. It does not depend on the process locale: day and month names must
// be the fixed English abbreviations and "GMT" must match exactly.
func Parse(s string) (time.Time, error) {
	// "Sun, 06 Nov 1994 08:49:37 GMT" is exactly 29 bytes.
	const fixedLength = 29
	if len(s) != fixedLength {
		return time.Time{}, ErrMalformed
	}
	if s[3] != ',' || s[4] != ' ' || s[7] != ' ' || s[11] != ' ' || s[16] != ' ' ||
		s[19] != ':' || s[22] != ':' || s[25] != ' ' {
		return time.Time{}, ErrMalformed
	}
	if s[26:29] != "GMT" {
		return time.Time{}, ErrMalformed
	}

	dayName := s[0:3]
	if _, ok := indexOf(dayNames[:], dayName); !ok {
		return time.Time{}, ErrMalformed
	}

	day, err := strconv.Atoi(s[5:7])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day: %w", ErrMalformed, err)
	}

	monthIdx, ok := indexOf(monthNames[:], s[8:11])
	if !ok {
		return time.Time{}, ErrMalformed
	}

	year, err := strconv.Atoi(s[12:16])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: year: %w", ErrMalformed, err)
	}
	hour, err := strconv.Atoi(s[17:19])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: hour: %w", ErrMalformed, err)
	}
	minute, err := strconv.Atoi(s[20:22])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: minute: %w", ErrMalformed, err)
	}
	second, err := strconv.Atoi(s[23:25])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: second: %w", ErrMalformed, err)
	}

	t := time.Date(year, time.Month(monthIdx+1), day, hour, minute, second, 0, time.UTC)
	if dayNames[t.Weekday()] != dayName {
		return time.Time{}, ErrMalformed
	}
	return t, nil
}

func indexOf(names []string, name string) (int, bool) {
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}
