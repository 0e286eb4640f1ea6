// Package waybacktime parses and formats the 14-digit timestamps used
// throughout the Wayback Machine's CDX and memento URLs.
package waybacktime

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/wblog"
)

const layout = "20060102150405"

// Format renders t as a 14-digit Wayback timestamp in UTC.
func Format(t time.Time) string {
	return t.UTC().Format(layout)
}

// Parse converts a Wayback timestamp string into a UTC time.Time.
//
// The Wayback Machine occasionally emits timestamps with a zeroed-out
// month or day segment (e.g. "20000008241731"). Before parsing, the "00"
// pair is dropped, the remaining digits shift left by two, and "00" is
// appended as the seconds (see repair), matching the behavior of the
// reference Python client. Timestamps of 8 to 13 digits are padded with
// zeros to 14.
func Parse(timestamp string) (time.Time, error) {
	repaired, err := repair(timestamp)
	if err != nil {
		return time.Time{}, err
	}

	t, err := time.Parse(layout, repaired)
	if err != nil {
		return time.Time{}, fmt.Errorf("waybacktime: invalid timestamp %q: %w", timestamp, err)
	}
	return t.UTC(), nil
}

// repair fixes a documented CDX anomaly: some crawls from the year 2000
// have an extra "00" inserted before the month or day segment of their
// timestamp, pushing the rest of the digits out by two characters and
// truncating the seconds off the end when the index stores only 14
// characters. This recovers the same (inexact, but as close as possible)
// value the reference Python client does: drop the spurious "00" and pad
// the now-missing seconds back on.
func repair(timestamp string) (string, error) {
	if timestamp == "" {
		return "", fmt.Errorf("waybacktime: empty timestamp")
	}
	for _, r := range timestamp {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("waybacktime: non-numeric timestamp %q", timestamp)
		}
	}
	if len(timestamp) < 8 {
		return "", fmt.Errorf("waybacktime: timestamp %q too short", timestamp)
	}
	if len(timestamp) > 14 {
		return "", fmt.Errorf("waybacktime: timestamp %q longer than 14 digits", timestamp)
	}

	padded := timestamp + "00000000000000"[len(timestamp):]

	if padded[4] == '0' && padded[5] == '0' {
		repaired := padded[0:4] + padded[6:] + "00"
		wblog.WithComponent("waybacktime").Warn().
			Str("original", timestamp).
			Str("repaired", repaired).
			Msg("repaired timestamp with zeroed-out month segment")
		padded = repaired
	} else if padded[6] == '0' && padded[7] == '0' {
		repaired := padded[0:6] + padded[8:] + "00"
		wblog.WithComponent("waybacktime").Warn().
			Str("original", timestamp).
			Str("repaired", repaired).
			Msg("repaired timestamp with zeroed-out day segment")
		padded = repaired
	}

	return padded, nil
}

// NormalizePrefix validates a timestamp prefix of the kind used by CDX
// query parameters (from/to) and returns it with surrounding whitespace
// trimmed. It neither pads nor repairs the prefix (a "from" bound of
// "2018" stays "2018", not a single instant). An empty input returns "".
func NormalizePrefix(timestamp string) (string, error) {
	if timestamp == "" {
		return "", nil
	}
	trimmed := strings.TrimSpace(timestamp)
	if _, err := strconv.ParseUint(trimmed, 10, 64); err != nil {
		return "", fmt.Errorf("waybacktime: invalid timestamp prefix %q: %w", timestamp, err)
	}
	if len(trimmed) > 14 {
		return "", fmt.Errorf("waybacktime: timestamp prefix %q longer than 14 digits", timestamp)
	}
	return trimmed, nil
}
