package config

import (
	"fmt"
	"strings"
	"time"
)

// timestampPad supplies the missing trailing digits of a partial timestamp.
const timestampPad = "10000101000000"

// ParseTimestamp parses a loosely formatted timestamp such as "2019",
// "2019-07" or "2019-07-15T10:20:30Z". Non-digits are dropped, the digits
// are cut or padded to 14 (YYYYMMDDhhmmss) using "10000101000000" and the
// result is read as UTC. Out-of-range fields are clamped.
func ParseTimestamp(raw string) (time.Time, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return time.Time{}, fmt.Errorf("timestamp %q contains no digits", raw)
	}
	if len(digits) > len(timestampPad) {
		digits = digits[:len(timestampPad)]
	}
	digits += timestampPad[len(digits):]

	field := func(from, to, lo, hi int) int {
		n := 0
		for _, c := range digits[from:to] {
			n = n*10 + int(c-'0')
		}
		return min(max(n, lo), hi)
	}

	year := field(0, 4, 0, 9999)
	month := field(4, 6, 1, 12)
	day := field(6, 8, 1, daysIn(time.Month(month), year))
	return time.Date(year, time.Month(month), day,
		field(8, 10, 0, 23), field(10, 12, 0, 59), field(12, 14, 0, 59), 0, time.UTC), nil
}

// FormatTimestamp renders t the way WARC-Date expects it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
