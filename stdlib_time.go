package netsuke

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampValue is the opaque object `now(offset?)` returns.
type TimestampValue struct {
	t      time.Time
	offset string
}

func (v TimestampValue) ISO8601() string {
	s := v.t.Format("2006-01-02T15:04:05.999999999") + v.offset
	return trimTrailingZeroFraction(s, v.offset)
}
func (v TimestampValue) UnixTimestamp() int64 { return v.t.Unix() }
func (v TimestampValue) Offset() string       { return v.offset }

// DurationValue is the opaque object `timedelta(...)` returns.
type DurationValue struct {
	d time.Duration
}

func (v DurationValue) Seconds() float64     { return v.d.Seconds() }
func (v DurationValue) Nanoseconds() int64   { return v.d.Nanoseconds() }
func (v DurationValue) ISO8601() string      { return formatISODuration(v.d) }

// globalNow implements `now(offset?)`. offset is "Z" or "±HH:MM[:SS]" with
// range validation (spec.md §4.5.5).
func (e *Env) globalNow(offset string) (TimestampValue, error) {
	if offset == "" {
		offset = "Z"
	}
	off, err := parseOffset(offset)
	if err != nil {
		return TimestampValue{}, &TemplateError{Msg: "now(): " + err.Error()}
	}
	return TimestampValue{t: time.Now().UTC(), offset: off}, nil
}

func parseOffset(offset string) (string, error) {
	if offset == "Z" || offset == "z" {
		return "Z", nil
	}
	sign := offset[0]
	if sign != '+' && sign != '-' {
		return "", fmt.Errorf("offset must be \"Z\" or \"±HH:MM[:SS]\", got %q", offset)
	}
	parts := strings.Split(offset[1:], ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("malformed offset %q", offset)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return "", fmt.Errorf("offset hours out of range: %q", offset)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return "", fmt.Errorf("offset minutes out of range: %q", offset)
	}
	return offset, nil
}

// globalTimedelta implements `timedelta(...)`. Each component is checked
// for overflow by accumulating into a single time.Duration via int64
// nanosecond arithmetic and detecting sign flips.
func globalTimedelta(weeks, days, hours, minutes, seconds, milliseconds, microseconds, nanoseconds float64) (DurationValue, error) {
	total := time.Duration(0)
	add := func(unit time.Duration, n float64) error {
		delta := time.Duration(n * float64(unit))
		next := total + delta
		if (delta > 0 && next < total) || (delta < 0 && next > total) {
			return fmt.Errorf("timedelta: overflow")
		}
		total = next
		return nil
	}
	for _, c := range []struct {
		unit time.Duration
		n    float64
	}{
		{7 * 24 * time.Hour, weeks},
		{24 * time.Hour, days},
		{time.Hour, hours},
		{time.Minute, minutes},
		{time.Second, seconds},
		{time.Millisecond, milliseconds},
		{time.Microsecond, microseconds},
		{time.Nanosecond, nanoseconds},
	} {
		if err := add(c.unit, c.n); err != nil {
			return DurationValue{}, &TemplateError{Msg: err.Error()}
		}
	}
	return DurationValue{d: total}, nil
}

// formatISODuration serialises d as ISO 8601, with an explicit "PT0S" when
// all components are zero and a leading "-" for negatives (spec.md
// §4.5.5).
func formatISODuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}
	neg := d < 0
	if neg {
		d = -d
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	secs := d.Seconds()

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("PT")
	if hours > 0 {
		fmt.Fprintf(&b, "%dH", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dM", minutes)
	}
	if secs != 0 || (hours == 0 && minutes == 0) {
		s := strconv.FormatFloat(secs, 'f', -1, 64)
		fmt.Fprintf(&b, "%sS", s)
	}
	return b.String()
}

// trimTrailingZeroFraction removes a trailing run of zero fractional
// seconds from an RFC3339-ish timestamp, e.g. "12:00:00.000000000Z" ->
// "12:00:00Z".
func trimTrailingZeroFraction(s, suffix string) string {
	base := strings.TrimSuffix(s, suffix)
	if idx := strings.IndexByte(base, '.'); idx >= 0 {
		frac := strings.TrimRight(base[idx+1:], "0")
		if frac == "" {
			base = base[:idx]
		} else {
			base = base[:idx+1] + frac
		}
	}
	return base + suffix
}
