package netsuke

import (
	"testing"
	"time"
)

func TestParseOffsetZ(t *testing.T) {
	got, err := parseOffset("Z")
	if err != nil || got != "Z" {
		t.Errorf("parseOffset(\"Z\") = (%q, %v)", got, err)
	}
	got, err = parseOffset("z")
	if err != nil || got != "Z" {
		t.Errorf("parseOffset(\"z\") = (%q, %v)", got, err)
	}
}

func TestParseOffsetValid(t *testing.T) {
	got, err := parseOffset("+05:30")
	if err != nil || got != "+05:30" {
		t.Errorf("parseOffset(\"+05:30\") = (%q, %v)", got, err)
	}
}

func TestParseOffsetRejectsBadSign(t *testing.T) {
	if _, err := parseOffset("05:30"); err == nil {
		t.Fatal("expected an error when the offset has no leading sign")
	}
}

func TestParseOffsetRejectsOutOfRangeHours(t *testing.T) {
	if _, err := parseOffset("+24:00"); err == nil {
		t.Fatal("expected an error for an hour value out of range")
	}
}

func TestParseOffsetRejectsOutOfRangeMinutes(t *testing.T) {
	if _, err := parseOffset("+05:60"); err == nil {
		t.Fatal("expected an error for a minute value out of range")
	}
}

func TestGlobalNowDefaultsToZ(t *testing.T) {
	e := &Env{}
	v, err := e.globalNow("")
	if err != nil {
		t.Fatal(err)
	}
	if v.Offset() != "Z" {
		t.Errorf("Offset() = %q, want \"Z\"", v.Offset())
	}
}

func TestTimestampValueISO8601TrimsZeroFraction(t *testing.T) {
	v := TimestampValue{t: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), offset: "Z"}
	if got := v.ISO8601(); got != "2024-01-02T03:04:05Z" {
		t.Errorf("ISO8601() = %q", got)
	}
}

func TestTimestampValueUnixTimestamp(t *testing.T) {
	v := TimestampValue{t: time.Date(1970, 1, 1, 0, 0, 1, 0, time.UTC), offset: "Z"}
	if got := v.UnixTimestamp(); got != 1 {
		t.Errorf("UnixTimestamp() = %d, want 1", got)
	}
}

func TestGlobalTimedeltaAccumulates(t *testing.T) {
	v, err := globalTimedelta(0, 1, 2, 0, 0, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := 26 * time.Hour
	if v.Nanoseconds() != want.Nanoseconds() {
		t.Errorf("Nanoseconds() = %d, want %d", v.Nanoseconds(), want.Nanoseconds())
	}
}

func TestFormatISODurationZero(t *testing.T) {
	if got := formatISODuration(0); got != "PT0S" {
		t.Errorf("formatISODuration(0) = %q", got)
	}
}

func TestFormatISODurationNegative(t *testing.T) {
	got := formatISODuration(-90 * time.Minute)
	if got != "-PT1H30M" {
		t.Errorf("formatISODuration(-90m) = %q", got)
	}
}

func TestFormatISODurationHoursMinutesSeconds(t *testing.T) {
	got := formatISODuration(1*time.Hour + 2*time.Minute + 3*time.Second)
	if got != "PT1H2M3S" {
		t.Errorf("formatISODuration() = %q", got)
	}
}

func TestFormatISODurationSecondsOnly(t *testing.T) {
	got := formatISODuration(45 * time.Second)
	if got != "PT45S" {
		t.Errorf("formatISODuration(45s) = %q", got)
	}
}

func TestTrimTrailingZeroFraction(t *testing.T) {
	got := trimTrailingZeroFraction("2024-01-02T03:04:05.120000000Z", "Z")
	if got != "2024-01-02T03:04:05.12Z" {
		t.Errorf("trimTrailingZeroFraction() = %q", got)
	}
}

func TestTrimTrailingZeroFractionAllZero(t *testing.T) {
	got := trimTrailingZeroFraction("2024-01-02T03:04:05.000000000Z", "Z")
	if got != "2024-01-02T03:04:05Z" {
		t.Errorf("trimTrailingZeroFraction() = %q", got)
	}
}
