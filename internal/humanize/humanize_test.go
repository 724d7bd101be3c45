package humanize

import (
	"testing"
	"time"
)

func TestBytesRendersReadableSize(t *testing.T) {
	if got := Bytes(1536); got == "" {
		t.Fatalf("Bytes(1536) returned empty string")
	}
}

func TestBytesClampsNegativeToZero(t *testing.T) {
	if got := Bytes(-5); got != Bytes(0) {
		t.Errorf("Bytes(-5) = %q, want same as Bytes(0) = %q", got, Bytes(0))
	}
}

func TestAgeOfZeroTimeReportsNever(t *testing.T) {
	if got := Age(time.Time{}); got != "never" {
		t.Errorf("Age(zero) = %q, want \"never\"", got)
	}
}

func TestRelTimeRoundsToSeconds(t *testing.T) {
	got := RelTime(90500 * time.Millisecond)
	if got != "1m31s" {
		t.Errorf("RelTime(90500ms) = %q, want 1m31s", got)
	}
}
