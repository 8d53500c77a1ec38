package logger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	cases := map[string]error{
		"ok":        nil,
		"fail":      errors.New("boom"),
		"cancelled": fmt.Errorf("send: %w", context.Canceled),
	}
	for want, err := range cases {
		if got := Status(err); got != want {
			t.Fatalf("Status(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var passed int
	for range 9 {
		if s.Allow() {
			passed++
		}
	}
	if passed != 3 {
		t.Fatalf("expected 3 of 9 to pass, got %d", passed)
	}

	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("disabled sampler must allow everything")
	}

	s.Set(0, 1)
	if s.Allow() {
		t.Fatal("zero numerator must drop everything")
	}

	s.Set(5, 2)
	if !s.Allow() || !s.Allow() {
		t.Fatal("numerator above denominator passes everything")
	}
}

func TestParseRatioSpec(t *testing.T) {
	cases := map[string][2]int{
		"1/50": {1, 50},
		"10":   {1, 10},
		"all":  {1, 1},
		"OFF":  {0, 1},
		"a/b":  {0, 0},
		"0":    {0, 0},
		"junk": {0, 0},
		"":     {0, 0},
	}
	for spec, want := range cases {
		num, den := parseRatioSpec(spec)
		if num != want[0] || den != want[1] {
			t.Fatalf("parseRatioSpec(%q) = %d/%d, want %d/%d", spec, num, den, want[0], want[1])
		}
	}
}

func TestRoundMSAndSummarize(t *testing.T) {
	if RoundMS(-time.Second) != 0 {
		t.Fatal("negative durations clamp to zero")
	}
	if RoundMS(1500*time.Microsecond) != 2*time.Millisecond {
		t.Fatal("expected rounding to nearest millisecond")
	}
	got, truncated := SummarizeStrings([]string{"add", "cart", "checkout"}, 2)
	if got != "add, cart" || !truncated {
		t.Fatalf("unexpected summary %q (%v)", got, truncated)
	}
}
