package timecode

import (
	"errors"
	"testing"

	"github.com/reelsheet/montage-core/internal/montage/mgerr"
)

func TestToSeconds(t *testing.T) {
	cases := []struct {
		name string
		tc   string
		fps  float64
		want float64
	}{
		{"zero", "00:00:00:00", 24, 0},
		{"one hour", "01:00:00:00", 24, 3600},
		{"frames", "00:00:01:12", 24, 1.5},
		{"minutes and seconds", "00:02:03:00", 30, 123},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ToSeconds(c.tc, c.fps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("ToSeconds(%q, %v) = %v, want %v", c.tc, c.fps, got, c.want)
			}
		})
	}
}

func TestToSecondsInvalid(t *testing.T) {
	cases := []string{"", "00:00:00", "aa:bb:cc:dd", "-1:00:00:00"}
	for _, tc := range cases {
		_, err := ToSeconds(tc, 24)
		if err == nil {
			t.Fatalf("expected error for %q", tc)
		}
		if !errors.Is(err, mgerr.ErrInvalidTimecode) {
			t.Fatalf("expected ErrInvalidTimecode for %q, got %v", tc, err)
		}
	}
}

func TestFromSecondsRoundTrip(t *testing.T) {
	cases := []struct {
		seconds float64
		fps     float64
		want    string
	}{
		{0, 24, "00:00:00:00"},
		{3600, 24, "01:00:00:00"},
		{1.5, 24, "00:00:01:12"},
		{123, 30, "00:02:03:00"},
	}
	for _, c := range cases {
		got, err := FromSeconds(c.seconds, c.fps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != c.want {
			t.Fatalf("FromSeconds(%v, %v) = %q, want %q", c.seconds, c.fps, got, c.want)
		}
	}
}

func TestFromSecondsCarriesFrameOverflow(t *testing.T) {
	// 1.0 second at 24fps is exactly frame 24, which must carry into the
	// next whole second as frame 0, not render as "00:00:00:24".
	got, err := FromSeconds(1.0, 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "00:00:01:00" {
		t.Fatalf("got %q, want 00:00:01:00", got)
	}
}

func TestAtWholeSecond(t *testing.T) {
	if got := AtWholeSecond(65.9); got != "00:01:06:00" {
		t.Fatalf("got %q, want 00:01:06:00", got)
	}
}

func TestFramesBetween(t *testing.T) {
	got, err := FramesBetween("00:00:00:00", "00:00:01:00", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 24 {
		t.Fatalf("got %d, want 24", got)
	}
	got, err = FramesBetween("00:00:01:00", "00:00:00:00", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != -24 {
		t.Fatalf("got %d, want -24", got)
	}
}
