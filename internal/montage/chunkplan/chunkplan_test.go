package chunkplan

import "testing"

func TestPlanSingleWindowWhenShorterThanChunkLength(t *testing.T) {
	windows, err := Plan(90, 180, 60, 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	if windows[0].StartSeconds != 0 || windows[0].EndSeconds != 90 {
		t.Fatalf("unexpected window bounds: %+v", windows[0])
	}
}

func TestPlanMultipleWindowsNoOverlap(t *testing.T) {
	// 400s at 180s chunks -> [0,180) [180,360) [360,400) but the trailing
	// 40s window is shorter than the 60s absorb threshold, so it folds into
	// the previous window: [0,180) [180,400).
	windows, err := Plan(400, 180, 60, 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2: %+v", len(windows), windows)
	}
	if windows[0].StartSeconds != 0 || windows[0].EndSeconds != 180 {
		t.Fatalf("unexpected first window: %+v", windows[0])
	}
	if windows[1].StartSeconds != 180 || windows[1].EndSeconds != 400 {
		t.Fatalf("unexpected second window: %+v", windows[1])
	}
}

func TestPlanDoesNotAbsorbALongEnoughTrailingWindow(t *testing.T) {
	// 440s -> [0,180) [180,360) [360,440): trailing window is 80s, above
	// the 60s absorb threshold, so it survives as its own window.
	windows, err := Plan(440, 180, 60, 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3: %+v", len(windows), windows)
	}
	if windows[2].StartSeconds != 360 || windows[2].EndSeconds != 440 {
		t.Fatalf("unexpected trailing window: %+v", windows[2])
	}
}

func TestPlanWindowsAreContiguous(t *testing.T) {
	windows, err := Plan(1000, 180, 60, 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(windows); i++ {
		if windows[i-1].EndSeconds != windows[i].StartSeconds {
			t.Fatalf("gap/overlap between window %d and %d: %+v %+v", i-1, i, windows[i-1], windows[i])
		}
		if windows[i-1].EndTimecode != windows[i].StartTimecode {
			t.Fatalf("timecode mismatch between window %d and %d: %q != %q", i-1, i, windows[i-1].EndTimecode, windows[i].StartTimecode)
		}
	}
}

func TestPlanRejectsNonPositiveDuration(t *testing.T) {
	if _, err := Plan(0, 180, 60, 24); err == nil {
		t.Fatal("expected error for zero duration")
	}
	if _, err := Plan(-5, 180, 60, 24); err == nil {
		t.Fatal("expected error for negative duration")
	}
}
