package credits

import "testing"

func TestMergeEmptyCutsReturnsNil(t *testing.T) {
	if got := Merge(nil, 600, 24, Thresholds{OpeningWindowSeconds: 120, ClosingWindowSeconds: 180}); got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestMergeWithoutCreditsEmitsRegularScenesOnly(t *testing.T) {
	// A handful of evenly-spaced cuts with no eligible opening/closing
	// pattern (fewer than 10 cuts in the first 90s) should yield only
	// "regular" typed scenes.
	cuts := []float64{10, 40, 80, 150, 220, 300}
	scenes := Merge(cuts, 360, 24, Thresholds{OpeningWindowSeconds: 120, ClosingWindowSeconds: 180})
	if len(scenes) == 0 {
		t.Fatal("expected at least one scene")
	}
	for _, s := range scenes {
		if s.Type != "regular" {
			t.Fatalf("expected only regular scenes without an eligible credits pattern, got %q", s.Type)
		}
	}
}

func TestMergeScenesAreContiguous(t *testing.T) {
	cuts := []float64{10, 40, 80, 150, 220, 300}
	scenes := Merge(cuts, 360, 24, Thresholds{OpeningWindowSeconds: 120, ClosingWindowSeconds: 180})
	for i := 1; i < len(scenes); i++ {
		if scenes[i-1].EndTimestamp != scenes[i].StartTimestamp {
			t.Fatalf("gap/overlap between scene %d and %d: %+v %+v", i-1, i, scenes[i-1], scenes[i])
		}
	}
}
