package shotdetect

import "testing"

func TestSmartMergeDiscardsMicroArtifacts(t *testing.T) {
	cuts := []Cut{{TimestampSeconds: 0}, {TimestampSeconds: 0.1}, {TimestampSeconds: 5}}
	merged := SmartMerge(cuts, 20)
	for _, c := range merged {
		if c.TimestampSeconds == 0.1 {
			t.Fatalf("expected 0.1s micro-artifact to be discarded, got %+v", merged)
		}
	}
}

func TestSmartMergeSynthesizesLeadingBoundary(t *testing.T) {
	cuts := []Cut{{TimestampSeconds: 2.0}, {TimestampSeconds: 8.0}}
	merged := SmartMerge(cuts, 20)
	if merged[0].TimestampSeconds != 0 {
		t.Fatalf("expected synthesized boundary at 0, got %+v", merged)
	}
}

func TestSmartMergeSkipsLeadingBoundaryWhenFirstCutIsEarly(t *testing.T) {
	cuts := []Cut{{TimestampSeconds: 0.2}, {TimestampSeconds: 8.0}}
	merged := SmartMerge(cuts, 20)
	if merged[0].TimestampSeconds != 0.2 {
		t.Fatalf("expected no synthesized duplicate boundary, got %+v", merged)
	}
}

func TestSmartMergeSynthesizesTrailingBoundary(t *testing.T) {
	cuts := []Cut{{TimestampSeconds: 0}, {TimestampSeconds: 5}}
	merged := SmartMerge(cuts, 20)
	last := merged[len(merged)-1]
	if last.TimestampSeconds != 20 {
		t.Fatalf("expected synthesized trailing boundary at duration, got %+v", merged)
	}
}

func TestSmartMergeSkipsTrailingBoundaryWhenLastCutIsNearEnd(t *testing.T) {
	cuts := []Cut{{TimestampSeconds: 0}, {TimestampSeconds: 19}}
	merged := SmartMerge(cuts, 20)
	last := merged[len(merged)-1]
	if last.TimestampSeconds != 19 {
		t.Fatalf("expected no synthesized duplicate trailing boundary, got %+v", merged)
	}
}

func TestApplyMaxScenesTruncates(t *testing.T) {
	cuts := []Cut{{TimestampSeconds: 0}, {TimestampSeconds: 1}, {TimestampSeconds: 2}}
	out := applyMaxScenes(cuts, 2)
	if len(out) != 2 {
		t.Fatalf("got %d cuts, want 2", len(out))
	}
}

func TestCutsToFloat64(t *testing.T) {
	cuts := []Cut{{TimestampSeconds: 1.5}, {TimestampSeconds: 3.5}}
	out := CutsToFloat64(cuts)
	if len(out) != 2 || out[0] != 1.5 || out[1] != 3.5 {
		t.Fatalf("got %+v", out)
	}
}
