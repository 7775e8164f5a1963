package reconcile

import (
	"testing"

	"github.com/reelsheet/montage-core/internal/montage/parser"
)

func TestReconcilePerfectMatchUsesBoundaryTimecodes(t *testing.T) {
	parsed := []parser.Scene{
		{Start: "00:00:00:05", End: "00:00:04:10", PlanType: "Общ.", Description: "a"},
		{Start: "00:00:04:10", End: "00:00:09:00", PlanType: "Ср.", Description: "b"},
	}
	boundaries := []Boundary{
		{StartTimecode: "00:00:00:00", EndTimecode: "00:00:05:00"},
		{StartTimecode: "00:00:05:00", EndTimecode: "00:00:09:00"},
	}
	out := Reconcile(parsed, boundaries, "00:00:00:00", "00:00:09:00", 24)
	if len(out) != 2 {
		t.Fatalf("got %d scenes, want 2", len(out))
	}
	if out[0].Start != "00:00:00:00" || out[0].End != "00:00:05:00" {
		t.Fatalf("scene 0 should take boundary timecodes, got %+v", out[0])
	}
	if out[0].Description != "a" {
		t.Fatalf("scene 0 should keep model content, got %+v", out[0])
	}
}

func TestReconcileClampsWhenCountsDiffer(t *testing.T) {
	parsed := []parser.Scene{
		{Start: "00:00:00:00", End: "00:00:03:00", Description: "in range"},
		{Start: "00:01:00:00", End: "00:01:05:00", Description: "out of range"},
	}
	out := Reconcile(parsed, nil, "00:00:00:00", "00:00:10:00", 24)
	if len(out) != 1 {
		t.Fatalf("got %d scenes, want 1 after clamp: %+v", len(out), out)
	}
	if out[0].Description != "in range" {
		t.Fatalf("unexpected surviving scene: %+v", out[0])
	}
}

func TestReconcileFillsDefaults(t *testing.T) {
	parsed := []parser.Scene{{Start: "00:00:00:00", End: "00:00:03:00", Description: "x"}}
	out := Reconcile(parsed, nil, "00:00:00:00", "00:00:10:00", 24)
	if out[0].PlanType != "Ср." {
		t.Fatalf("got plan type %q, want default Ср.", out[0].PlanType)
	}
	if out[0].Dialogues != "Музыка" {
		t.Fatalf("got dialogues %q, want default Музыка", out[0].Dialogues)
	}
}

func TestReconcileEmptyParsedReturnsNil(t *testing.T) {
	if out := Reconcile(nil, nil, "00:00:00:00", "00:00:10:00", 24); out != nil {
		t.Fatalf("got %+v, want nil", out)
	}
}
