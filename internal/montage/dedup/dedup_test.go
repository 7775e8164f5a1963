package dedup

import "testing"

func TestDedupDropsExactDuplicatesKeepingFirst(t *testing.T) {
	entries := []Candidate{
		{ID: "a", StartTimecode: "00:00:01:00", EndTimecode: "00:00:05:00", Description: "a wide shot"},
		{ID: "b", StartTimecode: "00:00:01:00", EndTimecode: "00:00:05:00", Description: "a wide shot duplicate"},
	}
	res := Dedup(entries, 24)
	if len(res.KeptIDs) != 1 || res.KeptIDs[0] != "a" {
		t.Fatalf("got kept=%v, want [a]", res.KeptIDs)
	}
	if len(res.DroppedIDs) != 1 || res.DroppedIDs[0] != "b" {
		t.Fatalf("got dropped=%v, want [b]", res.DroppedIDs)
	}
}

func TestDedupDropsNearDuplicateWithinTwoSeconds(t *testing.T) {
	entries := []Candidate{
		{ID: "a", StartTimecode: "00:00:10:00", EndTimecode: "00:00:15:00", Description: "man walks into dark room slowly", Dialogues: "Музыка"},
		{ID: "b", StartTimecode: "00:00:11:00", EndTimecode: "00:00:16:00", Description: "man walks into dark room slowly again", Dialogues: "Музыка"},
	}
	res := Dedup(entries, 24)
	if len(res.KeptIDs) != 1 || res.KeptIDs[0] != "a" {
		t.Fatalf("got kept=%v, want [a]", res.KeptIDs)
	}
}

func TestDedupKeepsDissimilarEntriesWithinWindow(t *testing.T) {
	entries := []Candidate{
		{ID: "a", StartTimecode: "00:00:10:00", EndTimecode: "00:00:15:00", Description: "woman enters kitchen and opens fridge", Dialogues: "Музыка"},
		{ID: "b", StartTimecode: "00:00:11:00", EndTimecode: "00:00:20:00", Description: "car chase through downtown streets at night", Dialogues: "—"},
	}
	res := Dedup(entries, 24)
	if len(res.KeptIDs) != 2 {
		t.Fatalf("got kept=%v, want both entries kept", res.KeptIDs)
	}
}

func TestValidateFlagsGapAndOverlap(t *testing.T) {
	entries := []Candidate{
		{ID: "a", StartTimecode: "00:00:00:00", EndTimecode: "00:00:05:00"},
		{ID: "b", StartTimecode: "00:00:06:00", EndTimecode: "00:00:10:00"}, // gap
		{ID: "c", StartTimecode: "00:00:09:00", EndTimecode: "00:00:15:00"}, // overlap
	}
	warnings := Validate(entries, 24)
	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %+v", len(warnings), warnings)
	}
	if warnings[0].Kind != "gap" {
		t.Fatalf("warnings[0].Kind = %q, want gap", warnings[0].Kind)
	}
	if warnings[1].Kind != "overlap" {
		t.Fatalf("warnings[1].Kind = %q, want overlap", warnings[1].Kind)
	}
}

func TestValidateContiguousEntriesHaveNoWarnings(t *testing.T) {
	entries := []Candidate{
		{ID: "a", StartTimecode: "00:00:00:00", EndTimecode: "00:00:05:00"},
		{ID: "b", StartTimecode: "00:00:05:00", EndTimecode: "00:00:10:00"},
	}
	if warnings := Validate(entries, 24); len(warnings) != 0 {
		t.Fatalf("got %+v, want no warnings", warnings)
	}
}

func TestExpectedPlanCount(t *testing.T) {
	if got := ExpectedPlanCount(10, PacingMedium); got != 150 {
		t.Fatalf("got %v, want 150", got)
	}
}
