package registry

import (
	"testing"

	"github.com/reelsheet/montage-core/internal/types"
)

func TestExtractSpeakerNamesFiltersStopWords(t *testing.T) {
	text := "АННА\nЗАДУМЧИВО\nПЁТР ЗК\nО\nМАРИЯ"
	names := ExtractSpeakerNames(text)
	if len(names) != 3 {
		t.Fatalf("got %v, want 3 names", names)
	}
}

func TestMergeGrowsRegistryMonotonically(t *testing.T) {
	existing := []types.CharacterRegistryEntry{}
	existing = Merge(existing, []string{"АННА"}, 0, "00:00:00:00", nil)
	if len(existing) != 1 {
		t.Fatalf("got %d entries, want 1", len(existing))
	}
	existing = Merge(existing, []string{"АННА", "ПЁТР"}, 1, "00:03:00:00", nil)
	if len(existing) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(existing), existing)
	}
	for _, e := range existing {
		if e.CanonicalName == "АННА" && e.Appearances != 2 {
			t.Fatalf("АННА appearances = %d, want 2", e.Appearances)
		}
	}
}

func TestMergeTagsGenericTerms(t *testing.T) {
	existing := Merge(nil, []string{"ЖЕНЩИНА"}, 0, "00:00:00:00", nil)
	if !existing[0].IsGenericTerm {
		t.Fatalf("expected ЖЕНЩИНА to be tagged generic")
	}
}

func TestMergeRecordsScriptMatchAsAlias(t *testing.T) {
	script := []types.ScriptCharacter{{Name: "Анна Петровна"}}
	existing := Merge(nil, []string{"АННА"}, 0, "00:00:00:00", script)
	if len(existing[0].Aliases) != 1 {
		t.Fatalf("expected a script-match alias, got %+v", existing[0])
	}
	if existing[0].CanonicalName != "АННА" {
		t.Fatalf("canonical name should be unchanged by a script match, got %q", existing[0].CanonicalName)
	}
}

func TestFromScriptMarksEntriesAsFromScript(t *testing.T) {
	out := FromScript([]types.ScriptCharacter{{Name: "Анна"}})
	if len(out) != 1 || !out[0].IsFromScript {
		t.Fatalf("got %+v, want one isFromScript entry", out)
	}
}
