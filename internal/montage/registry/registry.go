// Package registry implements the per-video character registry (§4.8): name
// extraction from chunk text, stop-word filtering, generic-term tagging,
// and best-effort script matching. No teacher analog — built directly from
// spec.md.
package registry

import (
	"regexp"
	"strings"

	"github.com/reelsheet/montage-core/internal/types"
)

var namePattern = regexp.MustCompile(`^([А-ЯЁ]{2,12})(\s+(ЗК|ГЗ))?$`)

// stopWords covers adverbs, verbs, places, and common interjections that
// match the all-caps speaker-line shape but are not character names.
var stopWords = map[string]bool{
	"ЗАДУМЧИВО": true, "ГОВОРИТ": true, "КРИЧИТ": true, "ШЕПЧЕТ": true,
	"ВНЕЗАПНО": true, "МЕДЛЕННО": true, "БЫСТРО": true, "ТИХО": true,
	"ГРОМКО": true, "УЛИЦА": true, "ДОМ": true, "КОМНАТА": true,
	"О": true, "ДА": true, "НЕТ": true, "ЭЙ": true, "АХ": true, "ОХ": true,
	"УХ": true, "НУ": true, "ОГО": true,
}

// genericTerms are admitted as registry entries but tagged isGenericTerm.
var genericTerms = map[string]bool{
	"ЖЕНЩИНА": true, "МУЖЧИНА": true, "ДЕВУШКА": true, "ПАРЕНЬ": true,
	"СТАРИК": true, "СТАРУХА": true, "РЕБЕНОК": true, "РЕБЁНОК": true,
}

// ExtractSpeakerNames scans chunk text line by line for the all-caps
// speaker-line pattern (2-12 letters, optional ЗК/ГЗ suffix), filtering
// stop-words.
func ExtractSpeakerNames(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := namePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		base := m[1]
		if stopWords[base] {
			continue
		}
		names = append(names, line)
	}
	return names
}

// Merge folds newly-extracted speaker lines into the existing registry,
// growing it monotonically. firstSeenChunk/firstSeenTimecode are only set
// the first time a canonical name appears. Uniqueness is by case-folded
// canonical name.
func Merge(existing []types.CharacterRegistryEntry, newNames []string, chunkIndex int, chunkStartTimecode string, scriptData []types.ScriptCharacter) []types.CharacterRegistryEntry {
	byKey := make(map[string]int, len(existing))
	out := make([]types.CharacterRegistryEntry, len(existing))
	copy(out, existing)
	for i, e := range out {
		byKey[foldKey(e.CanonicalName)] = i
	}

	for _, raw := range newNames {
		canonical, isGeneric := splitNameModifier(raw)
		key := foldKey(canonical)
		if idx, ok := byKey[key]; ok {
			out[idx].Appearances++
			continue
		}
		entry := types.CharacterRegistryEntry{
			CanonicalName:     canonical,
			FirstSeenChunk:    chunkIndex,
			FirstSeenTimecode: chunkStartTimecode,
			Appearances:       1,
			IsGenericTerm:     isGeneric,
		}
		if match, ok := matchScript(canonical, scriptData); ok {
			entry.Aliases = append(entry.Aliases, match)
		}
		byKey[key] = len(out)
		out = append(out, entry)
	}
	return out
}

func splitNameModifier(raw string) (canonical string, isGeneric bool) {
	fields := strings.Fields(raw)
	base := fields[0]
	return base, genericTerms[base]
}

func foldKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// matchScript performs the best-effort "possibleScriptMatch" lookup: a
// substring match against the externally-supplied script character list.
// The canonical name itself is left unchanged regardless of the outcome;
// the match, if any, is recorded as an alias.
func matchScript(canonical string, scriptData []types.ScriptCharacter) (string, bool) {
	upperCanonical := strings.ToUpper(canonical)
	for _, c := range scriptData {
		upperScriptName := strings.ToUpper(c.Name)
		if strings.Contains(upperScriptName, upperCanonical) || strings.Contains(upperCanonical, upperScriptName) {
			return c.Name, true
		}
	}
	return "", false
}

// Snapshot renders the registry as the text block the prompt builder (C7)
// embeds verbatim in the next chunk's prompt.
func Snapshot(entries []types.CharacterRegistryEntry) string {
	if len(entries) == 0 {
		return "(персонажи ещё не определены)"
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString("- ")
		b.WriteString(e.CanonicalName)
		if e.IsGenericTerm {
			b.WriteString(" (общий термин)")
		}
		if len(e.Aliases) > 0 {
			b.WriteString(" [возможно: ")
			b.WriteString(strings.Join(e.Aliases, ", "))
			b.WriteString("]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FromScript pre-seeds the registry with isFromScript=true entries before
// chunk 1 runs, per §6.1 "Script-character pre-seeding".
func FromScript(scriptData []types.ScriptCharacter) []types.CharacterRegistryEntry {
	out := make([]types.CharacterRegistryEntry, 0, len(scriptData))
	for _, c := range scriptData {
		out = append(out, types.CharacterRegistryEntry{
			CanonicalName: c.Name,
			Aliases:       c.Aliases,
			IsFromScript:  true,
		})
	}
	return out
}
