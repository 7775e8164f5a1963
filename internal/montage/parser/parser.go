// Package parser extracts structured scene blocks from the analyzer's raw
// text response (§4.7 "Parser"). Three strategies run in order until one
// succeeds: markdown blocks, a fenced/raw JSON array, and a line-oriented
// keyword fallback. No teacher analog for the parsing itself; the
// "ordered list of strategies, return on first success" shape follows
// spec.md §9's own design note, expressed as small functions returning
// (T, bool) in the teacher's non-generic style.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Scene is one parsed block before reconciliation against detector
// boundaries.
type Scene struct {
	Start       string
	End         string
	PlanType    string
	Description string
	Dialogues   string
}

var (
	blockHeaderPattern    = regexp.MustCompile(`(?m)^\*\*\s*(\d{2}:\d{2}:\d{2}:\d{2})\s*-\s*(\d{2}:\d{2}:\d{2}:\d{2})\s*\*\*\s*$`)
	planFieldPattern      = regexp.MustCompile(`(?m)^(?:План|Вид):\s*(.+)$`)
	contentFieldHeader    = regexp.MustCompile(`(?m)^Содержание:[ \t]*`)
	dialogueFieldHeader   = regexp.MustCompile(`(?m)^(?:Диалоги(?:/Музыка)?):[ \t]*`)
	anyFieldHeaderPattern = regexp.MustCompile(`(?m)^(?:План|Вид|Содержание|Диалоги(?:/Музыка)?):`)
	jsonFencePattern      = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	lineStartEndPattern   = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}:\d{2})\s*-\s*(\d{2}:\d{2}:\d{2}:\d{2})`)
)

// Parse runs the three strategies in order and returns the first non-empty
// result. An empty response (all strategies fail) returns an empty, nil
// slice rather than an error, per spec.md "on empty parse ... an empty
// scene list is returned (not an error)".
func Parse(raw string) []Scene {
	if scenes, ok := parseMarkdownBlocks(raw); ok {
		return normalizeAll(scenes)
	}
	if scenes, ok := parseJSON(raw); ok {
		return normalizeAll(scenes)
	}
	if scenes, ok := parseLineOriented(raw); ok {
		return normalizeAll(scenes)
	}
	return nil
}

func parseMarkdownBlocks(raw string) ([]Scene, bool) {
	headers := blockHeaderPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(headers) == 0 {
		return nil, false
	}
	var scenes []Scene
	for i, h := range headers {
		start := raw[h[2]:h[3]]
		end := raw[h[4]:h[5]]
		blockEnd := len(raw)
		if i+1 < len(headers) {
			blockEnd = headers[i+1][0]
		}
		body := raw[h[1]:blockEnd]
		scenes = append(scenes, Scene{
			Start:       start,
			End:         end,
			PlanType:    firstMatch(planFieldPattern, body),
			Description: captureMultilineField(body, contentFieldHeader),
			Dialogues:   captureMultilineField(body, dialogueFieldHeader),
		})
	}
	return scenes, len(scenes) > 0
}

// captureMultilineField returns the text following a field header
// ("Содержание:"/"Диалоги:") up to the next recognized field header or the
// end of the block, so a multi-line, speaker-annotated dialogue block isn't
// truncated to its first line.
func captureMultilineField(body string, header *regexp.Regexp) string {
	loc := header.FindStringIndex(body)
	if loc == nil {
		return ""
	}
	rest := body[loc[1]:]
	if next := anyFieldHeaderPattern.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	return strings.TrimSpace(rest)
}

type jsonScene struct {
	Start              string `json:"start"`
	End                string `json:"end"`
	PlanType           string `json:"plan_type"`
	VisualDescription  string `json:"visual_description"`
	ContentSummary     string `json:"content_summary"`
	Dialogue           string `json:"dialogue"`
}

func parseJSON(raw string) ([]Scene, bool) {
	body := raw
	if m := jsonFencePattern.FindStringSubmatch(raw); m != nil {
		body = m[1]
	} else {
		trimmed := strings.TrimSpace(raw)
		if !strings.HasPrefix(trimmed, "[") {
			return nil, false
		}
		body = trimmed
	}
	var raws []jsonScene
	if err := json.Unmarshal([]byte(body), &raws); err != nil {
		return nil, false
	}
	var scenes []Scene
	for _, r := range raws {
		desc := r.VisualDescription
		if desc == "" {
			desc = r.ContentSummary
		}
		scenes = append(scenes, Scene{
			Start:       r.Start,
			End:         r.End,
			PlanType:    r.PlanType,
			Description: desc,
			Dialogues:   r.Dialogue,
		})
	}
	return scenes, len(scenes) > 0
}

func parseLineOriented(raw string) ([]Scene, bool) {
	lines := strings.Split(raw, "\n")
	var scenes []Scene
	var current *Scene
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := lineStartEndPattern.FindStringSubmatch(line); m != nil {
			if current != nil {
				scenes = append(scenes, *current)
			}
			current = &Scene{Start: m[1], End: m[2]}
			continue
		}
		if current == nil {
			continue
		}
		switch {
		case hasFieldPrefix(line, "План:", "Вид:"):
			current.PlanType = fieldValue(line)
		case hasFieldPrefix(line, "Содержание:"):
			current.Description = fieldValue(line)
		case hasFieldPrefix(line, "Диалоги:", "Диалоги/Музыка:"):
			current.Dialogues = fieldValue(line)
		}
	}
	if current != nil {
		scenes = append(scenes, *current)
	}
	return scenes, len(scenes) > 0
}

func hasFieldPrefix(line string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func fieldValue(line string) string {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+1:])
}

func firstMatch(re *regexp.Regexp, body string) string {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

var (
	parentheticalPattern = regexp.MustCompile(`\s*\(\s*(ЗК|ГЗ)\s*\)`)
	leadingNumberPattern  = regexp.MustCompile(`^\s*\d+[.)]\s*`)
)

func normalizeAll(scenes []Scene) []Scene {
	for i := range scenes {
		scenes[i].Dialogues = normalizeDialogue(scenes[i].Dialogues)
	}
	return scenes
}

// normalizeDialogue applies the dialogue normalization rules: parenthetical
// speaker modifiers become space-separated suffixes, leading-number
// numbering artifacts are stripped, and the literal "нет" collapses to "—".
func normalizeDialogue(s string) string {
	if strings.TrimSpace(strings.ToLower(s)) == "нет" {
		return "—"
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = leadingNumberPattern.ReplaceAllString(line, "")
		line = parentheticalPattern.ReplaceAllString(line, " $1")
		line = strings.TrimSpace(line)
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
