package parser

import "testing"

func TestParseMarkdownBlocks(t *testing.T) {
	raw := "**00:00:00:00 - 00:00:05:00**\n" +
		"План: Общ.\n" +
		"Содержание: Герой входит в комнату\n" +
		"Диалоги: АННА: Привет\n" +
		"\n" +
		"**00:00:05:00 - 00:00:10:00**\n" +
		"Вид: Ср.\n" +
		"Содержание: Разговор за столом\n" +
		"Диалоги/Музыка: нет\n"
	scenes := Parse(raw)
	if len(scenes) != 2 {
		t.Fatalf("got %d scenes, want 2: %+v", len(scenes), scenes)
	}
	if scenes[0].Start != "00:00:00:00" || scenes[0].End != "00:00:05:00" {
		t.Fatalf("unexpected scene[0] bounds: %+v", scenes[0])
	}
	if scenes[0].PlanType != "Общ." {
		t.Fatalf("got plan type %q, want Общ.", scenes[0].PlanType)
	}
	if scenes[1].Dialogues != "—" {
		t.Fatalf("got dialogues %q, want —", scenes[1].Dialogues)
	}
}

func TestParseMarkdownBlocksCapturesMultilineDialogue(t *testing.T) {
	raw := "**00:00:00:00 - 00:00:05:00**\n" +
		"План: Общ.\n" +
		"Содержание: Герой входит в комнату и осматривается,\n" +
		"замечая беспорядок на столе.\n" +
		"Диалоги: АННА: Привет.\n" +
		"БОРИС(ЗК): Ты не вовремя.\n" +
		"АННА: Знаю.\n" +
		"\n" +
		"**00:00:05:00 - 00:00:10:00**\n" +
		"Вид: Ср.\n" +
		"Содержание: Разговор за столом\n" +
		"Диалоги/Музыка: нет\n"
	scenes := Parse(raw)
	if len(scenes) != 2 {
		t.Fatalf("got %d scenes, want 2: %+v", len(scenes), scenes)
	}
	wantDescription := "Герой входит в комнату и осматривается,\nзамечая беспорядок на столе."
	if scenes[0].Description != wantDescription {
		t.Fatalf("got description %q, want %q", scenes[0].Description, wantDescription)
	}
	wantDialogues := "АННА: Привет.\nБОРИС ЗК: Ты не вовремя.\nАННА: Знаю."
	if scenes[0].Dialogues != wantDialogues {
		t.Fatalf("got dialogues %q, want %q", scenes[0].Dialogues, wantDialogues)
	}
	// the second block's single-line fields must be unaffected by the wider capture.
	if scenes[1].Description != "Разговор за столом" {
		t.Fatalf("got second description %q", scenes[1].Description)
	}
	if scenes[1].Dialogues != "—" {
		t.Fatalf("got second dialogues %q, want —", scenes[1].Dialogues)
	}
}

func TestParseJSONFenced(t *testing.T) {
	raw := "Here is the result:\n```json\n" +
		`[{"start":"00:00:00:00","end":"00:00:04:00","plan_type":"Кр.","visual_description":"Крупный план лица","dialogue":"нет"}]` +
		"\n```\n"
	scenes := Parse(raw)
	if len(scenes) != 1 {
		t.Fatalf("got %d scenes, want 1: %+v", len(scenes), scenes)
	}
	if scenes[0].Description != "Крупный план лица" {
		t.Fatalf("unexpected description: %+v", scenes[0])
	}
}

func TestParseRawJSONArray(t *testing.T) {
	raw := `[{"start":"00:00:00:00","end":"00:00:04:00","content_summary":"Вид сверху"}]`
	scenes := Parse(raw)
	if len(scenes) != 1 || scenes[0].Description != "Вид сверху" {
		t.Fatalf("got %+v", scenes)
	}
}

func TestParseLineOrientedFallback(t *testing.T) {
	raw := "00:00:00:00 - 00:00:05:00\n" +
		"План: Общ.\n" +
		"Содержание: Общий план улицы\n" +
		"Диалоги: (1) АННА (ЗК): Где ты?\n"
	scenes := Parse(raw)
	if len(scenes) != 1 {
		t.Fatalf("got %d scenes, want 1: %+v", len(scenes), scenes)
	}
	if scenes[0].Dialogues == "" {
		t.Fatalf("expected non-empty dialogue")
	}
}

func TestParseEmptyReturnsNilNotError(t *testing.T) {
	scenes := Parse("the model refused to produce structured output")
	if scenes != nil {
		t.Fatalf("got %+v, want nil", scenes)
	}
}

func TestNormalizeDialogueStripsLeadingNumbersAndParentheticals(t *testing.T) {
	got := normalizeDialogue("1) АННА (ЗК): Где ты?")
	if got != "АННА ЗК: Где ты?" {
		t.Fatalf("got %q", got)
	}
}
