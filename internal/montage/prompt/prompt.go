// Package prompt builds the single text prompt sent to the analyzer for one
// chunk (§4.7 "Builder"). No teacher analog — built directly from spec.md;
// the registry-snapshot-in-prompt idiom mirrors how teacher's prompt
// construction for course generation embeds prior-stage context verbatim.
package prompt

import (
	"fmt"
	"strings"

	"github.com/reelsheet/montage-core/internal/montage/registry"
	"github.com/reelsheet/montage-core/internal/types"
)

// Input bundles everything the builder needs for one chunk.
type Input struct {
	ChunkIndex        int
	TotalChunks       int
	ChunkStartTC      string
	ChunkEndTC        string
	MergedScenes      []types.MergedScene // pre-filtered to this chunk's window by the caller
	CharacterRegistry []types.CharacterRegistryEntry
}

func (in Input) isFirstChunk() bool { return in.ChunkIndex == 0 }
func (in Input) isLastChunk() bool  { return in.ChunkIndex == in.TotalChunks-1 }

// Build renders the prompt text for one chunk.
func Build(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Фрагмент %d из %d (%s - %s).\n", in.ChunkIndex+1, in.TotalChunks, in.ChunkStartTC, in.ChunkEndTC)
	if in.isFirstChunk() {
		b.WriteString("Это первый фрагмент видео.\n")
	}
	if in.isLastChunk() {
		b.WriteString("Это последний фрагмент видео.\n")
	}

	b.WriteString("\nГраницы сцен, которые необходимо соблюдать:\n")
	if len(in.MergedScenes) == 0 {
		b.WriteString("(границы сцен не определены — опишите весь фрагмент как одну сцену)\n")
	}
	for _, s := range in.MergedScenes {
		fmt.Fprintf(&b, "%s - %s\n", s.StartTimecode, s.EndTimecode)
	}

	b.WriteString("\nИзвестные персонажи:\n")
	b.WriteString(registry.Snapshot(in.CharacterRegistry))

	b.WriteString("\nДля каждой границы сцены выведите один блок, по порядку, в формате:\n")
	b.WriteString("**HH:MM:SS:FF - HH:MM:SS:FF**\n")
	b.WriteString("План: <тип плана>\n")
	b.WriteString("Содержание: <визуальное описание>\n")
	b.WriteString("Диалоги: <реплики с указанием говорящего, либо \"Музыка\" при отсутствии реплик>\n")

	return b.String()
}
