// Package subtitles turns timed script lines into SRT cues.
package subtitles

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"tutorial-service/internal/script"
)

const (
	wordsPerSecond = 2.2
	minDisplay     = 3.0
	overlapGap     = 0.1

	splitOver     = 15
	chunkMinWords = 5
	chunkMaxWords = 12
	chunkMaxChars = 70
)

type Cue struct {
	Index int
	Start float64 // seconds
	End   float64
	Text  string
}

// Build lays out one cue per line; long lines become several cues sharing
// the line's display time.
func Build(lines []script.Line) []Cue {
	var cues []Cue
	for i, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		words := strings.Fields(text)
		start := float64(line.At)
		display := math.Max(float64(len(words))/wordsPerSecond, minDisplay)

		if len(words) > splitOver {
			chunks := Chunk(words)
			each := display / float64(len(chunks))
			for j, c := range chunks {
				s := start + float64(j)*each
				cues = append(cues, Cue{Start: s, End: s + each, Text: c})
			}
			continue
		}

		end := start + display
		if i+1 < len(lines) {
			end = math.Min(end, float64(lines[i+1].At)-overlapGap)
		}
		cues = append(cues, Cue{Start: start, End: end, Text: text})
	}
	for i := range cues {
		cues[i].Index = i + 1
	}
	return cues
}

// Chunk splits words at sentence ends once a chunk has five words, or when
// it reaches twelve words or seventy characters.
func Chunk(words []string) []string {
	var (
		chunks  []string
		current []string
		length  int
	)
	for _, w := range words {
		length += len(w) + 1
		current = append(current, w)

		sentenceEnd := strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?")
		if (sentenceEnd && len(current) >= chunkMinWords) || length > chunkMaxChars || len(current) >= chunkMaxWords {
			chunks = append(chunks, strings.Join(current, " "))
			current, length = nil, 0
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// Format renders cues in SRT form.
func Format(cues []Cue) string {
	entries := make([]string, 0, len(cues))
	for _, c := range cues {
		entries = append(entries, fmt.Sprintf("%d\n%s --> %s\n%s\n", c.Index, Timestamp(c.Start), Timestamp(c.End), c.Text))
	}
	return strings.Join(entries, "\n")
}

// Timestamp renders seconds as HH:MM:SS,mmm.
func Timestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	ms := int(math.Round(sec * 1000))
	whole := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", whole/3600, (whole%3600)/60, whole%60, ms%1000)
}

// WriteFile builds cues from a script and writes them to path.
func WriteFile(path, scriptText string) (int, error) {
	cues := Build(script.ExtractTiming(scriptText).Lines)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, []byte(Format(cues)), 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(cues), nil
}
