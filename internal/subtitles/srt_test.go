package subtitles_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorial-service/internal/script"
	"tutorial-service/internal/subtitles"
)

func TestBuild_MinimumDisplayAndClipping(t *testing.T) {
	cues := subtitles.Build([]script.Line{
		{At: 0, Text: "Welcome."},
		{At: 2, Text: "Fractions describe parts of a whole thing."},
		{At: 30, Text: "Bye."},
	})

	require.Len(t, cues, 3)
	// 3s minimum clipped to 0.1s before the next line
	assert.InDelta(t, 1.9, cues[0].End, 1e-9)
	// 7 words / 2.2 = 3.18s
	assert.InDelta(t, 2+7/2.2, cues[1].End, 1e-9)
	// last line keeps the minimum
	assert.InDelta(t, 33, cues[2].End, 1e-9)
	assert.Equal(t, []int{1, 2, 3}, []int{cues[0].Index, cues[1].Index, cues[2].Index})
}

func TestBuild_SkipsEmptyLines(t *testing.T) {
	cues := subtitles.Build([]script.Line{{At: 0, Text: "  "}, {At: 5, Text: "Hello there."}})
	require.Len(t, cues, 1)
	assert.Equal(t, 1, cues[0].Index)
}

func TestBuild_LongLineSplits(t *testing.T) {
	text := "A fraction has a numerator and a denominator. The numerator counts parts and the denominator says how many equal parts make the whole."
	cues := subtitles.Build([]script.Line{{At: 10, Text: text}})

	words := len(strings.Fields(text))
	require.Greater(t, words, 15)
	require.Len(t, cues, 3)
	assert.Equal(t, "A fraction has a numerator and a denominator.", cues[0].Text)
	assert.InDelta(t, 10, cues[0].Start, 1e-9)

	total := float64(words) / 2.2
	assert.InDelta(t, 10+total, cues[2].End, 1e-9)
	assert.InDelta(t, cues[0].End, cues[1].Start, 1e-9)
}

func TestChunk(t *testing.T) {
	words := strings.Fields("one two three four five six seven eight nine ten eleven twelve thirteen")
	assert.Equal(t, []string{
		"one two three four five six seven eight nine ten eleven twelve",
		"thirteen",
	}, subtitles.Chunk(words))

	// short sentences are not split off
	assert.Equal(t, []string{"Hi. there you are"}, subtitles.Chunk(strings.Fields("Hi. there you are")))
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00,000", subtitles.Timestamp(0))
	assert.Equal(t, "00:00:01,900", subtitles.Timestamp(1.9))
	assert.Equal(t, "01:02:03,250", subtitles.Timestamp(3723.25))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs", "subtitles.srt")
	n, err := subtitles.WriteFile(path, "[00:00] Hello.\n[00:04] World.\n")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:03,000\nHello.\n\n2\n00:00:04,000 --> 00:00:07,000\nWorld.\n", string(data))
}
