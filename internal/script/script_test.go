package script_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorial-service/internal/logging"
	"tutorial-service/internal/script"
)

const sample = `# Fractions

[00:00] Welcome to fractions.
[00:04] {A fraction is part of a whole.}

[SCENE]
Draw a pizza cut into eight slices.
[/SCENE]

[01:10] Three eighths of the pizza is gone.
[SCENE]
  Highlight three slices in red.
[/SCENE]
[02:45] That is all for today.
`

func TestParseLevel(t *testing.T) {
	cases := map[string]script.Level{
		"":             script.Beginner,
		"1":            script.Beginner,
		"Basic":        script.Beginner,
		"2":            script.Intermediate,
		" medium ":     script.Intermediate,
		"3":            script.Advanced,
		"EXPERT":       script.Advanced,
		"intermediate": script.Intermediate,
	}
	for in, want := range cases {
		got, err := script.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := script.ParseLevel("wizard")
	assert.ErrorIs(t, err, script.ErrUnknownLevel)
}

func TestSceneCount(t *testing.T) {
	assert.Equal(t, 3, script.SceneCount(1))
	assert.Equal(t, 3, script.SceneCount(3))
	assert.Equal(t, 4, script.SceneCount(5))
	assert.Equal(t, 5, script.SceneCount(7))
	assert.Equal(t, 6, script.SceneCount(10))
}

func TestExtractScenes(t *testing.T) {
	assert.Equal(t, []string{
		"Draw a pizza cut into eight slices.",
		"Highlight three slices in red.",
	}, script.ExtractScenes(sample))
	assert.Empty(t, script.ExtractScenes("[00:00] no scenes here"))
}

func TestLastTimecode(t *testing.T) {
	last, ok := script.LastTimecode(sample)
	require.True(t, ok)
	assert.Equal(t, 165, last)

	_, ok = script.LastTimecode("nothing")
	assert.False(t, ok)
}

func TestExtractTiming(t *testing.T) {
	timing := script.ExtractTiming(sample)

	require.Len(t, timing.Lines, 4)
	assert.Equal(t, script.Line{At: 4, Text: "A fraction is part of a whole.", Words: 7}, timing.Lines[1])
	assert.Equal(t, 70, timing.Lines[2].At)
	assert.Equal(t, 3+7+7+5, timing.TotalWords)
	assert.Equal(t, 165, timing.TotalDuration)
	assert.InDelta(t, 22.0/165*60, timing.WordsPerMinute, 0.001)

	empty := script.ExtractTiming("")
	assert.Equal(t, 300, empty.TotalDuration)
	assert.Equal(t, float64(0), empty.WordsPerMinute)
}

func TestCleanForNarration(t *testing.T) {
	got := script.CleanForNarration(sample)
	assert.Equal(t, "# Fractions Welcome to fractions. A fraction is part of a whole. Three eighths of the pizza is gone. That is all for today.", got)
}

func TestFormatTimecode(t *testing.T) {
	assert.Equal(t, "00:00", script.FormatTimecode(0))
	assert.Equal(t, "02:45", script.FormatTimecode(165))
	assert.Equal(t, "12:05", script.FormatTimecode(725))
}

func TestPrompts(t *testing.T) {
	system, user := script.Prompts(script.Request{Topic: "Fractions", Level: script.Intermediate, Duration: 5})

	assert.Contains(t, system, "5-minute educational script on Fractions")
	assert.Contains(t, system, "300 seconds, about 500 words")
	assert.Contains(t, system, "[4:40]")
	assert.Contains(t, system, "Include exactly 4 detailed scene descriptions")
	assert.Contains(t, system, `displaying "Fractions" in white serif font`)
	assert.Contains(t, user, "MUST include 4 extremely detailed")
	assert.NotContains(t, user, "style")

	_, user = script.Prompts(script.Request{Topic: "Fractions", Duration: 2, Style: "enthusiastic"})
	assert.Contains(t, user, "in a enthusiastic style")
}

type fakeLLM struct {
	out   string
	err   error
	calls int
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	return f.out, f.err
}

func TestGenerator_DryRun(t *testing.T) {
	f := &fakeLLM{}
	g := script.NewGenerator(f, logging.Discard())

	out, err := g.Generate(context.Background(), script.Request{Topic: "Area", Duration: 3, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 0, f.calls)
	assert.Contains(t, out, "# Math Tutorial: Area\n")
	assert.Len(t, script.ExtractScenes(out), 2)
}

func TestGenerator_FallbackOnError(t *testing.T) {
	g := script.NewGenerator(&fakeLLM{err: errors.New("timeout")}, logging.Discard())

	out, err := g.Generate(context.Background(), script.Request{Topic: "Area", Duration: 3})
	require.NoError(t, err)
	assert.Contains(t, out, "(FALLBACK)")
	assert.Contains(t, out, "Please try again later")
}

func TestGenerator_NilCompleter(t *testing.T) {
	g := script.NewGenerator(nil, logging.Discard())

	out, err := g.Generate(context.Background(), script.Request{Topic: "Area", Duration: 3})
	require.NoError(t, err)
	assert.Equal(t, script.FallbackScript("Area"), out)
}

func TestGenerator_CancelledContext(t *testing.T) {
	g := script.NewGenerator(&fakeLLM{err: context.Canceled}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, script.Request{Topic: "Area", Duration: 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerator_ShortScriptWarning(t *testing.T) {
	g := script.NewGenerator(&fakeLLM{out: sample}, logging.Discard())

	out, err := g.Generate(context.Background(), script.Request{Topic: "Fractions", Duration: 5})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, sample))
	assert.Contains(t, out, "WARNING: Script may be too short. Last time code is [02:45] but requested duration was 5 minutes.")

	// 165s is within 30s of a 3 minute request
	out, err = g.Generate(context.Background(), script.Request{Topic: "Fractions", Duration: 3})
	require.NoError(t, err)
	assert.Equal(t, sample, out)
}
