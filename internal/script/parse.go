package script

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	sceneRe     = regexp.MustCompile(`(?s)\[SCENE\](.*?)\[/SCENE\]`)
	timecodeRe  = regexp.MustCompile(`\[(\d+):(\d+)\]`)
	timedLineRe = regexp.MustCompile(`\[(\d+):(\d+)\]\s*(?:\{([^}]*)\}|([^\[\n{][^\n]*))`)
	openBraceRe = regexp.MustCompile(`\[\d+:\d+\]\s*\{`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// ExtractScenes returns the trimmed bodies of every [SCENE]...[/SCENE] block.
func ExtractScenes(script string) []string {
	matches := sceneRe.FindAllStringSubmatch(script, -1)
	scenes := make([]string, 0, len(matches))
	for _, m := range matches {
		scenes = append(scenes, strings.TrimSpace(m[1]))
	}
	return scenes
}

// LastTimecode returns the last [mm:ss] marker in seconds.
func LastTimecode(script string) (int, bool) {
	matches := timecodeRe.FindAllStringSubmatch(script, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1]
	return toSeconds(last[1], last[2]), true
}

// Line is one narrated sentence with its start offset.
type Line struct {
	At    int    `json:"time"`
	Text  string `json:"text"`
	Words int    `json:"word_count"`
}

type Timing struct {
	Lines          []Line  `json:"timing_data"`
	TotalWords     int     `json:"total_words"`
	TotalDuration  int     `json:"total_duration"`
	WordsPerMinute float64 `json:"words_per_minute"`
}

// defaultDuration applies when a script carries no time codes at all.
const defaultDuration = 300

func ExtractTiming(script string) Timing {
	var t Timing
	for _, m := range timedLineRe.FindAllStringSubmatch(script, -1) {
		text := m[3]
		if text == "" {
			text = m[4]
		}
		text = strings.TrimSpace(text)
		words := len(strings.Fields(text))
		t.TotalWords += words
		t.Lines = append(t.Lines, Line{At: toSeconds(m[1], m[2]), Text: text, Words: words})
	}

	t.TotalDuration = defaultDuration
	if len(t.Lines) > 0 {
		t.TotalDuration = t.Lines[len(t.Lines)-1].At
	}
	t.WordsPerMinute = 100
	if t.TotalDuration > 0 {
		t.WordsPerMinute = float64(t.TotalWords) / float64(t.TotalDuration) * 60
	}
	return t
}

// CleanForNarration strips scene blocks, time codes and braces, leaving the
// text to be spoken on one line.
func CleanForNarration(script string) string {
	text := sceneRe.ReplaceAllString(script, "")
	text = openBraceRe.ReplaceAllString(text, "")
	text = timecodeRe.ReplaceAllString(text, "")
	text = strings.NewReplacer("{", "", "}", "").Replace(text)
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

func toSeconds(min, sec string) int {
	m, _ := strconv.Atoi(min)
	s, _ := strconv.Atoi(sec)
	return m*60 + s
}

// FormatTimecode renders seconds as mm:ss.
func FormatTimecode(seconds int) string {
	return pad2(seconds/60) + ":" + pad2(seconds%60)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
