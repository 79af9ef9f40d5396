package script

import (
	"fmt"
	"strings"
)

const wordsPerMinute = 100

var firstSceneExamples = map[Level]string{
	Beginner: `[SCENE]
Start with a title screen that displays "{TOPIC}" in large, blue text against a light background. At 0:03, animate the title moving to the top. At 0:05, draw a right-angled triangle with sides three and four, and hypotenuse five. Use bright colors and label each side. At 0:10, highlight the right angle. At 0:15, draw squares on each side and label their areas. At 0:25, show the phrase "a squared plus b squared equals c squared." At 0:35, display a checkmark confirming the equation.
[/SCENE]`,
	Intermediate: `[SCENE]
Begin with a title screen displaying "{TOPIC}" in white serif font against a deep blue gradient. At 0:07, switch to a coordinate plane with axes from minus ten to ten. At 0:10, draw a right triangle with vertices at (0,0), (8,0), and (8,6) using thick, colored lines. At 0:20, animate squares growing from each side and label their areas. At 0:30, display "a squared plus b squared equals c squared" with matching color animations. At 0:35, show the calculation "64 plus 36 equals 100" with arrows linking the terms.
[/SCENE]`,
	Advanced: `[SCENE]
Open with a minimalist title card displaying "{TOPIC}" in an elegant serif font on a black background. At 0:07, transition to a complex plane with real and imaginary axes. At 0:11, draw a right triangle with vertices at (0,0), (4,0), and (4,3). At 0:30, display vector notation and animate the Euclidean norm calculation. At 0:40, show the general form "c equals the square root of a squared plus b squared." At 0:50, link the theorem to the n-dimensional distance formula.
[/SCENE]`,
}

const applicationSceneExample = `[SCENE]
Illustrate a real-world application of the theorem. At 0:05, show a ladder leaning against a wall forming a right triangle. Label the wall as twenty feet, the ladder as twenty-five feet, and mark the unknown horizontal distance. At 0:15, substitute values to demonstrate that the horizontal distance equals fifteen feet. At 0:55, display a montage of similar applications in architecture, navigation, and physics.
[/SCENE]`

// Prompts builds the system and user messages for a script request.
func Prompts(req Request) (system, user string) {
	minutes := req.Duration
	seconds := minutes * 60
	words := seconds * wordsPerMinute / 60
	scenes := SceneCount(minutes)
	level := req.Level.Description()
	example := strings.ReplaceAll(firstSceneExamples[normalizeLevel(req.Level)], "{TOPIC}", req.Topic)

	system = fmt.Sprintf(`You are an expert math professor. Generate a highly structured, %[1]d-minute educational script on %[2]s at a %[3]s.

### Formatting Rules:
1. Every sentence must be preceded by a time code in the format "[mm:ss] {sentence}". The pace is exactly %[4]d words per minute.
2. The total script length must be exactly %[1]d minutes (%[5]d seconds, about %[6]d words). The final time code should be at least [%[7]d:40].
3. Mathematical expressions must be written in words (e.g., "x squared" instead of "x^2").
4. The script must start with a clear introduction to %[2]s, include the first scene within the first 20 seconds, provide multiple examples (including at least one real-world application), and end with a summary.
5. Include exactly %[8]d detailed scene descriptions. Each scene (delimited by "[SCENE]" and "[/SCENE]") must be at least 150 words long and include precise animation instructions (colors, positions, sizes, timings).

First Scene Example:
%[9]s

Real-World Application Scene Example:
%[10]s

Generate a complete script following these rules.
`, minutes, req.Topic, level, wordsPerMinute, seconds, words, minutes-1, scenes, example, applicationSceneExample)

	user = fmt.Sprintf("Create a detailed %[1]d-minute educational script about %[2]s at a %[3]s sophistication level. "+
		"The script MUST include %[4]d extremely detailed scene descriptions, with the FIRST scene within the first 20 seconds visualizing %[2]s. "+
		"The script must run the full %[1]d minutes (ending at least at [%[5]d:40]).",
		minutes, req.Topic, level, scenes, minutes-1)
	if req.Style != "" {
		user += fmt.Sprintf(" Write the narration in a %s style.", req.Style)
	}
	return system, user
}

func normalizeLevel(l Level) Level {
	if l < Beginner || l > Advanced {
		return Beginner
	}
	return l
}

// DryRunScript is returned without calling the model.
func DryRunScript(topic string) string {
	return placeholder(topic, "", "Show a detailed diagram and explanation of the concept.",
		"For more in-depth tutorials, check out our other videos.")
}

// FallbackScript is used when the model cannot be reached.
func FallbackScript(topic string) string {
	return placeholder(topic, " (FALLBACK)", "Show a simple diagram illustrating the basic concept.",
		"Please try again later for a more detailed explanation.")
}

func placeholder(topic, titleSuffix, secondScene, closing string) string {
	return fmt.Sprintf(`# Math Tutorial: %[1]s%[2]s

[00:00] Welcome to this math tutorial on %[1]s.
[00:05] In this video, we'll explore the key concepts and applications.

[SCENE]
Start with a title screen showing "%[1]s" in large blue text on a white background.
[/SCENE]

[00:15] %[1]s is a fundamental concept in mathematics.
[00:20] Understanding this concept is important for many applications.

[SCENE]
%[3]s
[/SCENE]

[00:35] This concludes our brief introduction to %[1]s.
[00:40] %[4]s
`, topic, titleSuffix, secondScene, closing)
}
