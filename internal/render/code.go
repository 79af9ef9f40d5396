// Package render turns scene descriptions into animation clips.
package render

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"tutorial-service/internal/llm"
)

// SceneClass is the class every generated scene file defines.
const SceneClass = "UserAnimationScene"

const codeSystemPrompt = "You are an expert in creating educational math visualizations with Manim. " +
	"Return ONLY complete, working Python code that starts with 'from manim import *'.\n\n" +
	"CRITICAL REQUIREMENTS:\n" +
	"1. The class must be named " + SceneClass + " and inherit from Scene\n" +
	"2. The construct method must be defined and use self.play() for all animations\n" +
	"3. All objects must stay within visible bounds (-6 to 6 horizontal, -3.5 to 3.5 vertical)\n" +
	"4. Use Create() instead of ShowCreation() and Text() instead of Tex() or MathTex()\n" +
	"5. Do not include any explanations, only return the Python code."

var (
	classRe       = regexp.MustCompile(`class\s+\w+\s*\([^)]*\)`)
	sceneClassRe  = regexp.MustCompile(`class\s+` + SceneClass + `\s*\(\s*\w*Scene\s*\)`)
	constructRe   = regexp.MustCompile(`def\s+construct\s*\(\s*self\s*\)`)
	methodRe      = regexp.MustCompile(`def\s+\w+\s*\(\s*self\s*\)`)
	bareConstruct = regexp.MustCompile(`def\s+construct\s*\(\s*\)`)
	finalWaitRe   = regexp.MustCompile(`self\.wait\s*\(\s*[1-9]\s*\)\s*$`)
)

// Coder asks a model for scene code.
type Coder struct {
	llm llm.Completer
	log logrus.FieldLogger
}

func NewCoder(c llm.Completer, log logrus.FieldLogger) *Coder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coder{llm: c, log: log}
}

// Code returns runnable scene code for description. The second result
// reports whether the fallback template was used.
func (c *Coder) Code(ctx context.Context, description string, dryRun bool) (string, bool) {
	if dryRun || c.llm == nil {
		return FallbackCode(description), true
	}

	user := fmt.Sprintf("Create a Manim visualization for:\n%s\n\nReturn only the complete Python code without markdown formatting.", description)
	raw, err := c.llm.Complete(ctx, codeSystemPrompt, user)
	if err != nil {
		c.log.WithError(err).Warn("scene code generation failed, using fallback")
		return FallbackCode(description), true
	}
	code := llm.StripCodeFence(raw)
	if strings.TrimSpace(code) == "" {
		c.log.Warn("empty scene code, using fallback")
		return FallbackCode(description), true
	}
	return NormalizeCode(code), false
}

// NormalizeCode repairs the usual defects in generated scene code: missing
// import, wrong class name, missing construct, no closing wait.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(llm.StripCodeFence(code))
	if !strings.HasPrefix(code, "from manim import *") {
		code = "from manim import *\n\n" + code
	}
	if !sceneClassRe.MatchString(code) {
		code = replaceFirst(classRe, code, "class "+SceneClass+"(Scene)")
	}
	code = bareConstruct.ReplaceAllString(code, "def construct(self)")
	if !constructRe.MatchString(code) {
		code = replaceFirst(methodRe, code, "def construct(self)")
	}
	if !finalWaitRe.MatchString(code) {
		code = strings.TrimRight(code, " \t\n") + "\n        self.wait(2)"
	}
	return code + "\n"
}

func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}

// SceneTopic is the first sentence of a description, cut to 30 characters.
func SceneTopic(description string) string {
	first := strings.TrimSpace(strings.SplitN(description, ".", 2)[0])
	if first == "" {
		return "Mathematical Animation"
	}
	if r := []rune(first); len(r) > 30 {
		return string(r[:30]) + "..."
	}
	return first
}

func FallbackCode(description string) string {
	topic := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(SceneTopic(description))
	return fmt.Sprintf(`from manim import *

class %s(Scene):
    def construct(self):
        title = Text('Scene Generation Fallback', color=RED)
        self.play(Write(title))
        self.wait(1)
        explanation = Text('Unable to generate custom animation', color=WHITE, font_size=24)
        explanation.next_to(title, DOWN)
        self.play(FadeIn(explanation))
        self.wait(1)
        scene_topic = Text('%s', color=BLUE, font_size=30)
        scene_topic.next_to(explanation, DOWN, buff=0.5)
        self.play(Create(scene_topic))
        self.wait(2)
        circle = Circle(color=BLUE)
        square = Square(color=RED)
        square.next_to(circle, RIGHT)
        self.play(Create(circle), run_time=1)
        self.play(Create(square), run_time=1)
        self.wait(2)
`, SceneClass, topic)
}
