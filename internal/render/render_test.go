package render_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorial-service/internal/logging"
	"tutorial-service/internal/render"
)

// manimStub drops a clip where manim would put it.
type manimStub struct {
	mediaDir string
	args     []string
	err      error
}

func (m *manimStub) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.args = args
	if m.err != nil {
		return nil, m.err
	}
	var out string
	for i, a := range args {
		if a == "-o" {
			out = args[i+1]
		}
	}
	dir := filepath.Join(m.mediaDir, "videos", strings.TrimSuffix(out, ".mp4"), "480p15")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return []byte("File ready"), os.WriteFile(filepath.Join(dir, out), []byte("clip"), 0o644)
}

type placeholderStub struct {
	outs []string
	err  error
}

func (p *placeholderStub) PlaceholderClip(ctx context.Context, out string, seconds int) error {
	p.outs = append(p.outs, out)
	if p.err != nil {
		return p.err
	}
	return os.WriteFile(out, []byte("black"), 0o644)
}

func newConfig(t *testing.T) render.Config {
	dir := t.TempDir()
	return render.Config{
		ScenesDir: filepath.Join(dir, "scenes"),
		MediaDir:  filepath.Join(dir, "media"),
		VideosDir: filepath.Join(dir, "videos"),
	}
}

func TestRenderer_Success(t *testing.T) {
	cfg := newConfig(t)
	run := &manimStub{mediaDir: cfg.MediaDir}
	ph := &placeholderStub{}
	r := render.NewRenderer(cfg, run, ph, logging.Discard())

	clip, err := r.Render(context.Background(), "scene_0", "from manim import *\n")
	require.NoError(t, err)
	assert.False(t, clip.Placeholder)
	assert.Equal(t, filepath.Join(cfg.VideosDir, "scene_0.mp4"), clip.Path)
	assert.FileExists(t, clip.Path)
	assert.FileExists(t, filepath.Join(cfg.ScenesDir, "scene_0.py"))
	assert.Empty(t, ph.outs)
	assert.Equal(t, "-ql", run.args[0])
	assert.Equal(t, render.SceneClass, run.args[len(run.args)-1])
}

func TestRenderer_FailureUsesPlaceholder(t *testing.T) {
	cfg := newConfig(t)
	ph := &placeholderStub{}
	r := render.NewRenderer(cfg, &manimStub{err: errors.New("exit status 1")}, ph, logging.Discard())

	clip, err := r.Render(context.Background(), "scene_1", "broken")
	require.NoError(t, err)
	assert.True(t, clip.Placeholder)
	assert.Equal(t, []string{filepath.Join(cfg.VideosDir, "scene_1.mp4")}, ph.outs)
}

func TestRenderer_PlaceholderFailure(t *testing.T) {
	cfg := newConfig(t)
	r := render.NewRenderer(cfg, &manimStub{err: errors.New("exit 1")},
		&placeholderStub{err: errors.New("no ffmpeg")}, logging.Discard())

	_, err := r.Render(context.Background(), "scene_2", "broken")
	assert.Error(t, err)
}

func TestNormalizeCode(t *testing.T) {
	in := "```python\nclass Foo(MovingCameraScene):\n    def build(self):\n        self.play(Create(Circle()))\n```"
	out := render.NormalizeCode(in)

	assert.True(t, strings.HasPrefix(out, "from manim import *\n\n"))
	assert.Contains(t, out, "class UserAnimationScene(Scene):")
	assert.Contains(t, out, "def construct(self):")
	assert.True(t, strings.HasSuffix(out, "self.wait(2)\n"))

	good := "from manim import *\n\nclass UserAnimationScene(Scene):\n    def construct(self):\n        self.wait(3)"
	assert.Equal(t, good+"\n", render.NormalizeCode(good))

	assert.Contains(t, render.NormalizeCode("class A(Scene):\n    def construct():\n        pass"), "def construct(self):")
}

func TestSceneTopic(t *testing.T) {
	assert.Equal(t, "Draw a circle", render.SceneTopic("Draw a circle. Then a square."))
	assert.Equal(t, "Start with a title screen that...", render.SceneTopic("Start with a title screen that displays the topic."))
	assert.Equal(t, "Mathematical Animation", render.SceneTopic(""))
}

func TestFallbackCodeEscapesQuotes(t *testing.T) {
	code := render.FallbackCode("Show Euler's identity")
	assert.Contains(t, code, `Text('Show Euler\'s identity'`)
	assert.Contains(t, code, "class UserAnimationScene(Scene):")
}

type fakeLLM struct {
	out string
	err error
}

func (f fakeLLM) Complete(ctx context.Context, system, user string) (string, error) {
	return f.out, f.err
}

func TestCoder(t *testing.T) {
	code, fallback := render.NewCoder(fakeLLM{err: errors.New("down")}, logging.Discard()).
		Code(context.Background(), "Draw a circle.", false)
	assert.True(t, fallback)
	assert.Contains(t, code, "Draw a circle")

	code, fallback = render.NewCoder(fakeLLM{out: "```python\nfrom manim import *\n\nclass UserAnimationScene(Scene):\n    def construct(self):\n        self.wait(1)\n```"}, logging.Discard()).
		Code(context.Background(), "Draw a circle.", false)
	assert.False(t, fallback)
	assert.NotContains(t, code, "```")

	_, fallback = render.NewCoder(fakeLLM{out: "x"}, logging.Discard()).Code(context.Background(), "d", true)
	assert.True(t, fallback)
}
