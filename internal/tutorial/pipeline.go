// Package tutorial chains script, animation, narration and subtitles into a
// finished video.
package tutorial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tutorial-service/internal/audio"
	"tutorial-service/internal/media"
	"tutorial-service/internal/render"
	"tutorial-service/internal/script"
	"tutorial-service/internal/subtitles"
)

var ErrNoScenes = errors.New("script contains no scenes")

const (
	// MinDuration is the shortest tutorial produced, in minutes.
	MinDuration = 3

	ScriptFile   = "script.txt"
	VideoFile    = "tutorial.mp4"
	NarrationMP3 = "narration.mp3"
	SubtitleFile = "subtitles.srt"
)

// Reporter receives progress between 0 and 100.
type Reporter interface {
	Progress(pct float64, msg string)
}

type ScriptWriter interface {
	Generate(ctx context.Context, req script.Request) (string, error)
}

type SceneCoder interface {
	Code(ctx context.Context, description string, dryRun bool) (string, bool)
}

type SceneRenderer interface {
	Render(ctx context.Context, name, code string) (render.Clip, error)
}

type Narrator interface {
	Narrate(ctx context.Context, text, out string, dryRun bool) (audio.Result, error)
}

type Editor interface {
	Concat(ctx context.Context, workDir string, inputs []string, out string) error
	MuxAudio(ctx context.Context, video, audio, out string) error
	BurnSubtitles(ctx context.Context, video, srt, out string) error
}

type Dirs struct {
	Tutorials string
	Videos    string
}

type Pipeline struct {
	scripts  ScriptWriter
	coder    SceneCoder
	renderer SceneRenderer
	narrator Narrator
	editor   Editor
	dirs     Dirs
	log      logrus.FieldLogger
}

func New(scripts ScriptWriter, coder SceneCoder, renderer SceneRenderer, narrator Narrator, editor Editor, dirs Dirs, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		scripts:  scripts,
		coder:    coder,
		renderer: renderer,
		narrator: narrator,
		editor:   editor,
		dirs:     dirs,
		log:      log,
	}
}

type Params struct {
	Topic    string
	Level    script.Level
	Duration int // minutes
	DryRun   bool
}

// TutorialDir is where every artifact of one tutorial run is kept.
func (p *Pipeline) TutorialDir(id string) string {
	return filepath.Join(p.dirs.Tutorials, id)
}

// CreateTutorial runs every step for one tutorial and returns the path of
// the finished video.
func (p *Pipeline) CreateTutorial(ctx context.Context, id string, params Params, rep Reporter) (string, error) {
	start := time.Now()
	duration := params.Duration
	if duration < MinDuration {
		duration = MinDuration
	}
	log := p.log.WithFields(logrus.Fields{"task_id": id, "topic": params.Topic, "duration": duration})

	dir := p.TutorialDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	rep.Progress(5, fmt.Sprintf("Generating script for '%s' (%d min)...", params.Topic, duration))
	text, err := p.scripts.Generate(ctx, script.Request{
		Topic: params.Topic,
		Level: params.Level,
		// aim long so the finished video is not shorter than asked
		Duration: duration * 6 / 5,
		DryRun:   params.DryRun,
	})
	if err != nil {
		return "", fmt.Errorf("generate script: %w", err)
	}
	rep.Progress(10, fmt.Sprintf("Script generation completed (%d characters)", len(text)))
	if err := os.WriteFile(filepath.Join(dir, ScriptFile), []byte(text), 0o644); err != nil {
		return "", err
	}

	rep.Progress(12, "Extracting scene descriptions...")
	scenes := script.ExtractScenes(text)
	if len(scenes) == 0 {
		return "", ErrNoScenes
	}
	rep.Progress(15, fmt.Sprintf("Extracted %d scenes from script", len(scenes)))

	codes := make([]string, len(scenes))
	for i, desc := range scenes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rep.Progress(15+float64(i)/float64(len(scenes))*20,
			fmt.Sprintf("Generating animation code for scene %d/%d...", i+1, len(scenes)))
		code, fallback := p.coder.Code(ctx, desc, params.DryRun)
		if fallback {
			log.WithField("scene", i).Info("scene uses fallback animation")
		}
		codes[i] = code
	}

	rep.Progress(35, "Creating timing data for video...")
	timeline := media.Timeline(len(scenes), duration)
	if end := timeline[len(timeline)-1].End; end/60 < float64(duration) {
		timeline = media.Timeline(len(scenes), duration*11/10)
	}
	rep.Progress(40, fmt.Sprintf("Created timing data for %d scenes", len(timeline)))

	rep.Progress(45, "Rendering scene animations...")
	clips := make([]string, 0, len(codes))
	for i, code := range codes {
		clip, err := p.renderer.Render(ctx, sceneName(id, i), code)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.WithError(err).WithField("scene", i).Error("scene skipped")
			continue
		}
		clips = append(clips, clip.Path)
	}
	if len(clips) == 0 {
		return "", errors.New("no scene could be rendered")
	}
	rep.Progress(70, fmt.Sprintf("Rendered %d scene videos", len(clips)))

	rep.Progress(75, "Generating audio narration...")
	narration, err := p.narrator.Narrate(ctx, script.CleanForNarration(text), filepath.Join(dir, NarrationMP3), params.DryRun)
	if err != nil {
		return "", fmt.Errorf("narration: %w", err)
	}
	rep.Progress(80, "Generated audio narration")

	rep.Progress(85, "Generating subtitles...")
	srt := filepath.Join(dir, SubtitleFile)
	cues, err := subtitles.WriteFile(srt, text)
	if err != nil {
		return "", fmt.Errorf("subtitles: %w", err)
	}
	rep.Progress(90, "Generated subtitles")

	rep.Progress(95, "Assembling final video...")
	final, err := p.assemble(ctx, dir, clips, narration.Path, srt, cues > 0, log)
	if err != nil {
		return "", err
	}

	if p.dirs.Videos != "" {
		if err := copyFile(final, filepath.Join(p.dirs.Videos, "tutorial_"+id+".mp4")); err != nil {
			log.WithError(err).Warn("copy to videos dir failed")
		}
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("tutorial created")
	return final, nil
}

func (p *Pipeline) assemble(ctx context.Context, dir string, clips []string, narration, srt string, withSubs bool, log logrus.FieldLogger) (string, error) {
	current := filepath.Join(dir, "concat.mp4")
	if err := p.editor.Concat(ctx, dir, clips, current); err != nil {
		return "", err
	}

	if hasContent(narration) {
		withAudio := filepath.Join(dir, "audio_video.mp4")
		if err := p.editor.MuxAudio(ctx, current, narration, withAudio); err != nil {
			return "", err
		}
		current = withAudio
	} else {
		log.Warn("no narration audio, video stays silent")
	}

	if withSubs {
		subbed := filepath.Join(dir, "final_with_subs.mp4")
		if err := p.editor.BurnSubtitles(ctx, current, srt, subbed); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.WithError(err).Warn("subtitle burn failed, keeping video without subtitles")
		} else {
			current = subbed
		}
	}

	final := filepath.Join(dir, VideoFile)
	if err := os.Rename(current, final); err != nil {
		return "", fmt.Errorf("finalize video: %w", err)
	}
	return final, nil
}

// GenerateScript produces only the script, returned as {"script": ...}.
func (p *Pipeline) GenerateScript(ctx context.Context, req script.Request, rep Reporter) (map[string]string, error) {
	rep.Progress(10, fmt.Sprintf("Generating script for %s...", req.Topic))
	text, err := p.scripts.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]string{"script": text}, nil
}

// GenerateScene renders a single scene description and returns the clip path.
func (p *Pipeline) GenerateScene(ctx context.Context, description string, dryRun bool, rep Reporter) (string, error) {
	name := "scene_" + uuid.NewString()[:8]
	log := p.log.WithField("scene", name)

	rep.Progress(10, "Generating Manim code...")
	code, fallback := p.coder.Code(ctx, description, dryRun)
	if fallback {
		log.Info("scene uses fallback animation")
	}
	rep.Progress(40, "Manim code generated")

	rep.Progress(50, "Rendering scene...")
	clip, err := p.renderer.Render(ctx, name, code)
	if err != nil {
		return "", err
	}
	log.WithField("path", clip.Path).Info("scene rendered")
	return clip.Path, nil
}

func sceneName(id string, i int) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("scene_%s_%d", short, i)
}

func hasContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func copyFile(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
