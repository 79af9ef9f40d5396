package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"tutorial-service/internal/media"
)

// Placeholderer writes a stand-in clip when rendering fails.
type Placeholderer interface {
	PlaceholderClip(ctx context.Context, out string, seconds int) error
}

type Config struct {
	Manim     string
	Quality   string // manim quality flag, e.g. "l", "m", "h"
	ScenesDir string
	MediaDir  string
	VideosDir string
	Timeout   time.Duration
}

type Clip struct {
	Path        string
	Placeholder bool
}

type Renderer struct {
	cfg   Config
	run   media.Runner
	clips Placeholderer
	log   logrus.FieldLogger
}

func NewRenderer(cfg Config, run media.Runner, clips Placeholderer, log logrus.FieldLogger) *Renderer {
	if cfg.Manim == "" {
		cfg.Manim = "manim"
	}
	if cfg.Quality == "" {
		cfg.Quality = "l"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if run == nil {
		run = media.CommandRunner{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Renderer{cfg: cfg, run: run, clips: clips, log: log}
}

// SceneFile is where the code for scene n is written.
func (r *Renderer) SceneFile(name string) string {
	return filepath.Join(r.cfg.ScenesDir, name+".py")
}

// Render writes code to <scenes>/<name>.py and renders it into
// <videos>/<name>.mp4. A failed render yields a placeholder clip; only a
// failure to produce even that is returned as an error.
func (r *Renderer) Render(ctx context.Context, name, code string) (Clip, error) {
	log := r.log.WithField("scene", name)
	out := filepath.Join(r.cfg.VideosDir, name+".mp4")

	err := r.render(ctx, name, code, out)
	if err == nil {
		log.WithField("path", out).Info("scene rendered")
		return Clip{Path: out}, nil
	}
	if ctx.Err() != nil {
		return Clip{}, ctx.Err()
	}
	log.WithError(err).Warn("render failed, using placeholder clip")

	if r.clips == nil {
		return Clip{}, err
	}
	if perr := r.clips.PlaceholderClip(ctx, out, 10); perr != nil {
		return Clip{}, fmt.Errorf("render %s: %w (placeholder: %v)", name, err, perr)
	}
	return Clip{Path: out, Placeholder: true}, nil
}

func (r *Renderer) render(ctx context.Context, name, code, out string) error {
	file := r.SceneFile(name)
	for _, dir := range []string{r.cfg.ScenesDir, r.cfg.MediaDir, r.cfg.VideosDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(file, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}

	rctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	_, err := r.run.Run(rctx, r.cfg.Manim,
		"-q"+r.cfg.Quality,
		"--format", "mp4",
		"--media_dir", r.cfg.MediaDir,
		"-o", name+".mp4",
		file, SceneClass,
	)
	if err != nil {
		if errors.Is(rctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("manim timed out after %s", r.cfg.Timeout)
		}
		return err
	}

	rendered, err := findNewest(r.cfg.MediaDir, name+".mp4")
	if err != nil {
		return err
	}
	if rendered == out {
		return nil
	}
	return moveFile(rendered, out)
}

// findNewest walks root for files called name and returns the latest.
func findNewest(root, name string) (string, error) {
	var (
		best    string
		bestMod time.Time
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = path, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if best == "" {
		return "", fmt.Errorf("rendered file %s not found under %s", name, root)
	}
	return best, nil
}

func moveFile(from, to string) error {
	if err := os.Rename(from, to); err == nil {
		return nil
	}
	data, err := os.ReadFile(from)
	if err != nil {
		return err
	}
	if err := os.WriteFile(to, data, 0o644); err != nil {
		return err
	}
	return os.Remove(from)
}
