package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const subtitleStyle = "FontName=Arial,FontSize=24,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000," +
	"BackColour=&H80000000,BorderStyle=4,Outline=1,Shadow=0,MarginV=30"

type FFmpeg struct {
	run     Runner
	ffmpeg  string
	ffprobe string
	log     logrus.FieldLogger
}

func NewFFmpeg(run Runner, ffmpegPath, ffprobePath string, log logrus.FieldLogger) *FFmpeg {
	if run == nil {
		run = CommandRunner{}
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FFmpeg{run: run, ffmpeg: ffmpegPath, ffprobe: ffprobePath, log: log}
}

// Silence writes a silent stereo mp3 lasting ceil(seconds).
func (f *FFmpeg) Silence(ctx context.Context, out string, seconds float64) error {
	dur := int(math.Ceil(seconds))
	if dur < 1 {
		dur = 1
	}
	if err := mkdirFor(out); err != nil {
		return err
	}
	_, err := f.run.Run(ctx, f.ffmpeg, "-y",
		"-f", "lavfi", "-i", "anullsrc=r=44100:cl=stereo",
		"-t", strconv.Itoa(dur),
		"-c:a", "libmp3lame", "-b:a", "128k",
		out,
	)
	if err != nil {
		return fmt.Errorf("silence: %w", err)
	}
	f.log.WithFields(logrus.Fields{"path": out, "seconds": dur}).Debug("silent audio written")
	return nil
}

// PlaceholderClip writes a black 1280x720 clip.
func (f *FFmpeg) PlaceholderClip(ctx context.Context, out string, seconds int) error {
	if seconds < 1 {
		seconds = 10
	}
	if err := mkdirFor(out); err != nil {
		return err
	}
	_, err := f.run.Run(ctx, f.ffmpeg, "-y",
		"-f", "lavfi", "-i", fmt.Sprintf("color=c=black:s=1280x720:d=%d", seconds),
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		out,
	)
	if err != nil {
		return fmt.Errorf("placeholder clip: %w", err)
	}
	return nil
}

// Probe returns the container duration in seconds.
func (f *FFmpeg) Probe(ctx context.Context, path string) (float64, error) {
	out, err := f.run.Run(ctx, f.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	return dur, nil
}

// Concat joins clips with the concat demuxer; the list file is written to workDir.
func (f *FFmpeg) Concat(ctx context.Context, workDir string, inputs []string, out string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("concat: no inputs")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return err
	}

	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}
	listFile := filepath.Join(workDir, "concat_list.txt")
	if err := os.WriteFile(listFile, []byte(b.String()), 0o644); err != nil {
		return err
	}

	_, err := f.run.Run(ctx, f.ffmpeg, "-y",
		"-f", "concat", "-safe", "0",
		"-i", listFile,
		"-c", "copy",
		out,
	)
	if err != nil {
		return fmt.Errorf("concat: %w", err)
	}
	return nil
}

// MuxAudio lays audio under video, cutting to the shorter stream.
func (f *FFmpeg) MuxAudio(ctx context.Context, video, audio, out string) error {
	_, err := f.run.Run(ctx, f.ffmpeg, "-y",
		"-i", video,
		"-i", audio,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		out,
	)
	if err != nil {
		return fmt.Errorf("mux audio: %w", err)
	}
	return nil
}

func (f *FFmpeg) BurnSubtitles(ctx context.Context, video, srt, out string) error {
	filter := fmt.Sprintf("subtitles=%s:force_style='%s'", escapeSubtitlePath(srt), subtitleStyle)
	_, err := f.run.Run(ctx, f.ffmpeg, "-y",
		"-i", video,
		"-vf", filter,
		"-c:a", "copy",
		out,
	)
	if err != nil {
		return fmt.Errorf("burn subtitles: %w", err)
	}
	return nil
}

// the subtitles filter needs forward slashes and escaped colons
func escapeSubtitlePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ReplaceAll(path, ":", "\\:")
}

func mkdirFor(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
