// Package audio turns narration text into an mp3, falling back to silence
// when no speech service is usable.
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultModel   = "eleven_multilingual_v2"

	// placeholder pacing
	wordsPerSecond = 2.5
)

type Voice struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id"`
}

// DefaultVoices are tried in order.
var DefaultVoices = []Voice{
	{Name: "Rachel", ID: "21m00Tcm4TlvDq8ikWAM"},
	{Name: "Adam", ID: "pNInz6obpgDQGcFmaJgB"},
	{Name: "Bella", ID: "EXAVITQu4vr4xnSDxMaL"},
	{Name: "Antoni", ID: "ErXwobaYiN019PkySvjV"},
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Voices  []Voice
	Timeout time.Duration
}

// Silencer writes a silent track of the given length.
type Silencer interface {
	Silence(ctx context.Context, out string, seconds float64) error
}

type Result struct {
	Path        string
	Voice       string
	Placeholder bool
}

type Narrator struct {
	cfg        Config
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	silence    Silencer
	log        logrus.FieldLogger
}

func NewNarrator(cfg Config, silence Silencer, log logrus.FieldLogger) *Narrator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if len(cfg.Voices) == 0 {
		cfg.Voices = DefaultVoices
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Narrator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "tts",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}),
		silence: silence,
		log:     log,
	}
}

// Narrate writes speech for text to out. It only fails when not even a
// placeholder file could be written.
func (n *Narrator) Narrate(ctx context.Context, text, out string, dryRun bool) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return Result{}, err
	}
	log := n.log.WithField("path", out)

	switch {
	case dryRun:
		log.Info("dry run, writing silent narration")
		return n.placeholder(ctx, text, out)
	case n.cfg.APIKey == "":
		log.Warn("no speech api key, writing silent narration")
		return n.placeholder(ctx, text, out)
	}

	for _, v := range n.cfg.Voices {
		audio, err := n.synthesize(ctx, v, text)
		if err != nil {
			log.WithError(err).WithField("voice", v.Name).Warn("voice failed")
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			continue
		}
		if err := os.WriteFile(out, audio, 0o644); err != nil {
			return Result{}, fmt.Errorf("write %s: %w", out, err)
		}
		log.WithField("voice", v.Name).Info("narration generated")
		return Result{Path: out, Voice: v.Name}, nil
	}

	log.Error("all voices failed, writing silent narration")
	return n.placeholder(ctx, text, out)
}

// EstimateSeconds is the spoken length assumed for placeholder audio.
func EstimateSeconds(text string) float64 {
	return float64(len(strings.Fields(text))) / wordsPerSecond
}

func (n *Narrator) placeholder(ctx context.Context, text, out string) (Result, error) {
	res := Result{Path: out, Placeholder: true}
	if n.silence != nil {
		err := n.silence.Silence(ctx, out, EstimateSeconds(text))
		if err == nil {
			return res, nil
		}
		n.log.WithError(err).Warn("silent audio failed, writing empty file")
	}
	if err := os.WriteFile(out, nil, 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", out, err)
	}
	return res, nil
}

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

var errEmptyAudio = errors.New("empty audio response")

func (n *Narrator) synthesize(ctx context.Context, v Voice, text string) ([]byte, error) {
	out, err := n.cb.Execute(func() (any, error) {
		body, err := json.Marshal(ttsRequest{Text: text, ModelID: n.cfg.Model})
		if err != nil {
			return nil, err
		}
		url := strings.TrimRight(n.cfg.BaseURL, "/") + "/v1/text-to-speech/" + v.ID
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("xi-api-key", n.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/mpeg")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("tts request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("tts status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		if len(data) == 0 {
			return nil, errEmptyAudio
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}
