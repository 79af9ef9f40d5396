// Package config reads service settings from the environment (with an
// optional .env file) and pipeline knobs from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tutorial-service/internal/audio"
)

const EnvPrefix = "TUTORIAL_"

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":5000"`
	BaseDir  string `env:"BASE_DIR" envDefault:"generated"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"file"`
	PostgresDSN  string `env:"POSTGRES_DSN"`
	RedisAddr    string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisKey     string `env:"REDIS_KEY" envDefault:"tutorial:tasks"`
	SQLitePath   string `env:"SQLITE_PATH"`

	Workers    int           `env:"WORKERS" envDefault:"4"`
	QueueSize  int           `env:"QUEUE_SIZE" envDefault:"64"`
	JobTimeout time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// PipelineFile points at a YAML file; keys it sets win over the environment.
	PipelineFile string `env:"PIPELINE_CONFIG"`

	LLM    LLMConfig    `yaml:"llm"`
	Speech SpeechConfig `yaml:"speech"`
	Render RenderConfig `yaml:"render"`
	Tools  ToolsConfig  `yaml:"tools"`
}

type LLMConfig struct {
	APIKey      string        `env:"OPENAI_API_KEY" yaml:"-"`
	BaseURL     string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1" yaml:"base_url"`
	Model       string        `env:"LLM_MODEL" envDefault:"gpt-4" yaml:"model"`
	Temperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.7" yaml:"temperature"`
	MaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"4000" yaml:"max_tokens"`
	Timeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"90s" yaml:"timeout"`
}

type SpeechConfig struct {
	APIKey  string        `env:"ELEVENLABS_API_KEY" yaml:"-"`
	BaseURL string        `env:"ELEVENLABS_BASE_URL" envDefault:"https://api.elevenlabs.io" yaml:"base_url"`
	Model   string        `env:"TTS_MODEL" envDefault:"eleven_multilingual_v2" yaml:"model"`
	Timeout time.Duration `env:"TTS_TIMEOUT" envDefault:"60s" yaml:"timeout"`
	Voices  []audio.Voice `yaml:"voices"`
}

type RenderConfig struct {
	Quality string        `env:"RENDER_QUALITY" envDefault:"l" yaml:"quality"`
	Timeout time.Duration `env:"RENDER_TIMEOUT" envDefault:"120s" yaml:"timeout"`
}

type ToolsConfig struct {
	FFmpeg  string `env:"FFMPEG_PATH" envDefault:"ffmpeg" yaml:"ffmpeg"`
	FFprobe string `env:"FFPROBE_PATH" envDefault:"ffprobe" yaml:"ffprobe"`
	Manim   string `env:"MANIM_PATH" envDefault:"manim" yaml:"manim"`
}

// Load reads .env (if present), the TUTORIAL_* environment and the optional
// pipeline YAML file.
func Load() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()
	return Parse(env.Options{Prefix: EnvPrefix})
}

// Parse is Load without the .env step; tests pass Environment directly.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// unprefixed names shared with other tools
	lookup := os.Getenv
	if opts.Environment != nil {
		lookup = func(k string) string { return opts.Environment[k] }
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = lookup("OPENAI_API_KEY")
	}
	if cfg.Speech.APIKey == "" {
		cfg.Speech.APIKey = lookup("ELEVENLABS_API_KEY")
	}

	if cfg.PipelineFile != "" {
		if err := cfg.applyPipelineFile(cfg.PipelineFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyPipelineFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse pipeline config %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFile, BackendSQLite, BackendRedis:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("store backend postgres needs %sPOSTGRES_DSN", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize)
	}
	return nil
}

// Dirs are the working directories under BaseDir.
type Dirs struct {
	Scenes    string
	Media     string
	Videos    string
	Audio     string
	Data      string
	Temp      string
	Tutorials string
}

func (c *Config) Dirs() Dirs {
	base := c.BaseDir
	return Dirs{
		Scenes:    filepath.Join(base, "scenes"),
		Media:     filepath.Join(base, "media"),
		Videos:    filepath.Join(base, "videos"),
		Audio:     filepath.Join(base, "audio"),
		Data:      filepath.Join(base, "data"),
		Temp:      filepath.Join(base, "temp"),
		Tutorials: filepath.Join(base, "tutorials"),
	}
}

func (d Dirs) All() []string {
	return []string{d.Scenes, d.Media, d.Videos, d.Audio, d.Data, d.Temp, d.Tutorials}
}

// EnsureDirs creates every working directory.
func (c *Config) EnsureDirs() error {
	for _, dir := range c.Dirs().All() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// TaskFile is the JSON document used by the file backend.
func (c *Config) TaskFile() string {
	return filepath.Join(c.Dirs().Data, "tasks.json")
}

func (c *Config) SQLiteFile() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.Dirs().Data, "tasks.db")
}
