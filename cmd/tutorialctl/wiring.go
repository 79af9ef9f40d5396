package main

import (
	"context"
	"fmt"
	"regexp"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"tutorial-service/internal/audio"
	"tutorial-service/internal/config"
	"tutorial-service/internal/llm"
	"tutorial-service/internal/media"
	"tutorial-service/internal/registry"
	"tutorial-service/internal/render"
	"tutorial-service/internal/repository/file"
	"tutorial-service/internal/repository/postgresql"
	redisstore "tutorial-service/internal/repository/redis"
	"tutorial-service/internal/repository/sqlite"
	"tutorial-service/internal/script"
	"tutorial-service/internal/tutorial"
)

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (registry.Store, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.BackendFile:
		path := cfg.TaskFile()
		log.WithField("path", path).Info("task store: file")
		return file.NewTaskStore(path), noop, nil

	case config.BackendPostgres:
		pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("pg: %w", err)
		}
		repo := postgresql.NewTaskRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("pg migrate: %w", err)
		}
		log.WithField("dsn", redactDSN(cfg.PostgresDSN)).Info("task store: postgres")
		return repo, pool.Close, nil

	case config.BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, noop, fmt.Errorf("redis: %w", err)
		}
		log.WithFields(logrus.Fields{"addr": cfg.RedisAddr, "key": cfg.RedisKey}).Info("task store: redis")
		return redisstore.NewTaskStore(rdb, cfg.RedisKey), func() { _ = rdb.Close() }, nil

	case config.BackendSQLite:
		path := cfg.SQLiteFile()
		st, err := sqlite.Open(path)
		if err != nil {
			return nil, noop, fmt.Errorf("sqlite: %w", err)
		}
		log.WithField("path", path).Info("task store: sqlite")
		return st, func() { _ = st.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func buildPipeline(cfg *config.Config, log *logrus.Logger) *tutorial.Pipeline {
	dirs := cfg.Dirs()
	component := func(name string) logrus.FieldLogger { return log.WithField("component", name) }

	completer := llm.New(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, component("llm"))

	ff := media.NewFFmpeg(media.CommandRunner{}, cfg.Tools.FFmpeg, cfg.Tools.FFprobe, component("ffmpeg"))

	narrator := audio.NewNarrator(audio.Config{
		APIKey:  cfg.Speech.APIKey,
		BaseURL: cfg.Speech.BaseURL,
		Model:   cfg.Speech.Model,
		Voices:  cfg.Speech.Voices,
		Timeout: cfg.Speech.Timeout,
	}, ff, component("narrator"))

	renderer := render.NewRenderer(render.Config{
		Manim:     cfg.Tools.Manim,
		Quality:   cfg.Render.Quality,
		ScenesDir: dirs.Scenes,
		MediaDir:  dirs.Media,
		VideosDir: dirs.Videos,
		Timeout:   cfg.Render.Timeout,
	}, media.CommandRunner{}, ff, component("renderer"))

	return tutorial.New(
		script.NewGenerator(completer, component("script")),
		render.NewCoder(completer, component("coder")),
		renderer,
		narrator,
		ff,
		tutorial.Dirs{Tutorials: dirs.Tutorials, Videos: dirs.Videos},
		component("pipeline"),
	)
}

// redactDSN masks the password: user:pass@ -> user:****@
func redactDSN(dsn string) string {
	re := regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)
	return re.ReplaceAllString(dsn, `://$1:****@`)
}
