// Package script writes time-coded tutorial scripts and parses them back.
package script

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tutorial-service/internal/llm"
)

type Request struct {
	Topic    string
	Level    Level
	Duration int // minutes
	Style    string
	DryRun   bool
}

type Generator struct {
	llm llm.Completer
	log logrus.FieldLogger
}

// NewGenerator returns a generator; a nil completer always yields the
// fallback script.
func NewGenerator(c llm.Completer, log logrus.FieldLogger) *Generator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{llm: c, log: log}
}

// Generate never fails on model errors; it logs them and returns the
// fallback script instead. Only a cancelled ctx is reported.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	log := g.log.WithFields(logrus.Fields{
		"topic":    req.Topic,
		"duration": req.Duration,
		"level":    req.Level.String(),
		"dry_run":  req.DryRun,
	})
	if req.DryRun {
		log.Info("dry run, using placeholder script")
		return DryRunScript(req.Topic), nil
	}
	if g.llm == nil {
		log.Warn("no model configured, using fallback script")
		return FallbackScript(req.Topic), nil
	}

	start := time.Now()
	system, user := Prompts(req)
	out, err := g.llm.Complete(ctx, system, user)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		log.WithError(err).Warn("script generation failed, using fallback script")
		return FallbackScript(req.Topic), nil
	}

	out = checkLength(out, req.Duration, log)
	log.WithFields(logrus.Fields{
		"scenes":      len(ExtractScenes(out)),
		"chars":       len(out),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("script generated")
	return out, nil
}

// shortSlack is how far before the requested end the last time code may be.
const shortSlack = 30

func checkLength(script string, minutes int, log logrus.FieldLogger) string {
	last, ok := LastTimecode(script)
	if !ok {
		log.Error("no time codes found in generated script")
		return script
	}
	if last < minutes*60-shortSlack {
		log.WithField("last_timecode", FormatTimecode(last)).Warn("script too short")
		script += fmt.Sprintf("\n\nWARNING: Script may be too short. Last time code is [%s] but requested duration was %d minutes.\n",
			FormatTimecode(last), minutes)
	}
	return script
}
