// Package report provides ready-made PipelineErrorEvent listeners: one
// logging through zap, one forwarding fatal failures to Sentry.
package report

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/pipeline"
)

// ZapListener returns an error listener logging every escalated failure at
// a severity-mapped level.
func ZapListener(logger *zap.Logger) pipeline.ErrorListener {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return func(ev pipeline.PipelineErrorEvent) {
		fields := []zap.Field{
			zap.String("pipeline", ev.Pipeline),
			zap.String("stage", ev.Stage),
			zap.Error(ev.Err),
		}
		if ev.Severity == pipeline.SeverityFatal {
			logger.Error("fatal pipeline failure", fields...)
		} else {
			logger.Warn("pipeline failure", fields...)
		}
	}
}

// SentryConfig holds configuration for the Sentry listener
type SentryConfig struct {
	// DSN is the Sentry project DSN
	DSN string

	// Environment tags reported events (e.g., "production")
	Environment string

	// FatalOnly suppresses non-fatal events. Default reports everything.
	FatalOnly bool

	// FlushTimeout bounds the drain on Close
	FlushTimeout time.Duration
}

// SentryListener forwards escalated pipeline failures to Sentry, tagged
// with the pipeline and stage they originated from. Close drains buffered
// events before shutdown.
type SentryListener struct {
	hub          *sentry.Hub
	fatalOnly    bool
	flushTimeout time.Duration
}

// NewSentryListener initializes a Sentry client for the given configuration.
func NewSentryListener(cfg SentryConfig) (*SentryListener, error) {
	if cfg.DSN == "" {
		return nil, errors.New("DSN cannot be empty")
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, err
	}
	flush := cfg.FlushTimeout
	if flush <= 0 {
		flush = 5 * time.Second
	}
	return &SentryListener{
		hub:          sentry.NewHub(client, sentry.NewScope()),
		fatalOnly:    cfg.FatalOnly,
		flushTimeout: flush,
	}, nil
}

// Listen is the pipeline.ErrorListener to register.
func (s *SentryListener) Listen(ev pipeline.PipelineErrorEvent) {
	if s.fatalOnly && ev.Severity != pipeline.SeverityFatal {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("pipeline", ev.Pipeline)
		scope.SetTag("stage", ev.Stage)
		if ev.Severity == pipeline.SeverityFatal {
			scope.SetLevel(sentry.LevelFatal)
		} else {
			scope.SetLevel(sentry.LevelError)
		}
		s.hub.CaptureException(ev.Err)
	})
}

// Close drains buffered events. Call when the owning pipeline is torn down.
func (s *SentryListener) Close() {
	s.hub.Flush(s.flushTimeout)
}
