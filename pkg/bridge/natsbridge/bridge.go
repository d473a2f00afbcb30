// Package natsbridge connects record pipelines to NATS subjects: a Source
// subscribes a subject and pushes decoded records through a Head connector,
// a Sink publishes records leaving the Tail.
package natsbridge

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/record"
)

// ConnConfig holds configuration for the NATS connection
type ConnConfig struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222")
	URL string

	// Name is the client name for identifying this connection
	Name string

	// MaxReconnects is the maximum number of reconnection attempts.
	// Use -1 for unlimited reconnects
	MaxReconnects int

	// ReconnectWait is the time to wait between reconnection attempts
	ReconnectWait time.Duration

	// Timeout is the connection timeout
	Timeout time.Duration
}

// DefaultConnConfig returns a configuration with sensible defaults
func DefaultConnConfig(url string) *ConnConfig {
	return &ConnConfig{
		URL:           url,
		Name:          "daedalus-bridge",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Connect establishes a NATS connection from the configuration.
func Connect(cfg *ConnConfig, logger *zap.Logger) (*nats.Conn, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.URL == "" {
		return nil, errors.New("URL cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to NATS",
		zap.String("url", cfg.URL),
		zap.String("name", cfg.Name))
	return conn, nil
}

// Source subscribes a subject and feeds each decoded record into a pipeline
// through the given push handle. Records are pushed on the subscriber
// goroutine, so downstream processing happens synchronously per message.
type Source struct {
	conn    *nats.Conn
	subject string
	push    record.Push
	logger  *zap.Logger
	buffer  int
}

// NewSource creates a source for the given subject. The push handle usually
// comes from a registered record input (pipeline.ConnectorAs).
func NewSource(conn *nats.Conn, subject string, push record.Push, logger *zap.Logger) (*Source, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if subject == "" {
		return nil, errors.New("subject cannot be empty")
	}
	if push == nil {
		return nil, errors.New("push handle cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		conn:    conn,
		subject: subject,
		push:    push,
		logger:  logger,
		buffer:  64,
	}, nil
}

// Run subscribes and pushes records until the context is cancelled. Decode
// failures are logged and skipped; push failures are logged and do not stop
// the source.
func (s *Source) Run(ctx context.Context) error {
	msgCh := make(chan *nats.Msg, s.buffer)
	sub, err := s.conn.ChanSubscribe(s.subject, msgCh)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("Unsubscribe failed", zap.Error(err))
		}
	}()

	s.logger.Info("Source running", zap.String("subject", s.subject))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Source stopped", zap.String("subject", s.subject))
			return ctx.Err()
		case msg := <-msgCh:
			rec, err := record.FromBytes(msg.Data)
			if err != nil {
				s.logger.Warn("Dropping undecodable message",
					zap.String("subject", s.subject),
					zap.Error(err))
				continue
			}
			if err := s.push(ctx, rec); err != nil {
				s.logger.Error("Push failed",
					zap.String("subject", s.subject),
					zap.String("correlationID", rec.CorrelationID),
					zap.Error(err))
			}
		}
	}
}

// Sink publishes records to a subject. Its Push method satisfies the
// record.Push contract, so a Sink can be connected directly to a record
// output transformer.
type Sink struct {
	conn       *nats.Conn
	subject    string
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewSink creates a sink publishing to the given subject.
func NewSink(conn *nats.Conn, subject string, logger *zap.Logger) (*Sink, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if subject == "" {
		return nil, errors.New("subject cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		conn:       conn,
		subject:    subject,
		logger:     logger,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// Push serializes and publishes one record, retrying transient failures.
func (s *Sink) Push(ctx context.Context, rec *record.Record) error {
	raw, err := rec.ToBytes()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
		if err := s.conn.Publish(s.subject, raw); err != nil {
			lastErr = err
			s.logger.Warn("Publish attempt failed",
				zap.Int("attempt", attempt+1),
				zap.String("subject", s.subject),
				zap.Error(err))
			continue
		}
		return nil
	}

	s.logger.Error("Publish failed after retries",
		zap.String("subject", s.subject),
		zap.String("correlationID", rec.CorrelationID),
		zap.Error(lastErr))
	return lastErr
}
