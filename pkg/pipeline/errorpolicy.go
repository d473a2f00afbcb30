package pipeline

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// ErrorPolicy selects how a failure raised inside a stage's mapper is
// handled. It can be set pipeline-wide via SetDefaultErrorPolicy and
// overridden per stage via Node.SetErrorPolicy.
type ErrorPolicy int

const (
	// Propagate escalates the failure to a PipelineErrorEvent. If the
	// failure is fatal, processing of that record stops and the push call
	// unwinds.
	Propagate ErrorPolicy = iota

	// Suppress logs the failure and drops the record; the pipeline keeps
	// serving subsequent records. Recommended default.
	Suppress

	// Retry re-invokes the stage's mapper exactly once and propagates only
	// if the retry itself fails.
	Retry

	// Terminate escalates the failure as fatal regardless of its own
	// severity.
	Terminate
)

// String returns the policy name.
func (p ErrorPolicy) String() string {
	switch p {
	case Propagate:
		return "PROPAGATE"
	case Suppress:
		return "SUPPRESS"
	case Retry:
		return "RETRY"
	case Terminate:
		return "TERMINATE"
	default:
		return "UNKNOWN"
	}
}

// Severity classifies a processing failure.
type Severity int

const (
	// SeverityError marks a recoverable, per-record failure.
	SeverityError Severity = iota

	// SeverityFatal marks a failure that must stop processing of the
	// record and unwind the producer's push call.
	SeverityFatal
)

// String returns the severity name.
func (s Severity) String() string {
	if s == SeverityFatal {
		return "FATAL"
	}
	return "ERROR"
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return "fatal: " + e.err.Error() }

func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as fatal. Under the Propagate policy a fatal failure stops
// processing of the record and unwinds the producer's push call.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// SeverityOf returns the severity carried by err: SeverityFatal if err was
// wrapped with Fatal, SeverityError otherwise.
func SeverityOf(err error) Severity {
	var fe *fatalError
	if stderrors.As(err, &fe) {
		return SeverityFatal
	}
	return SeverityError
}

// handleStageError routes a mapper failure through the stage's error policy.
// Called with the read lock held, on the producer's goroutine. Returning a
// non-nil error unwinds the push call for this record.
func (p *Pipeline[T]) handleStageError(ctx context.Context, n *Node[T], rec T, err error) error {
	policy := p.defaultPolicy
	if n.policy != nil {
		policy = *n.policy
	}

	switch policy {
	case Suppress:
		p.logger.Warn("record dropped by stage",
			zap.String("pipeline", p.name),
			zap.String("stage", n.id),
			zap.Error(err))
		return nil

	case Retry:
		p.logger.Debug("retrying stage",
			zap.String("pipeline", p.name),
			zap.String("stage", n.id),
			zap.Error(err))
		retryErr := n.mapper(ctx, rec, n.emit)
		if retryErr == nil {
			return nil
		}
		return p.escalate(n, retryErr, SeverityOf(retryErr))

	case Terminate:
		p.escalate(n, err, SeverityFatal)
		return errors.Processing("stage "+n.id+" terminated record processing", stderrors.Join(errors.ErrTerminated, err))

	default: // Propagate
		return p.escalate(n, err, SeverityOf(err))
	}
}

// escalate fires a PipelineErrorEvent for err. Fatal severities propagate
// back to the caller; ordinary ones are absent from the call-return path.
func (p *Pipeline[T]) escalate(n *Node[T], err error, severity Severity) error {
	p.logger.Error("stage failure",
		zap.String("pipeline", p.name),
		zap.String("stage", n.id),
		zap.String("severity", severity.String()),
		zap.Error(err))
	p.events.fireError(PipelineErrorEvent{
		Pipeline: p.name,
		Stage:    n.id,
		Err:      err,
		Severity: severity,
	})
	if severity == SeverityFatal {
		return errors.Processing("stage "+n.id+" failed", err)
	}
	return nil
}
