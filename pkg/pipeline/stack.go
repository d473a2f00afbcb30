package pipeline

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// OutputStack layers scoped redirections over a pipeline's tail. Push
// installs a delivery function as the tail's current target and remembers
// the replaced one; Pop restores it. The intended use is scoped
// interception, such as capturing records in a test:
//
//	stack := pipeline.NewOutputStack(p)
//	stack.Push(capture)
//	defer stack.Pop()
//
// The deferred Pop restores the prior target even when the scope exits by
// panic or error.
type OutputStack[T any] struct {
	p     *Pipeline[T]
	saved []Emit[T]
}

// NewOutputStack creates a stack over p's tail. The tail's current target
// is left untouched until the first Push.
func NewOutputStack[T any](p *Pipeline[T]) (*OutputStack[T], error) {
	if p == nil {
		return nil, errors.Configuration("pipeline cannot be nil", nil)
	}
	return &OutputStack[T]{p: p}, nil
}

// Push installs deliver as the tail's current target, remembering the
// replaced one. A nil deliver leaves the tail outputless for the scope.
func (s *OutputStack[T]) Push(deliver Emit[T]) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.saved = append(s.saved, s.p.tail.override)
	if deliver == nil {
		deliver = func(ctx context.Context, rec T) error { return nil }
	}
	s.p.tail.override = deliver
}

// Pop restores the target replaced by the most recent Push. Popping an
// empty stack is a deterministic no-op returning false.
func (s *OutputStack[T]) Pop() bool {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if len(s.saved) == 0 {
		return false
	}
	last := len(s.saved) - 1
	s.p.tail.override = s.saved[last]
	s.saved = s.saved[:last]
	return true
}

// Depth returns the number of pushed redirections not yet popped.
func (s *OutputStack[T]) Depth() int {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	return len(s.saved)
}
