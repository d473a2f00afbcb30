package pipeline

import (
	"context"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// OutputSwitch redirects a pipeline's tail to exactly one of an indexed set
// of candidate outputs. While no selection has been made, records reaching
// the tail go to a no-op sink. Selection happens atomically under the write
// lock, so records never observe a half-switched target.
type OutputSwitch[T any] struct {
	p          *Pipeline[T]
	candidates []OutputPort[T]
	selected   int
}

// NewOutputSwitch installs a switch over p's tail with the given candidate
// outputs. The candidates do not have to be registered with the tail; the
// switch addresses them directly. Installing the switch replaces the tail's
// current target with the unselected no-op sink.
func NewOutputSwitch[T any](p *Pipeline[T], candidates ...OutputPort[T]) (*OutputSwitch[T], error) {
	if p == nil {
		return nil, errors.Configuration("pipeline cannot be nil", nil)
	}
	if len(candidates) == 0 {
		return nil, errors.Configuration("output switch needs at least one candidate", nil)
	}
	s := &OutputSwitch[T]{
		p:          p,
		candidates: candidates,
		selected:   -1,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tail.override = s.drop
	return s, nil
}

// drop is the unselected state: records are consumed and discarded.
func (s *OutputSwitch[T]) drop(ctx context.Context, rec T) error { return nil }

// Select atomically swaps the tail's active target to the candidate at
// index. An out-of-range index fails and leaves the prior selection
// unchanged.
func (s *OutputSwitch[T]) Select(index int) error {
	s.p.mu.Lock()
	if index < 0 || index >= len(s.candidates) {
		s.p.mu.Unlock()
		return errors.Structural(
			fmt.Sprintf("switch index %d out of range [0,%d)", index, len(s.candidates)),
			errors.ErrInvalidIndex)
	}
	old := s.selected
	s.selected = index
	target := s.candidates[index]
	s.p.tail.override = target.emit
	s.p.mu.Unlock()

	s.p.events.fireAttribute(AttributeEvent{
		Pipeline: s.p.name,
		Name:     "tail.selection",
		Old:      old,
		New:      index,
	})
	return nil
}

// Selected returns the index of the currently selected candidate, or -1
// while nothing has been selected.
func (s *OutputSwitch[T]) Selected() int {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	return s.selected
}

// Release removes the switch, restoring the tail's default multicast.
func (s *OutputSwitch[T]) Release() {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.tail.override = nil
	s.selected = -1
}
