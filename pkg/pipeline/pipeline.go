package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// Pipeline is the orchestrator: it owns the Head and Tail boundary stages,
// the registered stage set, the active list, the structural lock, the
// default error policy, and the listener sets. Create one with New; it
// lives for its owner's lifetime and holds no persisted state.
type Pipeline[T any] struct {
	name   string
	kind   Kind[T]
	logger *zap.Logger

	mu       sync.RWMutex
	head     *Head[T]
	tail     *Tail[T]
	nodes    map[string]*Node[T]
	regOrder []string
	list     activeList[T]

	defaultPolicy ErrorPolicy
	events        *eventSupport
}

// Option configures a Pipeline at construction.
type Option[T any] func(*Pipeline[T])

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(p *Pipeline[T]) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDefaultErrorPolicy sets the pipeline-wide error policy applied to
// stages without an override. Defaults to Suppress.
func WithDefaultErrorPolicy[T any](policy ErrorPolicy) Option[T] {
	return func(p *Pipeline[T]) {
		p.defaultPolicy = policy
	}
}

// New creates a pipeline for the internal record type T. The name
// identifies the pipeline in dumps, logs, and events; the kind describes T.
// The permanent Head and Tail stages are created and linked immediately.
func New[T any](name string, kind Kind[T], opts ...Option[T]) (*Pipeline[T], error) {
	if name == "" {
		return nil, errors.Configuration("pipeline name cannot be empty", nil)
	}
	if err := kind.validate(); err != nil {
		return nil, err
	}

	p := &Pipeline[T]{
		name:          name,
		kind:          kind,
		logger:        zap.NewNop(),
		nodes:         make(map[string]*Node[T]),
		defaultPolicy: Suppress,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.events = newEventSupport(p.logger)

	p.head = newHead[T](name)
	p.tail = newTail[T](name)
	p.head.node.pl = p
	p.tail.node.pl = p
	p.list.offer(&p.head.node)
	p.list.offer(&p.tail.node)
	p.relink()

	return p, nil
}

// Name returns the pipeline name.
func (p *Pipeline[T]) Name() string { return p.name }

// KindName returns the name of the internal record shape.
func (p *Pipeline[T]) KindName() string { return p.kind.Name }

// relink recomputes every active stage's forwarding target and rebuilds the
// attached inputs' bindings against the new chain entry. Callers hold the
// write lock.
func (p *Pipeline[T]) relink() {
	p.list.relink()
	p.head.relink()
}

// AddProcessor creates a stage with a generated id, registers it, and
// returns the stage together with its Registration. The stage is enabled
// and linked at its priority position before the call returns.
func (p *Pipeline[T]) AddProcessor(priority int, name string, mapper Mapper[T]) (*Node[T], *Registration, error) {
	n, err := NewNode[T](uuid.NewString(), name, priority, mapper)
	if err != nil {
		return nil, nil, err
	}
	reg, err := p.RegisterProcessor(n)
	if err != nil {
		return nil, nil, err
	}
	return n, reg, nil
}

// RegisterProcessor registers a stage built with NewNode. A duplicate id
// fails immediately, is reported through the error channel, and leaves the
// pipeline state untouched.
func (p *Pipeline[T]) RegisterProcessor(n *Node[T]) (*Registration, error) {
	if n == nil {
		return nil, errors.Configuration("node cannot be nil", nil)
	}
	if n.role != roleProcessor {
		return nil, errors.Configuration("boundary stages cannot be registered", nil)
	}

	p.mu.Lock()
	if _, ok := p.nodes[n.id]; ok {
		p.mu.Unlock()
		err := errors.Structural("stage id "+n.id+" is already registered", errors.ErrDuplicateID)
		p.events.fireError(PipelineErrorEvent{
			Pipeline: p.name,
			Stage:    n.id,
			Err:      err,
			Severity: SeverityError,
		})
		return nil, err
	}
	n.pl = p
	n.enabled = true
	p.nodes[n.id] = n
	p.regOrder = append(p.regOrder, n.id)
	p.list.offer(n)
	p.relink()
	ev := p.processorEvent(n, ProcessorAdded)
	p.mu.Unlock()

	p.events.fireProcessor(ev)
	p.logger.Info("stage registered",
		zap.String("pipeline", p.name),
		zap.String("stage", n.id),
		zap.String("name", n.name),
		zap.Int("priority", n.priority))

	return newRegistration(func() { p.removeProcessor(n) }), nil
}

// removeProcessor is the Registration callback: it unlinks and deregisters
// the stage permanently, freeing its id for reuse.
func (p *Pipeline[T]) removeProcessor(n *Node[T]) {
	p.mu.Lock()
	if p.nodes[n.id] != n {
		p.mu.Unlock()
		return
	}
	if n.enabled {
		p.list.remove(n)
	}
	n.enabled = false
	delete(p.nodes, n.id)
	for i, id := range p.regOrder {
		if id == n.id {
			p.regOrder = append(p.regOrder[:i], p.regOrder[i+1:]...)
			break
		}
	}
	p.relink()
	ev := p.processorEvent(n, ProcessorRemoved)
	n.pl = nil
	p.mu.Unlock()

	p.events.fireProcessor(ev)
	p.logger.Info("stage removed",
		zap.String("pipeline", p.name),
		zap.String("stage", n.id))
}

// setEnabled links or unlinks a registered stage. Called by Node.SetEnabled.
func (p *Pipeline[T]) setEnabled(n *Node[T], enabled bool) error {
	p.mu.Lock()
	if p.nodes[n.id] != n {
		p.mu.Unlock()
		return errors.Structural("stage "+n.id+" is not registered", errors.ErrNotFound)
	}
	if n.enabled == enabled {
		p.mu.Unlock()
		return nil
	}
	n.enabled = enabled
	kind := ProcessorEnabled
	if enabled {
		p.list.offer(n)
	} else {
		p.list.remove(n)
		kind = ProcessorDisabled
	}
	p.relink()
	ev := p.processorEvent(n, kind)
	p.mu.Unlock()

	p.events.fireProcessor(ev)
	return nil
}

func (p *Pipeline[T]) processorEvent(n *Node[T], kind ProcessorEventKind) ProcessorEvent {
	return ProcessorEvent{
		Pipeline: p.name,
		ID:       n.id,
		Name:     n.name,
		Priority: n.priority,
		Kind:     kind,
	}
}

// Processor returns the stage registered under id, enabled or not.
func (p *Pipeline[T]) Processor(id string) (*Node[T], error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[id]
	if !ok {
		return nil, errors.Structural("no stage registered under id "+id, errors.ErrNotFound)
	}
	return n, nil
}

// RegisterInput attaches an input transformer to the Head and returns its
// Registration. The transformer's forwarding handle becomes live before the
// call returns.
func (p *Pipeline[T]) RegisterInput(in InputPort[T]) (*Registration, error) {
	if in == nil {
		return nil, errors.Configuration("input cannot be nil", nil)
	}
	p.mu.Lock()
	old := p.head.count()
	if err := p.head.register(p, in); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	ev := AttributeEvent{Pipeline: p.name, Name: "head.inputs", Old: old, New: p.head.count()}
	p.mu.Unlock()

	p.events.fireAttribute(ev)
	return newRegistration(func() { p.removeInput(in.ID()) }), nil
}

func (p *Pipeline[T]) removeInput(id string) {
	p.mu.Lock()
	old := p.head.count()
	if !p.head.unregister(id) {
		p.mu.Unlock()
		return
	}
	ev := AttributeEvent{Pipeline: p.name, Name: "head.inputs", Old: old, New: p.head.count()}
	p.mu.Unlock()

	p.events.fireAttribute(ev)
}

// RegisterOutput attaches an output transformer to the Tail and returns its
// Registration. The output joins the multicast snapshot immediately.
func (p *Pipeline[T]) RegisterOutput(out OutputPort[T]) (*Registration, error) {
	if out == nil {
		return nil, errors.Configuration("output cannot be nil", nil)
	}
	p.mu.Lock()
	old := p.tail.count()
	if err := p.tail.register(out); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	ev := AttributeEvent{Pipeline: p.name, Name: "tail.outputs", Old: old, New: p.tail.count()}
	p.mu.Unlock()

	p.events.fireAttribute(ev)
	return newRegistration(func() { p.removeOutput(out.ID()) }), nil
}

func (p *Pipeline[T]) removeOutput(id string) {
	p.mu.Lock()
	old := p.tail.count()
	if !p.tail.unregister(id) {
		p.mu.Unlock()
		return
	}
	ev := AttributeEvent{Pipeline: p.name, Name: "tail.outputs", Old: old, New: p.tail.count()}
	p.mu.Unlock()

	p.events.fireAttribute(ev)
}

// In returns the forwarding handle of the input registered under id, as an
// untyped value. Use ConnectorAs for the typed form.
func (p *Pipeline[T]) In(id string) (any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.head.connector(id)
}

// Out returns the output transformer registered under id.
func (p *Pipeline[T]) Out(id string) (OutputPort[T], error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tail.lookup(id)
}

// ConnectorAs returns the forwarding handle of the input registered under
// id, asserted to its external type E.
func ConnectorAs[E any, T any](p *Pipeline[T], id string) (E, error) {
	var zero E
	h, err := p.In(id)
	if err != nil {
		return zero, err
	}
	typed, ok := h.(E)
	if !ok {
		return zero, errors.Structural(
			fmt.Sprintf("input %s exposes %T, not the requested handle type", id, h), nil)
	}
	return typed, nil
}

// SetDefaultErrorPolicy changes the policy applied to stages without an
// override.
func (p *Pipeline[T]) SetDefaultErrorPolicy(policy ErrorPolicy) {
	p.mu.Lock()
	old := p.defaultPolicy
	p.defaultPolicy = policy
	p.mu.Unlock()

	if old != policy {
		p.events.fireAttribute(AttributeEvent{
			Pipeline: p.name,
			Name:     "defaultErrorPolicy",
			Old:      old.String(),
			New:      policy.String(),
		})
	}
}

// DefaultErrorPolicy returns the pipeline-wide error policy.
func (p *Pipeline[T]) DefaultErrorPolicy() ErrorPolicy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.defaultPolicy
}

// AddProcessorChangeListener registers a listener for stage membership
// events.
func (p *Pipeline[T]) AddProcessorChangeListener(fn ProcessorChangeListener) *Registration {
	return p.events.addProcessorListener(fn)
}

// AddAttributeChangeListener registers a listener for attribute events.
func (p *Pipeline[T]) AddAttributeChangeListener(fn AttributeChangeListener) *Registration {
	return p.events.addAttributeListener(fn)
}

// AddPipelineErrorListener registers a listener for escalated processing
// failures.
func (p *Pipeline[T]) AddPipelineErrorListener(fn ErrorListener) *Registration {
	return p.events.addErrorListener(fn)
}

// AddPipelineListener registers a listener on all three event streams and
// returns one Registration covering all of them.
func (p *Pipeline[T]) AddPipelineListener(l PipelineListener) *Registration {
	r1 := p.events.addProcessorListener(l.OnProcessorChange)
	r2 := p.events.addAttributeListener(l.OnAttributeChange)
	r3 := p.events.addErrorListener(l.OnPipelineError)
	return newRegistration(func() {
		r1.Unregister()
		r2.Unregister()
		r3.Unregister()
	})
}

// StageInfo is the read-only view of one stage exposed for diagnostics and
// external structure mirroring.
type StageInfo struct {
	ID       string
	Name     string
	Priority int
	Enabled  bool
	Boundary bool
}

// Stages returns every stage including the boundary sentinels, ordered by
// priority with Head first and Tail last. Registration order breaks ties.
func (p *Pipeline[T]) Stages() []StageInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	infos := make([]StageInfo, 0, len(p.nodes)+2)
	infos = append(infos, stageInfo(&p.head.node))
	for _, id := range p.regOrder {
		infos = append(infos, stageInfo(p.nodes[id]))
	}
	infos = append(infos, stageInfo(&p.tail.node))
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Priority < infos[j].Priority })
	return infos
}

func stageInfo[T any](n *Node[T]) StageInfo {
	return StageInfo{
		ID:       n.id,
		Name:     n.name,
		Priority: n.priority,
		Enabled:  n.enabled,
		Boundary: n.role != roleProcessor,
	}
}

// InputCount returns the number of attached input transformers.
func (p *Pipeline[T]) InputCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.head.count()
}

// OutputCount returns the number of attached output transformers.
func (p *Pipeline[T]) OutputCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tail.count()
}

// DetailLevel selects how much structure Dump renders.
type DetailLevel int

const (
	// DumpSummary renders one line of counts.
	DumpSummary DetailLevel = iota

	// DumpStages adds one line per stage in traversal order.
	DumpStages

	// DumpFull adds the attached transformers and the tail redirection
	// state.
	DumpFull
)

// Dump renders the pipeline structure for diagnostics.
func (p *Pipeline[T]) Dump(level DetailLevel) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "pipeline %s kind=%s stages=%d inputs=%d outputs=%d policy=%s\n",
		p.name, p.kind.Name, len(p.nodes), p.head.count(), p.tail.count(), p.defaultPolicy)
	if level < DumpStages {
		return b.String()
	}

	p.list.each(func(n *Node[T]) bool {
		switch n.role {
		case roleHead:
			fmt.Fprintf(&b, "  head %s\n", n.name)
		case roleTail:
			fmt.Fprintf(&b, "  tail %s\n", n.name)
		default:
			fmt.Fprintf(&b, "  [%d] %s (%s)\n", n.priority, n.id, n.name)
		}
		return true
	})
	for _, id := range p.regOrder {
		if n := p.nodes[id]; !n.enabled {
			fmt.Fprintf(&b, "  [%d] %s (%s) disabled\n", n.priority, n.id, n.name)
		}
	}
	if level < DumpFull {
		return b.String()
	}

	for _, id := range p.head.order {
		in := p.head.inputs[id]
		fmt.Fprintf(&b, "  in  %s kind=%s\n", in.ID(), in.KindName())
	}
	for _, id := range p.tail.order {
		out := p.tail.outputs[id]
		fmt.Fprintf(&b, "  out %s kind=%s\n", out.ID(), out.KindName())
	}
	if p.tail.override != nil {
		b.WriteString("  tail redirected\n")
	}
	return b.String()
}
