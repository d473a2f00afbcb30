// Package pipeline provides an embeddable, synchronous dataflow engine: a
// priority-ordered chain of typed processing stages through which records are
// pushed, with a runtime-reconfigurable topology, per-stage error policies,
// and fan-in/fan-out boundary endpoints.
//
// A Pipeline[T] owns a fixed Head (fan-in) and Tail (fan-out) sentinel stage
// and any number of processing stages in between, ordered by priority.
// Whichever goroutine pushes a record through a Head connector executes the
// entire downstream chain on its own call stack; there is no internal
// buffering, queueing, or scheduling.
//
// Data flow and topology mutation are separated by a single read/write lock:
// every data call admitted through an attached Input transformer holds the
// read lock for the full traversal, while any structural change (adding,
// removing, enabling, or disabling a stage, attaching or detaching a
// transformer, selecting a switch output) holds the write lock. Many data
// calls proceed concurrently; none of them can ever observe a half-updated
// chain.
//
// Failures raised inside a stage's mapper are routed through the stage's
// ErrorPolicy (falling back to the pipeline default) and surface as
// PipelineErrorEvent notifications rather than call-return errors, except
// for fatal escalations, which unwind the producer's push call.
package pipeline
