package pipeline_test

import (
	"context"
	"testing"

	"github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/pipeline"
)

func switchFixture(t *testing.T) (*pipeline.Pipeline[string], pushFunc, *pipeline.OutputSwitch[string], []*collector) {
	t.Helper()
	p := newTestPipeline(t)
	in := newTestInput(t, "in")
	if _, err := p.RegisterInput(in); err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}

	sinks := make([]*collector, 2)
	outs := make([]pipeline.OutputPort[string], 2)
	for i, id := range []string{"zero", "one"} {
		out := newTestOutput(t, id)
		sinks[i] = &collector{}
		if _, err := out.Connect(sinks[i].push); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		outs[i] = out
	}

	sw, err := pipeline.NewOutputSwitch[string](p, outs...)
	if err != nil {
		t.Fatalf("NewOutputSwitch: %v", err)
	}
	return p, in.Handle(), sw, sinks
}

func TestSwitchUnselectedDrops(t *testing.T) {
	_, push, sw, sinks := switchFixture(t)

	if sw.Selected() != -1 {
		t.Fatalf("fresh switch must be unselected, got %d", sw.Selected())
	}
	if err := push(context.Background(), "rec"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if sinks[0].count() != 0 || sinks[1].count() != 0 {
		t.Fatal("unselected switch must drop records")
	}
}

func TestSwitchExclusiveSelection(t *testing.T) {
	_, push, sw, sinks := switchFixture(t)

	if err := sw.Select(0); err != nil {
		t.Fatalf("Select(0): %v", err)
	}
	if err := push(context.Background(), "a"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if sinks[0].count() != 1 || sinks[1].count() != 0 {
		t.Fatalf("after Select(0): %d/%d, want 1/0", sinks[0].count(), sinks[1].count())
	}

	if err := sw.Select(1); err != nil {
		t.Fatalf("Select(1): %v", err)
	}
	if err := push(context.Background(), "b"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if sinks[0].count() != 1 || sinks[1].count() != 1 {
		t.Fatalf("after Select(1): %d/%d, want 1/1", sinks[0].count(), sinks[1].count())
	}
}

func TestSwitchOutOfRangeKeepsSelection(t *testing.T) {
	_, push, sw, sinks := switchFixture(t)

	if err := sw.Select(0); err != nil {
		t.Fatalf("Select(0): %v", err)
	}
	if err := sw.Select(7); !errors.Is(err, errors.ErrInvalidIndex) {
		t.Fatalf("out-of-range select must fail, got %v", err)
	}
	if err := sw.Select(-1); !errors.Is(err, errors.ErrInvalidIndex) {
		t.Fatalf("negative select must fail, got %v", err)
	}
	if sw.Selected() != 0 {
		t.Fatalf("failed select must keep prior selection, got %d", sw.Selected())
	}
	if err := push(context.Background(), "rec"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if sinks[0].count() != 1 {
		t.Fatal("prior selection must still receive records")
	}
}

func TestSwitchRelease(t *testing.T) {
	p, push, sw, sinks := switchFixture(t)

	// Register candidate zero with the tail so multicast reaches it after
	// the switch is released.
	out := newTestOutput(t, "direct")
	direct := &collector{}
	if _, err := out.Connect(direct.push); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := p.RegisterOutput(out); err != nil {
		t.Fatalf("RegisterOutput: %v", err)
	}

	sw.Release()
	if err := push(context.Background(), "rec"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if direct.count() != 1 {
		t.Fatal("released switch must restore the default multicast")
	}
	if sinks[0].count() != 0 || sinks[1].count() != 0 {
		t.Fatal("unregistered candidates must not receive multicast records")
	}
}

func TestStackPushPop(t *testing.T) {
	p, push, sink := wired(t)

	stack, err := pipeline.NewOutputStack[string](p)
	if err != nil {
		t.Fatalf("NewOutputStack: %v", err)
	}

	capA := &collector{}
	capB := &collector{}
	stack.Push(capA.push)
	stack.Push(capB.push)

	if err := push(context.Background(), "top"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if capB.count() != 1 || capA.count() != 0 || sink.count() != 0 {
		t.Fatalf("record must reach only the top layer: A=%d B=%d base=%d",
			capA.count(), capB.count(), sink.count())
	}

	if !stack.Pop() {
		t.Fatal("Pop must succeed")
	}
	if err := push(context.Background(), "middle"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if capA.count() != 1 {
		t.Fatalf("after one pop the prior layer must be current, A=%d", capA.count())
	}

	if !stack.Pop() {
		t.Fatal("Pop must succeed")
	}
	if err := push(context.Background(), "base"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("after full unwind the base multicast must be current, base=%d", sink.count())
	}
}

func TestStackPopEmpty(t *testing.T) {
	p, push, sink := wired(t)

	stack, err := pipeline.NewOutputStack[string](p)
	if err != nil {
		t.Fatalf("NewOutputStack: %v", err)
	}
	if stack.Pop() {
		t.Fatal("Pop on empty stack must report false")
	}
	if err := push(context.Background(), "rec"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if sink.count() != 1 {
		t.Fatal("empty pop must leave the tail untouched")
	}
}

func TestStackRestoresUnderFailure(t *testing.T) {
	p, push, sink := wired(t)

	stack, err := pipeline.NewOutputStack[string](p)
	if err != nil {
		t.Fatalf("NewOutputStack: %v", err)
	}

	func() {
		captured := &collector{}
		stack.Push(captured.push)
		defer stack.Pop()
		_ = push(context.Background(), "scoped")
	}()

	if err := push(context.Background(), "after"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("deferred Pop must restore the base target, base=%d", sink.count())
	}
	if stack.Depth() != 0 {
		t.Fatalf("Depth = %d, want 0", stack.Depth())
	}
}
