package pipeline

import (
	"context"
	"testing"
)

func listNode(id string, priority int) *Node[string] {
	n, err := NewNode[string](id, id, priority, func(ctx context.Context, rec string, emit Emit[string]) error {
		return emit(ctx, rec)
	})
	if err != nil {
		panic(err)
	}
	return n
}

func listIDs(l *activeList[string]) []string {
	var ids []string
	l.each(func(n *Node[string]) bool {
		ids = append(ids, n.id)
		return true
	})
	return ids
}

func TestActiveListOrdering(t *testing.T) {
	var l activeList[string]
	l.offer(listNode("c", 30))
	l.offer(listNode("a", 10))
	l.offer(listNode("b", 20))

	got := listIDs(&l)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %q, want %q (order %v)", i, got[i], want[i], got)
		}
	}
}

func TestActiveListFIFOTieBreak(t *testing.T) {
	var l activeList[string]
	l.offer(listNode("first", 10))
	l.offer(listNode("second", 10))
	l.offer(listNode("third", 10))

	got := listIDs(&l)
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("equal priorities must keep arrival order, got %v", got)
		}
	}
}

func TestActiveListRemove(t *testing.T) {
	var l activeList[string]
	a := listNode("a", 10)
	b := listNode("b", 20)
	c := listNode("c", 30)
	l.offer(a)
	l.offer(b)
	l.offer(c)

	l.remove(b)
	got := listIDs(&l)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("after removing b: got %v", got)
	}
	if b.prev != nil || b.next != nil {
		t.Fatal("removed node must have cleared links")
	}
	if l.contains(b) {
		t.Fatal("removed node must not be reported as contained")
	}

	l.remove(a)
	l.remove(c)
	if l.front != nil || l.back != nil {
		t.Fatal("emptied list must have nil front and back")
	}
}

func TestActiveListRelink(t *testing.T) {
	var l activeList[string]
	a := listNode("a", 10)
	b := listNode("b", 20)
	l.offer(a)
	l.offer(b)
	l.relink()

	if a.out != b {
		t.Fatal("a must forward to b")
	}
	if b.out != nil {
		t.Fatal("last stage must forward nowhere")
	}

	l.remove(b)
	l.relink()
	if a.out != nil {
		t.Fatal("a must forward nowhere after b is removed")
	}
}
