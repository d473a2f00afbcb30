package pipeline

// activeList is the priority-sorted doubly-linked list of currently enabled
// stages. The Head and Tail sentinels are permanent members; ordinary stages
// enter on enable and leave on disable or removal. The list owns each node's
// prev/next links, which gives O(1) removal given the node itself. Insertion
// scans linearly from the front; pipelines hold tens of stages, not
// thousands, so the scan is not worth an index.
type activeList[T any] struct {
	front *Node[T]
	back  *Node[T]
}

// offer inserts n at its priority-determined position. Ties are broken by
// arrival order: among equal priorities the newcomer goes last.
func (l *activeList[T]) offer(n *Node[T]) {
	if l.front == nil {
		l.front = n
		l.back = n
		n.prev = nil
		n.next = nil
		return
	}
	at := l.front
	for at != nil && at.priority <= n.priority {
		at = at.next
	}
	if at == nil {
		n.prev = l.back
		n.next = nil
		l.back.next = n
		l.back = n
		return
	}
	n.next = at
	n.prev = at.prev
	if at.prev != nil {
		at.prev.next = n
	} else {
		l.front = n
	}
	at.prev = n
}

// remove detaches n in O(1) using its own links. Removing a node that is not
// in the list is a no-op as long as its links are clear.
func (l *activeList[T]) remove(n *Node[T]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else if l.front == n {
		l.front = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if l.back == n {
		l.back = n.prev
	}
	n.prev = nil
	n.next = nil
}

// contains reports whether n is currently linked into the list.
func (l *activeList[T]) contains(n *Node[T]) bool {
	return n.prev != nil || n.next != nil || l.front == n
}

// each walks the list front to back, in ascending priority order.
func (l *activeList[T]) each(fn func(n *Node[T]) bool) {
	for at := l.front; at != nil; at = at.next {
		if !fn(at) {
			return
		}
	}
}

// relink recomputes every member's forwarding target as its successor in the
// list. Must be called under the write lock after any membership change.
func (l *activeList[T]) relink() {
	for at := l.front; at != nil; at = at.next {
		at.out = at.next
	}
}
