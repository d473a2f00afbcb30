package pipeline

import "sync"

// Registration is the unregister token returned by every attach and add
// operation. Invoking Unregister detaches the underlying resource and fires
// the corresponding removal event; subsequent invocations are no-ops.
type Registration struct {
	once   sync.Once
	remove func()
}

func newRegistration(remove func()) *Registration {
	return &Registration{remove: remove}
}

// Unregister detaches the resource this token was issued for. Idempotent.
func (r *Registration) Unregister() {
	r.once.Do(r.remove)
}
