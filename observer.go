package ringhash

// An Observer watches a Ring, waiting for its set of nodes to change.
type Observer interface {
	// NotifyRingChanged is invoked after every successful change to the ring
	// with the full set of nodes in insertion order. Notifications are
	// delivered synchronously and in mutation order. The slice must not be
	// modified, and NotifyRingChanged must not mutate the Ring.
	NotifyRingChanged(nodes []*Node)
}

// FuncObserver implements Observer.
type FuncObserver func(nodes []*Node)

// NotifyRingChanged implements Observer.
func (f FuncObserver) NotifyRingChanged(nodes []*Node) { f(nodes) }
