package realtime

// Reconciler implements the consumer side of the delivery contract.
// Delivery is at-least-once and ordering across independent events is
// not guaranteed, so a client must dedupe by event id, treat inserts
// as upserts, and fall back to a full re-fetch whenever it cannot
// apply an event cleanly. Shipped with the server so the contract and
// its tests live next to the hub that makes the promises.
type Reconciler struct {
	seen         map[string]struct{}
	needsRefetch bool
}

func NewReconciler() *Reconciler {
	return &Reconciler{seen: make(map[string]struct{})}
}

// Apply merges one delivered event. It reports whether the event
// changed anything: repeats and already-applied ids are ignored.
func (r *Reconciler) Apply(ev Event) bool {
	if ev.ID == "" {
		// no identity to dedupe on: can't risk a partial patch
		r.needsRefetch = true
		return false
	}
	if _, dup := r.seen[ev.ID]; dup {
		return false
	}
	r.seen[ev.ID] = struct{}{}

	switch ev.Action {
	case "created", "updated", "moved", "archived":
		return true
	default:
		// unrecognized shape: full re-fetch of the scope, not a guess
		r.needsRefetch = true
		return false
	}
}

// NeedsRefetch reports whether the client must re-fetch full state
// before trusting its local view again.
func (r *Reconciler) NeedsRefetch() bool {
	return r.needsRefetch
}

// Reset clears all reconciliation state. Call it after a reconnect
// plus full re-fetch: events delivered before the fetch are baked into
// the snapshot and must not be deduped against.
func (r *Reconciler) Reset() {
	r.seen = make(map[string]struct{})
	r.needsRefetch = false
}
