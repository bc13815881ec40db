// Package syncengine couples local CRDT mutations to the peer transport
// (spec.md C9 §4.9): it queues outbound operations, applies inbound ones,
// and tracks a small OK/PENDING/CONFLICT/ERROR state machine. Named
// syncengine (not sync) to avoid shadowing the standard library package.
package syncengine

// State is the sync engine's state machine (spec.md §4.9).
type State string

const (
	StateOK       State = "OK"
	StatePending  State = "PENDING"
	StateConflict State = "CONFLICT"
	StateError    State = "ERROR"
)
