package crdt

import (
	"encoding/json"

	"github.com/synnergy-collab/nodecore/internal/nodeerr"
)

// wireForm is the on-disk/transport representation of a Replica (spec.md
// §4.3 "serialize()/deserialize()").
type wireForm struct {
	Data        map[string]Entry `json:"data"`
	Log         []Operation      `json:"log"`
	VectorClock map[string]uint64 `json:"vectorClock"`
}

// Serialize returns the canonical JSON form of the replica's map, log, and
// vector clock.
func (r *Replica) Serialize() ([]byte, error) {
	snap := r.Snapshot()
	w := wireForm{
		Data:        snap.Data,
		Log:         snap.Log,
		VectorClock: snap.VectorClock,
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, nodeerr.Wrap(err, nodeerr.IoError, "serialize replica")
	}
	return b, nil
}

// Deserialize replaces the replica's state with the contents of b, produced
// by a prior Serialize call. The Lamport counter is restored to the
// own-node component of the loaded vector clock (spec.md §4.3).
func (r *Replica) Deserialize(b []byte) error {
	var w wireForm
	if err := json.Unmarshal(b, &w); err != nil {
		return nodeerr.Wrap(err, nodeerr.IoError, "deserialize replica")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make(map[string]*Entry, len(w.Data))
	for k, v := range w.Data {
		entry := v
		data[k] = &entry
	}
	r.data = data

	r.log = newOpLog(r.cfg.MaxOperations)
	for _, op := range w.Log {
		r.log.append(op)
	}

	r.clock.Restore(w.VectorClock)
	return nil
}
