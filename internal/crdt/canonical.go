package crdt

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalForm is a json.Marshal-friendly mirror of Operation with the hash
// field omitted, used to compute and verify Operation.Hash. Field order
// matches spec.md §6's canonical form exactly; encoding/json preserves
// struct field declaration order for non-map values, so this ordering is
// stable across Go versions.
type canonicalForm struct {
	NodeID       string            `json:"nodeId"`
	Timestamp    int64             `json:"timestamp"`
	LamportClock uint64            `json:"lamportClock"`
	Type         OpType            `json:"type"`
	Key          string            `json:"key"`
	Value        []byte            `json:"value,omitempty"`
	VectorClock  map[string]uint64 `json:"vectorClock"`
}

func (op Operation) canonicalBytes() ([]byte, error) {
	vc := map[string]uint64(op.VectorClock)
	cf := canonicalForm{
		NodeID:       op.NodeID,
		Timestamp:    op.Timestamp,
		LamportClock: op.LamportClock,
		Type:         op.Type,
		Key:          op.Key,
		Value:        op.Value,
		VectorClock:  vc,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cf); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ComputeHash returns the SHA-256 hex digest of op's canonical form,
// excluding the Hash field itself (spec.md §3, §6).
func (op Operation) ComputeHash() (string, error) {
	b, err := op.canonicalBytes()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyHash reports whether op.Hash matches the SHA-256 digest of op's
// canonical form (spec.md §3 invariant, §4.3 testable property 5).
func (op Operation) VerifyHash() bool {
	want, err := op.ComputeHash()
	if err != nil {
		return false
	}
	return want == op.Hash
}
