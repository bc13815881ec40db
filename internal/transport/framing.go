package transport

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/synnergy-collab/nodecore/internal/nodeerr"
)

const maxFrameSize = 16 << 20 // 16 MiB

// writeFrame writes a big-endian length-prefixed JSON envelope.
func writeFrame(w io.Writer, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return nodeerr.Wrap(err, nodeerr.InvalidArgument, "marshal envelope")
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return nodeerr.Wrap(err, nodeerr.IoError, "write frame length")
	}
	if _, err := w.Write(body); err != nil {
		return nodeerr.Wrap(err, nodeerr.IoError, "write frame body")
	}
	return nil
}

// decodePayload unmarshals an envelope payload into v.
func decodePayload(payload []byte, v interface{}) error {
	return json.Unmarshal(payload, v)
}

// readFrame reads one length-prefixed JSON envelope.
func readFrame(r io.Reader) (Envelope, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxFrameSize {
		return Envelope{}, nodeerr.New(nodeerr.ResourceLimit, "frame exceeds maximum size")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, nodeerr.Wrap(err, nodeerr.IoError, "read frame body")
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, nodeerr.Wrap(err, nodeerr.InvalidArgument, "unmarshal envelope")
	}
	return env, nil
}
