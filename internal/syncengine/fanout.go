package syncengine

import (
	"math"
	"math/rand"

	"github.com/synnergy-collab/nodecore/internal/secrand"
)

// GossipFanout picks the subset of peers a BroadcastChanges call should
// target: a random sample of √N of them (minimum 1), rather than flooding
// every peer every tick (spec.md §4.9).
func GossipFanout(peers []string, src secrand.Source) []string {
	if len(peers) == 0 {
		return nil
	}
	n := int(math.Sqrt(float64(len(peers))))
	if n < 1 {
		n = 1
	}
	if n >= len(peers) {
		return peers
	}

	shuffled := append([]string(nil), peers...)
	r := rand.New(rand.NewSource(seedFrom(src)))
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:n]
}

func seedFrom(src secrand.Source) int64 {
	var buf [8]byte
	if src == nil {
		return 0
	}
	if _, err := src.Read(buf[:]); err != nil {
		return 0
	}
	var seed int64
	for _, b := range buf {
		seed = seed<<8 | int64(b)
	}
	return seed
}
