// Package hrw implements rendezvous (highest random weight) hashing.
//
// The runtime uses it to place keyed actors on pooled threads: the same key
// lands on the same thread as long as the thread set does not change, and
// adding or removing a thread only moves the keys that scored highest on it.
package hrw

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Pick returns the best candidate for key. ok=false if there are no candidates.
// seed separates independent placements that share candidate names; ties are
// broken by name to stay deterministic.
func Pick(key string, candidates []string, seed string) (best string, ok bool) {
	if len(candidates) == 0 {
		return "", false
	}
	var bestScore uint64
	keyB := []byte(key)
	for i, c := range candidates {
		s := score(keyB, c, seed)
		if i == 0 || s > bestScore || (s == bestScore && c < best) {
			best, bestScore = c, s
		}
	}
	return best, true
}

func score(key []byte, candidate string, seed string) uint64 {
	h, _ := blake2b.New(8, nil)
	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	h.Write(key)
	h.Write([]byte{0})
	h.Write([]byte(candidate))
	return binary.BigEndian.Uint64(h.Sum(nil))
}
