package utils

import "hash/fnv"

// HashStringToUint64 gives a stable hash for deterministic tie-breaking, e.g.
// spreading auto-assigned issues across equally loaded employees.
func HashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
