package config

import "hash/fnv"

// hashBytes is FNV-1a; 0 means "no hash" and never matches.
func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
