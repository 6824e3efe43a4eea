package kvstore

// homeRegion returns the deterministic home region for a hashed key. Only
// the low 16 bits of the hash take part, matching the on-flash format.
func homeRegion(keyHash uint64, numRegions int) int {
	return int(keyHash&0xFFFF) % numRegions
}

// probeOffset returns the nth offset of the collision probe sequence:
// 0, +1, -1, +2, -2, ...
func probeOffset(n int) int {
	if n == 0 {
		return 0
	}
	k := (n + 1) / 2
	if n%2 == 1 {
		return k
	}
	return -k
}

// nextProbeRegion returns the next valid candidate region for home after
// the first n candidates of the sequence have been consumed, along with the
// updated count. ok=false means both the positive and the negative
// excursions have run off the region range and there are no candidates
// left.
func nextProbeRegion(home, n, numRegions int) (region, nn int, ok bool) {
	for {
		k := (n + 1) / 2
		if k > home && k > numRegions-1-home {
			return 0, n, false
		}
		candidate := home + probeOffset(n)
		n++
		if candidate >= 0 && candidate < numRegions {
			return candidate, n, true
		}
	}
}
