package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func probeSequence(home, numRegions int) []int {
	var out []int
	n := 0
	for {
		region, nn, ok := nextProbeRegion(home, n, numRegions)
		if !ok {
			return out
		}
		out = append(out, region)
		n = nn
	}
}

func TestHomeRegion(t *testing.T) {
	require.Equal(t, 15, homeRegion(0x2fa4ea19bf26cd8f, 64))
	require.Equal(t, 0, homeRegion(0x0000000000010000, 64))
	// Only the low 16 bits participate.
	require.Equal(t, homeRegion(0x00000000_0000ABCD, 7), homeRegion(0xFFFFFFFF_0000ABCD, 7))
}

func TestProbeSequenceZigZag(t *testing.T) {
	require.Equal(t, []int{3, 4, 2, 5, 1, 6, 0, 7}, probeSequence(3, 8))
}

func TestProbeSequenceAtLowEdge(t *testing.T) {
	// Negative candidates are skipped, the positive excursion carries on.
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, probeSequence(0, 8))
	require.Equal(t, []int{1, 2, 0, 3, 4, 5, 6, 7}, probeSequence(1, 8))
}

func TestProbeSequenceAtHighEdge(t *testing.T) {
	require.Equal(t, []int{7, 6, 5, 4, 3, 2, 1, 0}, probeSequence(7, 8))
}

func TestProbeSequenceCoversEveryRegionOnce(t *testing.T) {
	for _, numRegions := range []int{1, 2, 5, 64} {
		for home := 0; home < numRegions; home++ {
			seq := probeSequence(home, numRegions)
			require.Len(t, seq, numRegions, "home %d of %d", home, numRegions)
			seen := map[int]bool{}
			for _, r := range seq {
				require.GreaterOrEqual(t, r, 0)
				require.Less(t, r, numRegions)
				require.False(t, seen[r], "region %d probed twice from home %d", r, home)
				seen[r] = true
			}
		}
	}
}
