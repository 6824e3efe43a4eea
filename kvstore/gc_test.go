package kvstore_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-flashstore/kvstore"
)

func TestGCFreesFullyTombstonedRegion(t *testing.T) {
	store, _ := newSmallStore(t, 128, 512)
	h1 := homedHash(0xA, 0, 4)
	h2 := homedHash(0xB, 0, 4)
	value := bytes.Repeat([]byte{0x11}, 20)

	_, err := store.AppendKey(h1, value)
	require.NoError(t, err)
	_, err = store.AppendKey(h2, value)
	require.NoError(t, err)

	// One live record in the region holds off collection.
	_, err = store.InvalidateKey(h1)
	require.NoError(t, err)
	freed, err := store.GarbageCollect()
	require.NoError(t, err)
	require.Equal(t, 0, freed)

	_, err = store.InvalidateKey(h2)
	require.NoError(t, err)
	freed, err = store.GarbageCollect()
	require.NoError(t, err)
	require.Equal(t, 128, freed)

	// The region is erased back to a fully appendable state.
	_, err = store.AppendKey(h1, value)
	require.NoError(t, err)
	dst := make([]byte, 32)
	n, err := store.GetKey(h1, dst)
	require.NoError(t, err)
	require.Equal(t, value, dst[:n])
}

func TestGCSkipsEmptyRegions(t *testing.T) {
	store, _ := newSmallStore(t, 128, 512)
	freed, err := store.GarbageCollect()
	require.NoError(t, err)
	require.Equal(t, 0, freed)
}

func TestGCFreesMultipleRegions(t *testing.T) {
	store, _ := newSmallStore(t, 128, 512)
	value := bytes.Repeat([]byte{0x22}, 20)

	hashes := []uint64{
		homedHash(0xA, 0, 4),
		homedHash(0xB, 1, 4),
		homedHash(0xC, 3, 4),
	}
	for _, h := range hashes {
		_, err := store.AppendKey(h, value)
		require.NoError(t, err)
		_, err = store.InvalidateKey(h)
		require.NoError(t, err)
	}

	freed, err := store.GarbageCollect()
	require.NoError(t, err)
	require.Equal(t, 3*128, freed)
}

func TestGCLeavesCorruptRegionAlone(t *testing.T) {
	store, dev := newSmallStore(t, 128, 512)
	h := homedHash(0xA, 0, 4)

	_, err := store.AppendKey(h, []byte("gone"))
	require.NoError(t, err)
	_, err = store.InvalidateKey(h)
	require.NoError(t, err)

	// A zero-length header after the tombstone marks the region corrupt;
	// its contents can no longer be accounted for, so it is not erased.
	end := kvstore.HeaderBytes + 4 + kvstore.ChecksumBytes
	image := dev.Bytes()
	image[end] = 0x00   // version committed
	image[end+1] = 0x00 // zero length
	image[end+2] = 0x00

	freed, err := store.GarbageCollect()
	require.NoError(t, err)
	require.Equal(t, 0, freed)
}
