// Package kvtesting provides shared fixtures for exercising the store
// against simulated flash devices.
package kvtesting

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/forestrie/go-flashstore/flash"
	"github.com/forestrie/go-flashstore/kvstore"
)

type TestConfig struct {
	// Seed fixes the value RNG. It is normal to force it to some constant
	// so the generated data is the same from run to run.
	Seed       int64
	RegionSize int
	FlashSize  int
	Label      string
}

type TestContext struct {
	T     *testing.T
	Log   *zap.Logger
	G     flash.Geometry
	Dev   *flash.MemDevice
	Store *kvstore.Store

	rng *rand.Rand
}

// KV is one generated key/value pair. Key is unique per generation; Value
// is deterministic for a given seed.
type KV struct {
	Key   string
	Value []byte
}

// NewTestContext builds an initialized store over a fresh in-memory device.
// Zero config fields default to a 1 KiB region size and a 64 KiB flash.
func NewTestContext(t *testing.T, cfg TestConfig) *TestContext {
	t.Helper()
	if cfg.RegionSize == 0 {
		cfg.RegionSize = 1024
	}
	if cfg.FlashSize == 0 {
		cfg.FlashSize = 0x10000
	}

	g, err := flash.NewGeometry(cfg.RegionSize, cfg.FlashSize)
	require.NoError(t, err)

	dev := flash.NewMemDevice(g)
	store, err := kvstore.New(dev, g)
	require.NoError(t, err)

	c := &TestContext{
		T:     t,
		Log:   zaptest.NewLogger(t).Named(cfg.Label),
		G:     g,
		Dev:   dev,
		Store: store,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
	c.MustInit()
	return c
}

// MustInit formats the device for the store.
func (c *TestContext) MustInit() {
	c.T.Helper()
	outcome, err := c.Store.Init()
	require.NoError(c.T, err)
	c.Log.Debug("store initialized", zap.Stringer("outcome", outcome))
}

// HashKey hashes key with the store's configured hash.
func (c *TestContext) HashKey(key string) uint64 {
	return c.Store.HashKey([]byte(key))
}

// RandomKeyValues generates n pairs with unique keys and valueSize bytes of
// seeded random value data.
func (c *TestContext) RandomKeyValues(n, valueSize int) []KV {
	kvs := make([]KV, 0, n)
	for i := 0; i < n; i++ {
		value := make([]byte, valueSize)
		c.rng.Read(value)
		kvs = append(kvs, KV{Key: uuid.NewString(), Value: value})
	}
	return kvs
}

// MustAppend appends and fails the test on any error.
func (c *TestContext) MustAppend(key string, value []byte) {
	c.T.Helper()
	_, err := c.Store.AppendKey(c.HashKey(key), value)
	require.NoError(c.T, err)
}

// MustGet retrieves the value stored under key.
func (c *TestContext) MustGet(key string) []byte {
	c.T.Helper()
	buf := make([]byte, c.G.RegionSize)
	n, err := c.Store.GetKey(c.HashKey(key), buf)
	require.NoError(c.T, err)
	return buf[:n]
}

// ReadRegion returns a copy of one region of the device image.
func (c *TestContext) ReadRegion(region int) []byte {
	c.T.Helper()
	buf := make([]byte, c.G.RegionSize)
	require.NoError(c.T, c.Dev.ReadRegion(region, buf))
	return buf
}
