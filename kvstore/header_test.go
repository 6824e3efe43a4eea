package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeHeaderLayout(t *testing.T) {
	h := Header{
		Version: Version,
		Live:    true,
		Length:  51,
		KeyHash: 0x2fa4ea19bf26cd8f,
	}
	dst := make([]byte, HeaderBytes)
	require.NoError(t, EncodeHeader(dst, h))

	// version | flags+len hi | len lo | key msb..lsb | reserved
	require.Equal(t, []byte{
		0x00,
		0x80, 0x33,
		0x2f, 0xa4, 0xea, 0x19, 0xbf, 0x26, 0xcd, 0x8f,
		0x00, 0x00, 0x00, 0x00,
	}, dst)
}

func TestEncodeHeaderLengthSpansNibble(t *testing.T) {
	h := Header{Version: Version, Live: true, Length: 0x234, KeyHash: 0x0102030405060708}
	dst := make([]byte, HeaderBytes)
	require.NoError(t, EncodeHeader(dst, h))
	require.Equal(t, byte(0x82), dst[1])
	require.Equal(t, byte(0x34), dst[2])

	h.Live = false
	require.NoError(t, EncodeHeader(dst, h))
	require.Equal(t, byte(0x02), dst[1])
}

func TestEncodeHeaderRejectsOverlongObject(t *testing.T) {
	dst := make([]byte, HeaderBytes)
	err := EncodeHeader(dst, Header{Version: Version, Length: MaxObjectLength + 1})
	require.ErrorIs(t, err, ErrObjectTooLarge)

	require.ErrorIs(t, EncodeHeader(dst[:HeaderBytes-1], Header{}), ErrShortRegion)
}

func TestDecodeHeaderRoundTrip(t *testing.T) {
	want := Header{Version: Version, Live: true, Length: 0xABC, KeyHash: 0xDEADBEEFCAFEF00D}
	buf := make([]byte, HeaderBytes)
	require.NoError(t, EncodeHeader(buf, want))

	got, ok, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestDecodeHeaderUnwrittenSlot(t *testing.T) {
	buf := make([]byte, HeaderBytes)
	for i := range buf {
		buf[i] = 0xFF
	}
	_, ok, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDecodeHeaderDetectsPartialWrite(t *testing.T) {
	// An erased version byte over a key byte that is no longer 0xFF is the
	// signature of a write that lost power partway through.
	buf := make([]byte, HeaderBytes)
	for i := range buf {
		buf[i] = 0xFF
	}
	buf[7] = 0x41
	_, _, err := DecodeHeader(buf)
	require.ErrorIs(t, err, ErrCorruptData)
}

func TestDecodeHeaderUnsupportedVersion(t *testing.T) {
	buf := make([]byte, HeaderBytes)
	require.NoError(t, EncodeHeader(buf, Header{Version: Version, Live: true, Length: 64, KeyHash: 0x1122334455667788}))
	buf[0] = 3

	h, ok, err := DecodeHeader(buf)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
	require.True(t, ok)
	// The header is still decoded so scans can step over the record.
	require.Equal(t, 64, h.Length)
	require.Equal(t, uint8(3), h.Version)
}

func TestDecodeHeaderRejectsUndersizedLength(t *testing.T) {
	buf := make([]byte, HeaderBytes)
	require.NoError(t, EncodeHeader(buf, Header{Version: Version, Live: true, Length: HeaderBytes + ChecksumBytes, KeyHash: 2}))
	buf[2] = 5 // shorter than a bare header and checksum

	_, _, err := DecodeHeader(buf)
	require.ErrorIs(t, err, ErrCorruptData)
}

func TestDecodeHeaderShortBuffer(t *testing.T) {
	_, _, err := DecodeHeader(make([]byte, HeaderBytes-1))
	require.ErrorIs(t, err, ErrShortRegion)
}

func TestHeaderValueLength(t *testing.T) {
	h := Header{Length: 51}
	require.Equal(t, 32, h.ValueLength())
}
