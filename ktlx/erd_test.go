package ktlx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromarket/wonambi/recording"
)

func TestDeltaDecoderNarrowAndWide(t *testing.T) {
	// Schema 8, 2 channels: mask bit 0 set (wide), bit 1 clear (narrow),
	// mask tail padded with set bits.
	stream := bytes.NewReader([]byte{
		0x00, 0xfd, // event byte, delta mask
		0x2c, 0x01, // ch0 wide delta +300
		0xfb, // ch1 narrow delta -5
	})

	d := newDeltaDecoder(8, 2)
	row := make([]int32, 2)
	require.NoError(t, d.readRow(stream, "x.erd", row))
	assert.Equal(t, []int32{300, -5}, row)
}

func TestDeltaDecoderAccumulates(t *testing.T) {
	stream := bytes.NewReader([]byte{
		0x00, 0xfd, 0x2c, 0x01, 0xfb, // [300, -5]
		0x00, 0xfd, 0xd4, 0xfe, 0x05, // +(-300), +5 -> [0, 0]
	})

	d := newDeltaDecoder(8, 2)
	row := make([]int32, 2)
	require.NoError(t, d.readRow(stream, "x.erd", row))
	require.NoError(t, d.readRow(stream, "x.erd", row))
	assert.Equal(t, []int32{0, 0}, row)
}

func TestDeltaDecoderAbsoluteWide(t *testing.T) {
	// A wide read matching ff ff flags the channel absolute; its value
	// arrives in the trailing 32-bit block after all delta fields.
	stream := bytes.NewReader([]byte{
		0x00, 0xfd,
		0xff, 0xff, // ch0 sentinel
		0x02,                   // ch1 narrow delta +2
		0x70, 0x11, 0x01, 0x00, // ch0 absolute 70000
	})

	d := newDeltaDecoder(8, 2)
	d.prev[1] = -5
	row := make([]int32, 2)
	require.NoError(t, d.readRow(stream, "x.erd", row))
	assert.Equal(t, []int32{70000, -3}, row)
}

func TestDeltaDecoderNarrow80NotSentinelUnderSchema8(t *testing.T) {
	// Under schema 8 the sentinel is the two-byte ff ff pattern, so a
	// narrow 0x80 is an ordinary -128 delta. Schema 7 treats the same
	// byte as its absolute sentinel.
	stream := bytes.NewReader([]byte{
		0x00, 0xfc, // both channels narrow
		0x80, 0x80,
	})

	d := newDeltaDecoder(8, 2)
	d.prev[0], d.prev[1] = 1000, 2000
	row := make([]int32, 2)
	require.NoError(t, d.readRow(stream, "x.erd", row))
	assert.Equal(t, []int32{872, 1872}, row)
}

func TestDeltaDecoderSchema7(t *testing.T) {
	// Schema 7 has no delta mask: every channel is narrow and 0x80 is
	// the absolute sentinel.
	stream := bytes.NewReader([]byte{
		0x00,
		0x80, 0x07, // ch0 absolute, ch1 delta +7
		0x60, 0x79, 0xfe, 0xff, // ch0 absolute -100000
	})

	d := newDeltaDecoder(7, 2)
	row := make([]int32, 2)
	require.NoError(t, d.readRow(stream, "x.erd", row))
	assert.Equal(t, []int32{-100000, 7}, row)
}

func TestDeltaDecoderEndOfStream(t *testing.T) {
	d := newDeltaDecoder(7, 2)
	row := make([]int32, 2)
	err := d.readRow(bytes.NewReader(nil), "x.erd", row)
	assert.Equal(t, errEndOfStream, err)
}

func TestDeltaDecoderNonzeroEventByte(t *testing.T) {
	d := newDeltaDecoder(7, 2)
	row := make([]int32, 2)
	err := d.readRow(bytes.NewReader([]byte{0x01, 0x00, 0x00}), "x.erd", row)
	assert.ErrorIs(t, err, recording.ErrFormat)
}

func TestDeltaMaskLength(t *testing.T) {
	// ceil(nchan/8 + 0.5): the mask always carries at least half a byte
	// of slack.
	assert.Equal(t, 1, newDeltaDecoder(8, 2).maskLen)
	assert.Equal(t, 2, newDeltaDecoder(8, 8).maskLen)
	assert.Equal(t, 5, newDeltaDecoder(8, 32).maskLen)
	assert.Equal(t, 17, newDeltaDecoder(8, 128).maskLen)
}
