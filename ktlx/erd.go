package ktlx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/neuromarket/wonambi/recording"
)

const bitsInByte = 8

// Sentinel patterns flagging "absolute value follows later in this row"
// instead of a delta. The match is against the raw bytes just read, so
// under schema >= 8 only a wide (2-byte) read can ever equal the two-byte
// sentinel; narrow channels never flag absolute there. That quirk is in
// the deployed encoder and decoding must mirror it.
var (
	absSentinelNarrow = []byte{0x80}       // schema 7
	absSentinelWide   = []byte{0xff, 0xff} // schema 8, 9
)

// deltaDecoder decodes ERD sample rows. Per-channel previous values are
// the codec state: they are only meaningful within one sequential pass, so
// a decoder is built fresh for every read request and discarded after.
type deltaDecoder struct {
	schema  int
	nchan   int
	maskLen int
	prev    []int32
	mask    []bool
	abs     []bool
	buf     [4]byte
}

func newDeltaDecoder(schema, nchan int) *deltaDecoder {
	return &deltaDecoder{
		schema: schema,
		nchan:  nchan,
		// The mask tail is padded with set bits up to a whole byte.
		maskLen: int(math.Ceil(float64(nchan)/bitsInByte + 0.5)),
		prev:    make([]int32, nchan),
		mask:    make([]bool, nchan),
		abs:     make([]bool, nchan),
	}
}

// errEndOfStream reports a clean end of an ERD stream: no event byte where
// the next row would start.
var errEndOfStream = errors.New("end of sample stream")

// readRow decodes one sample row into dst (len nchan). An io.EOF on the
// event byte returns errEndOfStream; any other structural problem is a
// hard error. Each channel's value becomes the new previous value.
func (d *deltaDecoder) readRow(f io.Reader, name string, dst []int32) error {
	// Event byte. Bit 0 would signal an external trigger; anything
	// nonzero in practice means the stream is corrupt.
	if _, err := io.ReadFull(f, d.buf[:1]); err != nil {
		if err == io.EOF {
			return errEndOfStream
		}
		return fmt.Errorf("%s: reading event byte: %w", name, err)
	}
	if d.buf[0] != 0 {
		return recording.Formatf(name, "event byte", "got %#02x, want 0x00", d.buf[0])
	}

	// Delta mask: one bit per channel, wide (2-byte) deltas where set.
	// Schema 7 carries no mask; every channel is narrow.
	if d.schema >= 8 {
		maskBytes := make([]byte, d.maskLen)
		if _, err := io.ReadFull(f, maskBytes); err != nil {
			return fmt.Errorf("%s: reading delta mask: %w", name, err)
		}
		for c := 0; c < d.nchan; c++ {
			d.mask[c] = maskBytes[c/bitsInByte]>>(c%bitsInByte)&1 == 1
		}
	} else {
		for c := range d.mask {
			d.mask[c] = false
		}
	}

	// First pass: per-channel delta or absolute flag.
	for c := 0; c < d.nchan; c++ {
		width, sentinel := 1, absSentinelNarrow
		if d.mask[c] {
			width, sentinel = 2, absSentinelWide
		}
		if d.schema >= 8 {
			sentinel = absSentinelWide
		}
		raw := d.buf[:width]
		if _, err := io.ReadFull(f, raw); err != nil {
			return fmt.Errorf("%s: reading channel %d delta: %w", name, c, err)
		}

		if bytes.Equal(raw, sentinel) {
			d.abs[c] = true
			continue
		}
		d.abs[c] = false
		var delta int32
		if d.mask[c] {
			delta = int32(int16(uint16(raw[0]) | uint16(raw[1])<<8))
		} else {
			delta = int32(int8(raw[0]))
		}
		dst[c] = d.prev[c] + delta
	}

	// Second pass: absolute values are packed contiguously after the
	// whole delta region, in channel order.
	for c := 0; c < d.nchan; c++ {
		if !d.abs[c] {
			continue
		}
		if _, err := io.ReadFull(f, d.buf[:4]); err != nil {
			return fmt.Errorf("%s: reading channel %d absolute value: %w", name, c, err)
		}
		dst[c] = int32(uint32(d.buf[0]) | uint32(d.buf[1])<<8 |
			uint32(d.buf[2])<<16 | uint32(d.buf[3])<<24)
	}

	copy(d.prev, dst)
	return nil
}
