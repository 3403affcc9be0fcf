// Package binr reads little-endian fixed-layout binary fields from a
// stream, tracking the current offset. The first I/O error latches: every
// later accessor returns a zero value and Err reports the failure, so a
// header parse can run straight through and check once at the end.
package binr

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/encoding/charmap"
)

type Reader struct {
	r   io.Reader
	off int64
	err error
}

func New(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error encountered, or nil.
func (r *Reader) Err() error { return r.err }

// Offset returns the number of bytes consumed so far. After SeekTo it is
// the absolute file position.
func (r *Reader) Offset() int64 { return r.off }

// Bytes reads exactly n bytes. On error it returns nil and latches.
func (r *Reader) Bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.err = fmt.Errorf("read %d bytes at offset %d: %w", n, r.off, err)
		return nil
	}
	r.off += int64(n)
	return b
}

// Skip discards n bytes.
func (r *Reader) Skip(n int) {
	if r.err != nil {
		return
	}
	if _, err := io.CopyN(io.Discard, r.r, int64(n)); err != nil {
		r.err = fmt.Errorf("skip %d bytes at offset %d: %w", n, r.off, err)
		return
	}
	r.off += int64(n)
}

// SeekTo moves to an absolute offset. The underlying stream must seek.
func (r *Reader) SeekTo(off int64) {
	if r.err != nil {
		return
	}
	s, ok := r.r.(io.Seeker)
	if !ok {
		r.err = fmt.Errorf("seek to %d: source is not seekable", off)
		return
	}
	if _, err := s.Seek(off, io.SeekStart); err != nil {
		r.err = fmt.Errorf("seek to %d: %w", off, err)
		return
	}
	r.off = off
}

func (r *Reader) Uint8() uint8 {
	b := r.Bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Int8() int8 { return int8(r.Uint8()) }

func (r *Reader) Uint16() uint16 {
	b := r.Bytes(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) Int16() int16 { return int16(r.Uint16()) }

func (r *Reader) Uint32() uint32 {
	b := r.Bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

func (r *Reader) Int64() int64 {
	b := r.Bytes(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (r *Reader) Float64() float64 {
	b := r.Bytes(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// String reads a fixed n-byte field and cuts it at the first NUL.
func (r *Reader) String(n int) string {
	return CutString(r.Bytes(n))
}

// TextString reads a fixed n-byte field written with the Windows-1252 code
// page, cuts it at the first NUL, and decodes it to UTF-8. Decoding never
// fails; unmapped bytes become replacement runes, matching the lenient
// decoding of the source systems' files.
func (r *Reader) TextString(n int) string {
	b := r.Bytes(n)
	if b == nil {
		return ""
	}
	s, _ := charmap.Windows1252.NewDecoder().String(CutString(b))
	return s
}

// CutString interprets b as a NUL-terminated field.
func CutString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
