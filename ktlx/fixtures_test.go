package ktlx

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Test fixture builders. The formats are read-only, so tests synthesize
// the on-disk bytes directly.

const fixtureCreationTime = 1364916605 // 2013-04-02T...

// buildERDHeader builds a complete raw-data file header for the given
// schema, sized exactly to the schema's data-start offset.
func buildERDHeader(schema, nchan int, sfreq float64) []byte {
	size := schema8DataStart
	if schema == 7 {
		size = schema7DataStart
	}
	b := make([]byte, size)
	le := binary.LittleEndian

	copy(b[0:16], []byte{
		0x78, 0x56, 0x34, 0x12, 0xbc, 0x9a, 0xf0, 0xde,
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88,
	})
	le.PutUint16(b[16:], uint16(schema))
	le.PutUint16(b[18:], 1) // base schema
	le.PutUint32(b[20:], uint32(fixtureCreationTime))
	le.PutUint32(b[24:], 7)  // patient id number
	le.PutUint32(b[28:], 12) // study id
	copy(b[32:], "Doe")
	copy(b[112:], "Jane")
	copy(b[272:], "S01")

	le.PutUint64(b[352:], math.Float64bits(sfreq))
	le.PutUint32(b[360:], uint32(nchan))
	le.PutUint32(b[364:], 8) // deltabits
	for c := 0; c < nchan; c++ {
		le.PutUint32(b[368+4*c:], uint32(c))
	}

	le.PutUint32(b[headboxOffset:], 3) // headbox type[0]
	copy(b[headboxOffset+32:], "8.4.0")
	copy(b[headboxOffset+72:], "hw1")
	copy(b[headboxOffset+82:], "sw1")
	le.PutUint32(b[headboxOffset+92:], 2) // discardbits
	return b
}

// buildSTC builds a segment table of contents around the given entries.
func buildSTC(entries ...stcEntryFixture) []byte {
	var buf bytes.Buffer
	buf.Write(genericPrefix())

	le := binary.LittleEndian
	binary.Write(&buf, le, int32(1)) // next_segment
	binary.Write(&buf, le, int32(1)) // final
	buf.Write(make([]byte, 48))      // padding

	for _, e := range entries {
		name := make([]byte, 256)
		copy(name, e.name)
		buf.Write(name)
		binary.Write(&buf, le, e.startStamp)
		binary.Write(&buf, le, e.endStamp)
		binary.Write(&buf, le, e.sampleNum)
		binary.Write(&buf, le, e.sampleSpan)
	}
	return buf.Bytes()
}

type stcEntryFixture struct {
	name                  string
	startStamp, endStamp  int32
	sampleNum, sampleSpan int32
}

// genericPrefix is a minimal valid 352-byte generic header.
func genericPrefix() []byte {
	b := make([]byte, genericHeaderLen)
	binary.LittleEndian.PutUint16(b[16:], 7)
	binary.LittleEndian.PutUint16(b[18:], 1)
	binary.LittleEndian.PutUint32(b[20:], uint32(fixtureCreationTime))
	return b
}

// buildSNC builds a synchronization file from (stamp, filetime) pairs.
func buildSNC(pairs ...[2]int64) []byte {
	var buf bytes.Buffer
	buf.Write(genericPrefix())
	le := binary.LittleEndian
	for _, p := range pairs {
		binary.Write(&buf, le, int32(p[0]))
		binary.Write(&buf, le, p[1])
	}
	return buf.Bytes()
}

// buildENT builds an annotation file from raw payload strings, each
// wrapped in a note header and closed with the terminator record.
func buildENT(payloads ...string) []byte {
	var buf bytes.Buffer
	buf.Write(genericPrefix())
	le := binary.LittleEndian
	for _, p := range payloads {
		body := append([]byte(p), 0, 0)                        // 2-byte terminator
		binary.Write(&buf, le, int32(3))                       // type
		binary.Write(&buf, le, int32(noteHeaderLen+len(body))) // length
		binary.Write(&buf, le, int32(0))                       // prev_length
		binary.Write(&buf, le, int32(0))                       // unused
		buf.Write(body)
	}
	binary.Write(&buf, le, int32(0)) // terminating type
	buf.Write(make([]byte, 12))
	return buf.Bytes()
}

// writeRecordingDir lays out a two-segment schema 7 recording with two
// channels and known decoded values.
func writeRecordingDir(t *testing.T) (string, [][]float64) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "rec01")
	require.NoError(t, os.Mkdir(dir, 0o755))

	// Segment 0: three rows.
	var seg0 bytes.Buffer
	seg0.Write(buildERDHeader(7, 2, 512))
	seg0.Write([]byte{0x00, 0x80, 0x80})
	writeInt32(&seg0, 1000)
	writeInt32(&seg0, -500)
	seg0.Write([]byte{0x00, 0x05, 0xfe}) // +5, -2
	seg0.Write([]byte{0x00, 0x80, 0x01}) // abs, +1
	writeInt32(&seg0, 2000)

	// Segment 1: two rows.
	var seg1 bytes.Buffer
	seg1.Write(buildERDHeader(7, 2, 512))
	seg1.Write([]byte{0x00, 0x80, 0x80})
	writeInt32(&seg1, 3000)
	writeInt32(&seg1, 100)
	seg1.Write([]byte{0x00, 0xf6, 0x0a}) // -10, +10

	want := [][]float64{
		{1000, 1005, 2000, 3000, 2990},
		{-500, -502, -501, 100, 110},
	}

	stc := buildSTC(
		stcEntryFixture{name: "rec01", startStamp: 0, endStamp: 2, sampleNum: 0, sampleSpan: 3},
		stcEntryFixture{name: "rec01_001", startStamp: 3, endStamp: 4, sampleNum: 3, sampleSpan: 2},
	)

	snc := buildSNC(
		[2]int64{0, 116444736000000000},
		[2]int64{512, 116444736000000000 + 10000000},
	)

	ent := buildENT(
		`(.(."Text", "Seizure observed"),(."Stamp", 2560),(."Data", (.(."User", "maria rossi"))))`,
		`(.(."Text", "Impedance check"),(."Stamp", 0),(."Data", (.(."User", "Persyst"))))`,
	)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "rec01.erd"), seg0.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rec01_001.erd"), seg1.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rec01.stc"), stc, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rec01.snc"), snc, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rec01.ent"), ent, 0o644))
	return dir, want
}

func writeInt32(buf *bytes.Buffer, v int32) {
	binary.Write(buf, binary.LittleEndian, v)
}
