package blackrock

import (
	"fmt"
	"io"
	"time"

	"github.com/neuromarket/wonambi/internal/binr"
	"github.com/neuromarket/wonambi/recording"
)

const (
	nsxMagic = "NEURALCD"

	nsxBasicHeaderLen = 306
	nsxElectrodeLen   = 66
	nsxElectrodeTag   = "CC"
)

// nsxHeader is the raw NEURALCD header.
type nsxHeader struct {
	FileSpec      string
	HeaderBytes   uint32
	SamplingLabel string
	Comment       string
	Period        int32
	TimeRes       uint32
	SamplingFreq  float64
	DateTimeRaw   [8]uint16
	DateTime      time.Time
	ChannelCount  int
	Electrodes    []recording.Electrode
	BOData        int64
	DataPoints    int
}

// readNeuralCD parses the continuous-format header: fixed body, electrode
// table, and the data-region walk that locates BOData.
//
// For some reason the timestamps are stored in UTC here but in local time
// in the NEV file; the conversion below must stay asymmetric with nev.go.
func readNeuralCD(f io.ReadSeeker, name string) (*nsxHeader, error) {
	r := binr.New(f)

	magic := r.Bytes(8)
	if r.Err() != nil {
		return nil, fmt.Errorf("%s: reading magic tag: %w", name, r.Err())
	}
	if string(magic) != nsxMagic {
		return nil, recording.Formatf(name, "magic tag", "got %q, want %q", magic, nsxMagic)
	}

	hdr := &nsxHeader{}
	major := r.Int8()
	minor := r.Int8()
	hdr.FileSpec = fmt.Sprintf("%d.%d", major, minor)
	hdr.HeaderBytes = r.Uint32()
	hdr.SamplingLabel = r.String(16)
	hdr.Comment = r.TextString(256)
	hdr.Period = r.Int32()
	hdr.TimeRes = r.Uint32()
	for i := range hdr.DateTimeRaw {
		hdr.DateTimeRaw[i] = r.Uint16()
	}
	hdr.ChannelCount = int(r.Uint32())
	if r.Err() != nil {
		return nil, fmt.Errorf("%s: reading basic header: %w", name, r.Err())
	}
	if hdr.Period <= 0 {
		return nil, recording.Formatf(name, "sampling period", "non-positive value %d", hdr.Period)
	}
	hdr.SamplingFreq = float64(hdr.TimeRes / uint32(hdr.Period))
	hdr.DateTime = packedTimeUTC(hdr.DateTimeRaw)

	hdr.Electrodes = make([]recording.Electrode, 0, hdr.ChannelCount)
	for i := 0; i < hdr.ChannelCount; i++ {
		elec, err := readNSXElectrode(r, name)
		if err != nil {
			return nil, err
		}
		hdr.Electrodes = append(hdr.Electrodes, elec)
	}

	endOfExtHeader := r.Offset()
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%s: sizing file: %w", name, err)
	}
	if endOfExtHeader >= size {
		return nil, recording.Formatf(name, "data region",
			"file does not seem to contain data (size %d B)", size)
	}
	r.SeekTo(endOfExtHeader)

	if err := walkDataRegion(r, hdr, size); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return hdr, nil
}

// walkDataRegion locates the raw sample block. Data packets open with a
// leading byte 1 followed by a timestamp and a point count; any other
// leading byte means the remainder of the file is one raw block.
func walkDataRegion(r *binr.Reader, hdr *nsxHeader, size int64) error {
	nchan := int64(hdr.ChannelCount)
	for r.Offset() < size {
		start := r.Offset()
		if r.Uint8() != 1 {
			if hdr.BOData == 0 {
				// Headerless data region, old file layout.
				hdr.BOData = start
				hdr.DataPoints = int((size - start) / (nchan * 2))
			}
			break
		}
		r.Uint32() // packet timestamp
		points := int64(r.Uint32())
		hdr.BOData = r.Offset()
		r.Skip(int(points * nchan * 2))
		hdr.DataPoints = int((r.Offset() - hdr.BOData) / (nchan * 2))
		if r.Err() != nil {
			return fmt.Errorf("walking data packets: %w", r.Err())
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("walking data packets: %w", err)
	}
	return nil
}

// readNSXElectrode decodes one 66-byte extended header record. Each record
// asserts the literal "CC" tag; a mismatch fails the whole parse.
func readNSXElectrode(r *binr.Reader, name string) (recording.Electrode, error) {
	var e recording.Electrode

	tag := r.Bytes(2)
	if r.Err() != nil {
		return e, fmt.Errorf("%s: reading electrode record: %w", name, r.Err())
	}
	if string(tag) != nsxElectrodeTag {
		return e, recording.Formatf(name, "electrode record", "type tag %q, want %q", tag, nsxElectrodeTag)
	}
	e.ID = int(r.Uint16())
	e.Label = r.String(16)
	e.ConnectorBank = string(rune(r.Uint8() + 'A' - 1))
	e.ConnectorPin = int(r.Uint8())
	e.MinDigital = int(r.Int16())
	e.MaxDigital = int(r.Int16())
	e.MinAnalog = int(r.Int16())
	e.MaxAnalog = int(r.Int16())
	e.AnalogUnits = r.String(16)
	e.HighFreqCorner = r.Uint32()
	e.HighFreqOrder = r.Uint32()
	e.HighFilterType = r.Uint16()
	e.LowFreqCorner = r.Uint32()
	e.LowFreqOrder = r.Uint32()
	e.LowFilterType = r.Uint16()
	if r.Err() != nil {
		return e, fmt.Errorf("%s: reading electrode record: %w", name, r.Err())
	}
	return e, nil
}

// readNSXSamples reads nchan*(last-first) interleaved int16 samples
// starting at firstSample. Values come back sample-major, exactly as laid
// out on disk.
func readNSXSamples(f io.ReadSeeker, boData int64, nchan, first, last int) ([]int16, error) {
	if _, err := f.Seek(boData+int64(nchan)*2*int64(first), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to sample %d: %w", first, err)
	}
	n := nchan * (last - first)
	buf := make([]byte, n*2)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("reading %d samples: %w", last-first, err)
	}
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(uint16(buf[2*i]) | uint16(buf[2*i+1])<<8)
	}
	return out, nil
}
