package blackrock

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/neuromarket/wonambi/internal/binr"
	"github.com/neuromarket/wonambi/recording"
)

const (
	nevMagic = "NEURALEV"

	nevBasicHeaderLen = 336
	nevExtRecordLen   = 32
)

// Extended header packet-type tags. Anything else is a format error, never
// silently skipped.
const (
	packetSpikeChannel = "NEUEVWAV"
	packetLabel        = "NEUEVLBL"
	packetFilter       = "NEUEVFLT"
	packetDigitalIO    = "DIGLABEL"
)

// The digital factor 21516 overflows its int16 encoding; the value the
// encoder meant is known from observed recordings and must be substituted
// verbatim so decoded amplitudes bit-match the vendor tools.
const (
	digitalFactorOverflowRaw = 21516
	digitalFactorOverflowVal = 152592.547
)

// nevHeader is the raw NEURALEV header.
type nevHeader struct {
	FileSpec        string
	Flags           uint16
	HeaderOffset    uint32
	PacketBytes     uint32
	TimeRes         uint32
	SampleRes       uint32
	DateTimeRaw     [8]uint16
	DateTime        time.Time
	Comment         string
	DataDuration    int
	DataDurationSec float64
	Electrodes      []recording.Electrode
	IOLabels        []recording.IOLabel
}

// readNeuralEV parses the event-format header and its extended records.
//
// The packed timestamp here is already local time and is taken as-is; the
// NSX header stores UTC instead. The asymmetry is in the files themselves,
// pending clarification from the device documentation, so it is preserved.
func readNeuralEV(f io.ReadSeeker, name string) (*nevHeader, error) {
	r := binr.New(f)

	magic := r.Bytes(8)
	if r.Err() != nil {
		return nil, fmt.Errorf("%s: reading magic tag: %w", name, r.Err())
	}
	if string(magic) != nevMagic {
		return nil, recording.Formatf(name, "magic tag", "got %q, want %q", magic, nevMagic)
	}

	hdr := &nevHeader{}
	major := r.Int8()
	minor := r.Int8()
	hdr.FileSpec = fmt.Sprintf("%d.%d", major, minor)
	hdr.Flags = r.Uint16()
	hdr.HeaderOffset = r.Uint32()
	hdr.PacketBytes = r.Uint32()
	hdr.TimeRes = r.Uint32()
	hdr.SampleRes = r.Uint32()
	for i := range hdr.DateTimeRaw {
		hdr.DateTimeRaw[i] = r.Uint16()
	}
	r.Skip(32) // application name
	hdr.Comment = r.TextString(256)
	extCount := int(r.Uint32())
	if r.Err() != nil {
		return nil, fmt.Errorf("%s: reading basic header: %w", name, r.Err())
	}
	if hdr.SampleRes == 0 {
		return nil, recording.Formatf(name, "sample resolution", "zero value")
	}
	hdr.DateTime = packedTimeLocal(hdr.DateTimeRaw)

	// Recording duration lives in the sample-stamp field of the last data
	// packet, one packet length before end of file.
	if _, err := f.Seek(-int64(hdr.PacketBytes), io.SeekEnd); err != nil {
		return nil, fmt.Errorf("%s: seeking to last packet: %w", name, err)
	}
	tail := binr.New(f)
	hdr.DataDuration = int(tail.Uint32())
	if tail.Err() != nil {
		return nil, fmt.Errorf("%s: reading data duration: %w", name, tail.Err())
	}
	hdr.DataDurationSec = float64(hdr.DataDuration) / float64(hdr.SampleRes)

	if _, err := f.Seek(nevBasicHeaderLen, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%s: seeking to extended header: %w", name, err)
	}
	if err := readNEVExtended(f, name, hdr, extCount); err != nil {
		return nil, err
	}
	return hdr, nil
}

// readNEVExtended consumes count 32-byte records. Later label and filter
// records refer back to already-created electrode descriptors by 1-based
// index, so the map holds positions in hdr.Electrodes and the records
// perform a lookup-and-merge. Positions, not pointers: append may move
// the backing array.
func readNEVExtended(f io.Reader, name string, hdr *nevHeader, count int) error {
	byIndex := make(map[int]int)

	for i := 0; i < count; i++ {
		rec := make([]byte, nevExtRecordLen)
		if _, err := io.ReadFull(f, rec); err != nil {
			return fmt.Errorf("%s: reading extended record %d: %w", name, i, err)
		}
		r := binr.New(bytes.NewReader(rec[8:]))

		switch tag := string(rec[:8]); tag {
		case packetSpikeChannel:
			var e recording.Electrode
			e.ID = int(r.Uint16())
			e.ConnectorBank = string(rune(r.Uint8() + 64))
			e.ConnectorPin = int(r.Uint8())
			if df := r.Int16(); df == digitalFactorOverflowRaw {
				e.DigitalFactor = digitalFactorOverflowVal
			} else {
				e.DigitalFactor = float64(df)
			}
			e.EnergyThreshold = r.Uint16()
			e.HighThreshold = r.Int16()
			e.LowThreshold = r.Int16()
			e.Units = int(r.Uint8())
			e.WaveformBytes = int(r.Uint8())
			hdr.Electrodes = append(hdr.Electrodes, e)
			byIndex[len(hdr.Electrodes)-1] = len(hdr.Electrodes) - 1

		case packetLabel:
			idx := int(r.Uint16()) - 1
			pos, ok := byIndex[idx]
			if !ok {
				return recording.Formatf(name, "label record", "no electrode at index %d", idx)
			}
			hdr.Electrodes[pos].Label = binr.CutString(rec[10:])

		case packetFilter:
			idx := int(r.Uint16()) - 1
			pos, ok := byIndex[idx]
			if !ok {
				return recording.Formatf(name, "filter record", "no electrode at index %d", idx)
			}
			e := &hdr.Electrodes[pos]
			e.HighFreqCorner = r.Uint32()
			e.HighFreqOrder = r.Uint32()
			e.HighFilterType = r.Uint16()
			e.LowFreqCorner = r.Uint32()
			e.LowFreqOrder = r.Uint32()
			e.LowFilterType = r.Uint16()

		case packetDigitalIO:
			// Odd layout: the label occupies bytes 8..25 and the mode
			// byte sits at 24, inside that span. Entry order in the file
			// is unreliable; callers select by mode.
			hdr.IOLabels = append(hdr.IOLabels, recording.IOLabel{
				Mode:  int(rec[24]) + 1,
				Label: binr.CutString(rec[8:25]),
			})

		default:
			return recording.Formatf(name, "extended header", "packet type %q not implemented", tag)
		}
		if r.Err() != nil {
			return fmt.Errorf("%s: decoding extended record %d: %w", name, i, r.Err())
		}
	}
	return nil
}
