// Package recording defines the output contract shared by every decoder:
// the normalized header, the channel metadata structures, the error
// taxonomy, and the two-operation Reader interface.
package recording

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Header is the normalized metadata every decoder produces on open.
type Header struct {
	SubjectID    string         // subject identification code, may be empty
	StartTime    time.Time      // start of the recording, reference local zone
	SamplingFreq float64        // sampling frequency in Hz
	ChannelNames []string       // channel order is significant
	NSamples     int            // total samples, 0 when not determinable
	Raw          map[string]any // format-specific fields, unmodified
}

// Reader is the contract every decoder exposes to external callers.
// Read returns a dense matrix with one row per requested channel and one
// column per sample in [firstSample, lastSample). The matrix is freshly
// allocated on every call and owned by the caller.
//
// Note that len(Header().ChannelNames) may not match the number of rows a
// format can actually produce: the event format infers a single dummy
// channel and has no sample data at all.
type Reader interface {
	Header() Header
	Read(chans []int, firstSample, lastSample int) (*mat.Dense, error)
}

// Electrode describes one recording channel. The continuous format fills
// the digital/analog ranges and filter fields from its 66-byte extended
// header records; the event format builds the descriptor incrementally as
// spike, label and filter records arrive.
type Electrode struct {
	ID            int
	Label         string
	ConnectorBank string
	ConnectorPin  int

	MinDigital  int
	MaxDigital  int
	MinAnalog   int
	MaxAnalog   int
	AnalogUnits string

	HighFreqCorner uint32
	HighFreqOrder  uint32
	HighFilterType uint16
	LowFreqCorner  uint32
	LowFreqOrder   uint32
	LowFilterType  uint16

	// Spike detection fields, event format only.
	DigitalFactor   float64
	EnergyThreshold uint16
	HighThreshold   int16
	LowThreshold    int16
	Units           int
	WaveformBytes   int
}

// ScaleFactor derives the linear digital-to-physical multiplier for the
// channel. Both ranges must be symmetric around zero; the single factor
// only exists because of that symmetry, so a violation is a FormatError
// and no factor is computed.
func (e *Electrode) ScaleFactor() (float64, error) {
	if e.MaxDigital != -e.MinDigital {
		return 0, Formatf("", "electrode "+e.Label,
			"digital range not symmetric: [%d, %d]", e.MinDigital, e.MaxDigital)
	}
	if e.MaxAnalog != -e.MinAnalog {
		return 0, Formatf("", "electrode "+e.Label,
			"analog range not symmetric: [%d, %d]", e.MinAnalog, e.MaxAnalog)
	}
	return float64(e.MaxAnalog-e.MinAnalog) / float64(e.MaxDigital-e.MinDigital), nil
}

// IOLabel names one digital I/O channel of the event format. The order of
// IOLabel entries in a file is not reliable; callers must select by Mode.
type IOLabel struct {
	Mode  int
	Label string
}

// SegmentIndexEntry maps a span of samples to one raw-data segment file of
// the segmented format. SampleNum accumulates over segments: it is the
// number of samples recorded before the segment starts.
type SegmentIndexEntry struct {
	SegmentName string
	StartStamp  int32
	EndStamp    int32
	SampleNum   int32
	SampleSpan  int32
}

// Annotation is one user note from the segmented format's annotation file,
// resolved to wall-clock time.
type Annotation struct {
	Time   time.Time
	Author string
	Text   string
}
