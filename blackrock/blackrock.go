// Package blackrock decodes Blackrock recording files: the continuous
// format (NEURALCD, .ns1-.ns6) carrying raw interleaved samples, and the
// event format (NEURALEV, .nev) carrying spike-channel and digital-IO
// metadata with no continuous samples.
package blackrock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gonum.org/v1/gonum/mat"

	"github.com/neuromarket/wonambi/recording"
)

// Reference zone every normalized start time is expressed in. The
// acquisition machines ran on US Eastern wall clocks.
var reference = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// Reader decodes one Blackrock file. It holds metadata only; every Read
// opens the file again and closes it before returning, so a Reader has no
// resources to release.
type Reader struct {
	path string
	hdr  recording.Header

	// Continuous format only.
	boData int64
	nchan  int
	factor []float64

	electrodes []recording.Electrode
	ioLabels   []recording.IOLabel
	eventOnly  bool
}

// Open parses the header of an .nsX or .nev file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case strings.HasPrefix(ext, ".ns"):
		hdr, err := readNeuralCD(f, name)
		if err != nil {
			return nil, err
		}
		return newContinuousReader(path, hdr)
	case ext == ".nev":
		hdr, err := readNeuralEV(f, name)
		if err != nil {
			return nil, err
		}
		return newEventReader(path, hdr)
	default:
		return nil, fmt.Errorf("%s: not a Blackrock extension", name)
	}
}

func newContinuousReader(path string, hdr *nsxHeader) (*Reader, error) {
	factor := make([]float64, len(hdr.Electrodes))
	names := make([]string, len(hdr.Electrodes))
	channelIDs := make([]int, len(hdr.Electrodes))
	for i := range hdr.Electrodes {
		e := &hdr.Electrodes[i]
		s, err := e.ScaleFactor()
		if err != nil {
			return nil, err
		}
		factor[i] = s
		names[i] = e.Label
		channelIDs[i] = e.ID
	}

	return &Reader{
		path: path,
		hdr: recording.Header{
			StartTime:    hdr.DateTime,
			SamplingFreq: hdr.SamplingFreq,
			ChannelNames: names,
			NSamples:     hdr.DataPoints,
			Raw: map[string]any{
				"FileSpec":      hdr.FileSpec,
				"HeaderBytes":   hdr.HeaderBytes,
				"SamplingLabel": hdr.SamplingLabel,
				"Comment":       hdr.Comment,
				"TimeRes":       hdr.TimeRes,
				"SamplingFreq":  hdr.SamplingFreq,
				"DateTimeRaw":   hdr.DateTimeRaw,
				"ChannelCount":  hdr.ChannelCount,
				"ChannelID":     channelIDs,
				"BOData":        hdr.BOData,
				"DataPoints":    hdr.DataPoints,
			},
		},
		boData:     hdr.BOData,
		nchan:      hdr.ChannelCount,
		factor:     factor,
		electrodes: hdr.Electrodes,
	}, nil
}

func newEventReader(path string, hdr *nevHeader) (*Reader, error) {
	channelIDs := make([]int, len(hdr.Electrodes))
	for i := range hdr.Electrodes {
		channelIDs[i] = hdr.Electrodes[i].ID
	}

	return &Reader{
		path: path,
		hdr: recording.Header{
			StartTime:    hdr.DateTime,
			SamplingFreq: float64(hdr.SampleRes),
			// No continuous channels exist; a single placeholder keeps
			// the channel list non-empty for metadata-only callers.
			ChannelNames: []string{"dummy"},
			NSamples:     hdr.DataDuration,
			Raw: map[string]any{
				"FileSpec":        hdr.FileSpec,
				"Flags":           hdr.Flags,
				"HeaderOffset":    hdr.HeaderOffset,
				"PacketBytes":     hdr.PacketBytes,
				"TimeRes":         hdr.TimeRes,
				"SampleRes":       hdr.SampleRes,
				"DateTimeRaw":     hdr.DateTimeRaw,
				"Comment":         hdr.Comment,
				"DataDuration":    hdr.DataDuration,
				"DataDurationSec": hdr.DataDurationSec,
				"ChannelID":       channelIDs,
			},
		},
		electrodes: hdr.Electrodes,
		ioLabels:   hdr.IOLabels,
		eventOnly:  true,
	}, nil
}

// Header returns the normalized recording metadata.
func (r *Reader) Header() recording.Header { return r.hdr }

// Electrodes returns the per-channel descriptors assembled from the
// extended header. The slice is built once at open and never mutated.
func (r *Reader) Electrodes() []recording.Electrode { return r.electrodes }

// IOLabels returns the digital-IO labels of an event file. Order is not
// meaningful; select by Mode.
func (r *Reader) IOLabels() []recording.IOLabel { return r.ioLabels }

// Read returns the physical sample values for the requested channels over
// [firstSample, lastSample), one channel per row.
func (r *Reader) Read(chans []int, firstSample, lastSample int) (*mat.Dense, error) {
	if r.eventOnly {
		return nil, &recording.UnsupportedError{Op: "reading samples from an event-only file"}
	}
	if err := recording.CheckRange(chans, firstSample, lastSample, len(r.hdr.ChannelNames), r.hdr.NSamples); err != nil {
		return nil, err
	}
	if lastSample == firstSample {
		return &mat.Dense{}, nil
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := readNSXSamples(f, r.boData, r.nchan, firstSample, lastSample)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(r.path), err)
	}

	nsam := lastSample - firstSample
	out := mat.NewDense(len(chans), nsam, nil)
	for s := 0; s < nsam; s++ {
		row := raw[s*r.nchan : (s+1)*r.nchan]
		for i, c := range chans {
			out.Set(i, s, r.factor[c]*float64(row[c]))
		}
	}
	return out, nil
}

// packedTimeUTC interprets the 8x16-bit packed timestamp as UTC and brings
// it into the reference zone. Field order is (year, month, weekday, day,
// hour, minute, second, millisecond); the weekday is redundant.
func packedTimeUTC(t [8]uint16) time.Time {
	d := time.Date(int(t[0]), time.Month(t[1]), int(t[3]),
		int(t[4]), int(t[5]), int(t[6]), int(t[7])*1e6, time.UTC)
	return d.In(reference)
}

// packedTimeLocal interprets the packed timestamp as wall-clock time in
// the reference zone, with no conversion.
func packedTimeLocal(t [8]uint16) time.Time {
	return time.Date(int(t[0]), time.Month(t[1]), int(t[3]),
		int(t[4]), int(t[5]), int(t[6]), int(t[7])*1e6, reference)
}
