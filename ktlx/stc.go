package ktlx

import (
	"fmt"
	"io"
	"sort"

	"github.com/neuromarket/wonambi/internal/binr"
	"github.com/neuromarket/wonambi/recording"
)

// stcFile is the segment table of contents: the index into the raw-data /
// per-segment-toc file pairs a recording was split across. Segments exist
// to keep single files under the historical 2 GB size limit while still
// allowing quick searches.
type stcFile struct {
	NextSegment int32
	Final       int32
	Padding     [12]int32
	Entries     []recording.SegmentIndexEntry
}

const stcEntryLen = 256 + 4*4

// readSTC parses the table of contents. Fixed summary fields follow the
// generic header, then 276-byte entries run to end of file.
func readSTC(f io.ReadSeeker, name string) (*stcFile, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%s: sizing file: %w", name, err)
	}
	if _, err := f.Seek(genericHeaderLen, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%s: seeking past generic header: %w", name, err)
	}

	r := binr.New(f)
	stc := &stcFile{}
	stc.NextSegment = r.Int32()
	stc.Final = r.Int32()
	for i := range stc.Padding {
		stc.Padding[i] = r.Int32()
	}
	if r.Err() != nil {
		return nil, fmt.Errorf("%s: reading summary fields: %w", name, r.Err())
	}

	pos := int64(genericHeaderLen + 4 + 4 + 48)
	for pos < size {
		e := recording.SegmentIndexEntry{
			SegmentName: r.String(256),
			StartStamp:  r.Int32(),
			EndStamp:    r.Int32(),
			SampleNum:   r.Int32(),
			SampleSpan:  r.Int32(),
		}
		if r.Err() != nil {
			return nil, fmt.Errorf("%s: reading segment entry %d: %w", name, len(stc.Entries), r.Err())
		}
		if n := len(stc.Entries); n > 0 && e.SampleNum < stc.Entries[n-1].SampleNum {
			return nil, recording.Formatf(name, "segment entry",
				"sample_num decreases from %d to %d at entry %d",
				stc.Entries[n-1].SampleNum, e.SampleNum, n)
		}
		stc.Entries = append(stc.Entries, e)
		pos += stcEntryLen
	}
	return stc, nil
}

// totalSamples is the cumulative count at the end of the last segment.
func (s *stcFile) totalSamples() int {
	if len(s.Entries) == 0 {
		return 0
	}
	last := s.Entries[len(s.Entries)-1]
	return int(last.SampleNum + last.SampleSpan)
}

// segmentFor maps a global sample index to the segment containing it: the
// last entry whose cumulative sample_num is <= sample. The upstream format
// documentation declares this mapping without specifying the search; a
// binary search over the cumulative counts is the completion.
func (s *stcFile) segmentFor(sample int) (int, error) {
	if len(s.Entries) == 0 {
		return 0, &recording.UnsupportedError{Op: "sample access without a segment index"}
	}
	if sample < 0 || sample >= s.totalSamples() {
		return 0, &recording.OutOfRangeError{What: "sample", Value: sample, High: s.totalSamples()}
	}
	// First entry with SampleNum > sample, minus one.
	i := sort.Search(len(s.Entries), func(i int) bool {
		return int(s.Entries[i].SampleNum) > sample
	})
	return i - 1, nil
}
