// Package ktlx decodes segmented multi-file recordings: one logical
// recording split across size-bounded raw-data segments (.erd) indexed by
// a segment table of contents (.stc), with a synchronization file (.snc)
// mapping sample stamps to wall-clock time and an annotation file (.ent)
// of free-form notes.
package ktlx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/neuromarket/wonambi/recording"
)

// Reader decodes one recording directory. All files are opened per
// operation and closed before it returns.
type Reader struct {
	dir  string
	base string
	hdr  recording.Header

	erd         *fileHeader
	stc         *stcFile
	sync        []syncPoint
	annotations []recording.Annotation
}

// Open resolves the recording base name inside dir and parses the header
// files. The raw-data header is required; the segment index, sync and
// annotation files are picked up when present.
func Open(dir string) (*Reader, error) {
	base, err := resolveBase(dir)
	if err != nil {
		return nil, err
	}

	r := &Reader{dir: dir, base: base}
	if err := r.readHeaders(); err != nil {
		return nil, err
	}
	return r, nil
}

// numberedSegmentRe matches the _NNN suffix of second and subsequent
// segment files. The first segment has no suffix, for compatibility with
// older software versions.
var numberedSegmentRe = regexp.MustCompile(`_[0-9]{3}\.erd$`)

// resolveBase finds the recording's base filename. Normally it is the
// directory's own name; when the directory was renamed, it is the one .erd
// file without a segment-number suffix.
func resolveBase(dir string) (string, error) {
	name := filepath.Base(dir)
	if _, err := os.Stat(filepath.Join(dir, name+".erd")); err == nil {
		return name, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.erd"))
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, m := range matches {
		if !numberedSegmentRe.MatchString(strings.ToLower(m)) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) != 1 {
		return "", fmt.Errorf("%s: could not find one base .erd file, found %d candidates", dir, len(candidates))
	}
	base := strings.TrimSuffix(filepath.Base(candidates[0]), filepath.Ext(candidates[0]))
	log.Debug().Str("dir", dir).Str("base", base).Msg("resolved renamed recording directory")
	return base, nil
}

func (r *Reader) file(ext string) string {
	return filepath.Join(r.dir, r.base+ext)
}

func (r *Reader) readHeaders() error {
	erdPath := r.file(".erd")
	f, err := os.Open(erdPath)
	if err != nil {
		return err
	}
	r.erd, err = readERDHeader(f, filepath.Base(erdPath))
	f.Close()
	if err != nil {
		return err
	}

	// Companion files are optional; a missing one leaves the capability
	// out rather than failing the open.
	if f, err := os.Open(r.file(".stc")); err == nil {
		r.stc, err = readSTC(f, filepath.Base(f.Name()))
		f.Close()
		if err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if f, err := os.Open(r.file(".snc")); err == nil {
		r.sync, err = readSNC(f, filepath.Base(f.Name()))
		f.Close()
		if err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	notes, err := r.readNotes()
	if err != nil {
		return err
	}

	r.hdr = r.normalizeHeader(notes)
	r.annotations = noteAnnotations(notes, r.hdr.StartTime, r.erd.SampleFreq)
	return nil
}

// readNotes parses the annotation file, falling back to the .ent.old
// backup some recordings carry instead.
func (r *Reader) readNotes() ([]note, error) {
	for _, ext := range []string{".ent", ".ent.old"} {
		f, err := os.Open(r.file(ext))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		notes, err := readENT(f, filepath.Base(f.Name()))
		f.Close()
		return notes, err
	}
	return nil, nil
}

func (r *Reader) normalizeHeader(notes []note) recording.Header {
	subj := r.erd.PatientID
	if subj == "" {
		subj = r.erd.PatFirstName + r.erd.PatMiddleName + r.erd.PatLastName
	}

	// The raw-data header names channels only by physical channel index.
	names := make([]string, r.erd.NumChannels)
	for i, pc := range r.erd.PhysChan {
		names[i] = fmt.Sprintf("chan%03d", pc)
	}

	nsamples := 0
	raw := r.erd.rawHeaderMap()
	if r.stc != nil {
		nsamples = r.stc.totalSamples()
		raw["next_segment"] = r.stc.NextSegment
		raw["final"] = r.stc.Final
		raw["segments"] = r.stc.Entries
	}
	if len(notes) > 0 {
		values := make([]any, len(notes))
		for i, n := range notes {
			values[i] = n.Value
		}
		raw["notes"] = values
	}

	return recording.Header{
		SubjectID:    subj,
		StartTime:    r.erd.CreationTime,
		SamplingFreq: r.erd.SampleFreq,
		ChannelNames: names,
		NSamples:     nsamples,
		Raw:          raw,
	}
}

// Header returns the normalized recording metadata.
func (r *Reader) Header() recording.Header { return r.hdr }

// Annotations returns the user notes of the recording, resolved to
// wall-clock time and stripped of machine-generated entries.
func (r *Reader) Annotations() []recording.Annotation { return r.annotations }

// SegmentIndex returns the segment table entries, or nil without an .stc.
func (r *Reader) SegmentIndex() []recording.SegmentIndexEntry {
	if r.stc == nil {
		return nil
	}
	return r.stc.Entries
}

// StampTime interpolates the wall-clock time of a sample stamp from the
// synchronization file.
func (r *Reader) StampTime(stamp int32) (time.Time, error) {
	return stampTime(r.sync, stamp)
}

// Read returns raw sample values (engineering-unit conversion for this
// family is headbox-dependent and deliberately identity) for the requested
// channels over [firstSample, lastSample), one channel per row.
//
// Every touched segment is decoded sequentially from its first row: the
// delta codec has no mid-stream anchor, so a segment start is the only
// place a pass may begin. Codec state never survives a call.
func (r *Reader) Read(chans []int, firstSample, lastSample int) (*mat.Dense, error) {
	if err := recording.CheckRange(chans, firstSample, lastSample, r.erd.NumChannels, r.hdr.NSamples); err != nil {
		return nil, err
	}
	if lastSample == firstSample {
		return &mat.Dense{}, nil
	}
	if r.stc == nil {
		return nil, &recording.UnsupportedError{Op: "reading samples without a segment index"}
	}

	seg, err := r.stc.segmentFor(firstSample)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(len(chans), lastSample-firstSample, nil)
	row := make([]int32, r.erd.NumChannels)
	for ; seg < len(r.stc.Entries); seg++ {
		entry := r.stc.Entries[seg]
		segStart := int(entry.SampleNum)
		if segStart >= lastSample {
			break
		}
		stop := segStart + int(entry.SampleSpan)
		if stop > lastSample {
			stop = lastSample
		}
		if err := r.readSegment(entry, segStart, firstSample, stop, chans, row, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// readSegment decodes one segment from its start, discarding rows before
// the requested window and storing the rest into out.
func (r *Reader) readSegment(entry recording.SegmentIndexEntry, segStart, first, stop int, chans []int, row []int32, out *mat.Dense) error {
	path := r.segmentPath(entry.SegmentName)
	name := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Each segment file carries its own header; the schema can differ
	// between segments recorded by different software versions.
	hdr, err := readERDHeader(f, name)
	if err != nil {
		return err
	}
	if hdr.NumChannels != r.erd.NumChannels {
		return recording.Formatf(name, "channel count",
			"segment has %d channels, recording has %d", hdr.NumChannels, r.erd.NumChannels)
	}
	if _, err := f.Seek(hdr.dataStart(), io.SeekStart); err != nil {
		return fmt.Errorf("%s: seeking to sample data: %w", name, err)
	}

	dec := newDeltaDecoder(hdr.FileSchema, hdr.NumChannels)
	for s := segStart; s < stop; s++ {
		if err := dec.readRow(f, name, row); err != nil {
			if err == errEndOfStream {
				return recording.Formatf(name, "sample stream",
					"ends at sample %d, segment index promises %d", s, stop)
			}
			return err
		}
		if s < first {
			continue
		}
		for i, c := range chans {
			out.Set(i, s-first, float64(row[c]))
		}
	}
	return nil
}

// segmentPath joins a segment name from the index with the recording
// directory, tolerating entries written with or without the extension.
func (r *Reader) segmentPath(name string) string {
	if !strings.EqualFold(filepath.Ext(name), ".erd") {
		name += ".erd"
	}
	return filepath.Join(r.dir, name)
}
