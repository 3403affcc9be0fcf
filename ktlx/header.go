package ktlx

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/neuromarket/wonambi/internal/binr"
	"github.com/neuromarket/wonambi/recording"
)

const (
	// Every file of the family opens with the same 352-byte prefix.
	genericHeaderLen = 352

	// Absolute offsets inside an ERD header, fixed by the file schema.
	headboxOffset     = 4464
	schema7DataStart  = 4560
	schema8DataStart  = 8656
	maxHeaderChannels = 1024
)

// fileHeader is the generic prefix shared by every file role, plus the
// schema-gated ERD fields (zero for non-ERD files read with
// readGenericHeader).
type fileHeader struct {
	GUID          uuid.UUID
	FileSchema    int
	BaseSchema    int
	CreationTime  time.Time
	PatientIDNum  int32
	StudyID       int32
	PatLastName   string
	PatFirstName  string
	PatMiddleName string
	PatientID     string

	// Schema >= 7.
	SampleFreq   float64
	NumChannels  int
	DeltaBits    int
	PhysChan     []int32
	HeadboxType  [4]int32
	HeadboxSN    [4]int32
	HeadboxSW    string
	DSPHwVersion string
	DSPSwVersion string
	DiscardBits  int32

	// Schema >= 8.
	Shorted         []int16
	FrequencyFactor []int16
}

// dataStart returns the absolute offset where ERD sample rows begin.
func (h *fileHeader) dataStart() int64 {
	if h.FileSchema == 7 {
		return schema7DataStart
	}
	return schema8DataStart
}

// readGenericHeader parses the shared 352-byte prefix.
func readGenericHeader(f io.Reader, name string) (*fileHeader, error) {
	r := binr.New(f)
	hdr := &fileHeader{}

	guid := r.Bytes(16)
	if r.Err() != nil {
		return nil, fmt.Errorf("%s: reading file GUID: %w", name, r.Err())
	}
	hdr.GUID = guidFromWire(guid)

	hdr.FileSchema = int(r.Uint16())
	hdr.BaseSchema = int(r.Uint16())
	hdr.CreationTime = time.Unix(int64(r.Int32()), 0)
	hdr.PatientIDNum = r.Int32()
	hdr.StudyID = r.Int32()
	hdr.PatLastName = r.TextString(80)
	hdr.PatFirstName = r.TextString(80)
	hdr.PatMiddleName = r.TextString(80)
	hdr.PatientID = r.TextString(80)
	if r.Err() != nil {
		return nil, fmt.Errorf("%s: reading generic header: %w", name, r.Err())
	}
	if r.Offset() != genericHeaderLen {
		return nil, recording.Formatf(name, "generic header", "ends at offset %d, want %d", r.Offset(), genericHeaderLen)
	}

	switch hdr.FileSchema {
	case 7, 8, 9:
	default:
		return nil, recording.Formatf(name, "file schema", "unknown version %d", hdr.FileSchema)
	}
	if hdr.BaseSchema != 1 {
		return nil, recording.Formatf(name, "base schema", "got %d, want 1", hdr.BaseSchema)
	}
	return hdr, nil
}

// readERDHeader parses a raw-data file header: the generic prefix plus the
// sampling description and headbox identification blocks.
func readERDHeader(f io.ReadSeeker, name string) (*fileHeader, error) {
	hdr, err := readGenericHeader(f, name)
	if err != nil {
		return nil, err
	}

	r := binr.New(f)
	hdr.SampleFreq = r.Float64()
	hdr.NumChannels = int(r.Int32())
	hdr.DeltaBits = int(r.Int32())
	if r.Err() != nil {
		return nil, fmt.Errorf("%s: reading raw-data header: %w", name, r.Err())
	}
	if hdr.NumChannels <= 0 || hdr.NumChannels > maxHeaderChannels {
		return nil, recording.Formatf(name, "channel count", "implausible value %d", hdr.NumChannels)
	}
	hdr.PhysChan = make([]int32, hdr.NumChannels)
	for i := range hdr.PhysChan {
		hdr.PhysChan[i] = r.Int32()
	}

	r.SeekTo(headboxOffset)
	for i := range hdr.HeadboxType {
		hdr.HeadboxType[i] = r.Int32()
	}
	for i := range hdr.HeadboxSN {
		hdr.HeadboxSN[i] = r.Int32()
	}
	hdr.HeadboxSW = r.TextString(40)
	hdr.DSPHwVersion = r.TextString(10)
	hdr.DSPSwVersion = r.TextString(10)
	hdr.DiscardBits = r.Int32()

	if hdr.FileSchema >= 8 {
		hdr.Shorted = make([]int16, maxHeaderChannels)
		for i := range hdr.Shorted {
			hdr.Shorted[i] = r.Int16()
		}
		hdr.FrequencyFactor = make([]int16, maxHeaderChannels)
		for i := range hdr.FrequencyFactor {
			hdr.FrequencyFactor[i] = r.Int16()
		}
	}
	if r.Err() != nil {
		return nil, fmt.Errorf("%s: reading raw-data header: %w", name, r.Err())
	}
	return hdr, nil
}

// guidFromWire decodes the on-disk GUID. Windows stores the first three
// fields little-endian, so the bytes are reordered before rendering.
func guidFromWire(b []byte) uuid.UUID {
	var g [16]byte
	order := [...]int{3, 2, 1, 0, 5, 4, 7, 6, 8, 9, 10, 11, 12, 13, 14, 15}
	for i, j := range order {
		g[i] = b[j]
	}
	return uuid.UUID(g)
}

// rawHeaderMap flattens the header for the opaque Raw mapping.
func (h *fileHeader) rawHeaderMap() map[string]any {
	return map[string]any{
		"file_guid":          h.GUID.String(),
		"file_schema":        h.FileSchema,
		"base_schema":        h.BaseSchema,
		"creation_time":      h.CreationTime,
		"patient_id_num":     h.PatientIDNum,
		"study_id":           h.StudyID,
		"pat_last_name":      h.PatLastName,
		"pat_first_name":     h.PatFirstName,
		"pat_middle_name":    h.PatMiddleName,
		"patient_id":         h.PatientID,
		"sample_freq":        h.SampleFreq,
		"num_channels":       h.NumChannels,
		"deltabits":          h.DeltaBits,
		"phys_chan":          h.PhysChan,
		"headbox_type":       h.HeadboxType,
		"headbox_sn":         h.HeadboxSN,
		"headbox_sw_version": h.HeadboxSW,
		"dsp_hw_version":     h.DSPHwVersion,
		"dsp_sw_version":     h.DSPSwVersion,
		"discardbits":        h.DiscardBits,
	}
}
