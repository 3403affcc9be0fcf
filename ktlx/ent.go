package ktlx

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/neuromarket/wonambi/internal/binr"
	"github.com/neuromarket/wonambi/recording"
)

// note is one record of the annotation file.
type note struct {
	Type       int32
	Length     int32
	PrevLength int32
	Value      any
}

const noteHeaderLen = 16

// The annotation payload is a nested name/value pair serialization that
// predates JSON. These rewrites, applied in order, turn an observed
// payload into a JSON literal. The rules were derived empirically against
// recorded files and are kept verbatim; "correcting" them would break
// payloads the deployed encoder actually wrote.
var entRewrites = [...]struct{ old, new string }{
	{"\n", " "},
	{`\xd `, ""},
	{"(.", "{"},
	{")", "}"},
	{`",`, `" :`},
	{`{"`, `"`},
	{"},", ","},
	{"}}", "}"},
}

// Numeric tuples survive the bracket rules as `(1, 2}`; this turns them
// into JSON arrays.
var entTupleRe = regexp.MustCompile(`\(([0-9 ,\-.]*)\}`)

// readENT parses the annotation stream: fixed note headers, variable
// payloads, a type of 0 terminating the stream. Unlike every other parser
// in this package, a payload that defies translation is dropped and
// parsing continues at the next header; annotation files accumulate
// free-form garbage over a recording's life and one bad note must not cost
// the rest.
func readENT(f io.ReadSeeker, name string) ([]note, error) {
	if _, err := f.Seek(genericHeaderLen, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%s: seeking past generic header: %w", name, err)
	}

	var notes []note
	for {
		r := binr.New(f)
		n := note{
			Type:       r.Int32(),
			Length:     r.Int32(),
			PrevLength: r.Int32(),
		}
		r.Int32() // unused
		if err := r.Err(); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break // no terminator record, treat as end of stream
			}
			return nil, fmt.Errorf("%s: reading note header: %w", name, err)
		}
		if n.Type == 0 {
			break
		}
		if n.Length < noteHeaderLen {
			return nil, recording.Formatf(name, "note header", "length %d shorter than header", n.Length)
		}

		payload := make([]byte, n.Length-noteHeaderLen)
		if _, err := io.ReadFull(f, payload); err != nil {
			return nil, fmt.Errorf("%s: reading note payload: %w", name, err)
		}
		if len(payload) >= 2 {
			payload = payload[:len(payload)-2] // trailing terminator
		}

		value, err := translateNote(string(payload))
		if err != nil {
			log.Debug().Str("file", name).Int32("type", n.Type).Err(err).
				Msg("skipping untranslatable note")
			continue
		}
		n.Value = value
		notes = append(notes, n)
	}
	return notes, nil
}

// translateNote rewrites one payload into JSON and parses it.
func translateNote(s string) (any, error) {
	for _, rule := range entRewrites {
		s = strings.ReplaceAll(s, rule.old, rule.new)
	}
	s = entTupleRe.ReplaceAllString(s, "[$1]")

	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Authors whose notes are machine-generated and carry no clinical reading.
// The GUID is the workstation account the acquisition software runs under.
var systemAuthors = map[string]bool{
	"Persyst":                              true,
	"eeg":                                  true,
	"0CFEBE72-DA20-4b3a-A8AC-CDD41BFE2F0D": true,
	"XLSpike - Intracranial":               true,
	"XLEvent - Intracranial":               true,
}

// noteAnnotations filters parsed notes down to user annotations, resolving
// each sample stamp to wall-clock time against the recording start.
func noteAnnotations(notes []note, start time.Time, sfreq float64) []recording.Annotation {
	var out []recording.Annotation
	for _, n := range notes {
		m, ok := n.Value.(map[string]any)
		if !ok {
			continue
		}
		text, _ := m["Text"].(string)
		if text == "" || text == "Analyzed Data Note" {
			continue
		}
		data, ok := m["Data"].(map[string]any)
		if !ok {
			continue
		}
		user, ok := data["User"].(string)
		if !ok || systemAuthors[user] {
			continue
		}
		author := "-unknown-"
		if fields := strings.Fields(user); len(fields) > 0 {
			author = fields[0]
		}
		stamp, _ := m["Stamp"].(float64)
		at := start
		if sfreq > 0 {
			at = start.Add(time.Duration(stamp / sfreq * float64(time.Second)))
		}
		out = append(out, recording.Annotation{Time: at, Author: author, Text: text})
	}
	return out
}
