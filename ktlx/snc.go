package ktlx

import (
	"fmt"
	"io"
	"time"

	"github.com/neuromarket/wonambi/internal/binr"
	"github.com/neuromarket/wonambi/recording"
)

// syncPoint pairs a sample stamp with the master-clock FILETIME recorded
// for it. The sample rate cannot be represented exactly, so wall-clock
// times for arbitrary stamps are interpolated between these points rather
// than extrapolated from stamp zero.
type syncPoint struct {
	Stamp int32
	Time  time.Time
}

// readSNC parses the synchronization file: (stamp int32, FILETIME int64)
// pairs from the generic header to end of file.
func readSNC(f io.ReadSeeker, name string) ([]syncPoint, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%s: sizing file: %w", name, err)
	}
	if _, err := f.Seek(genericHeaderLen, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%s: seeking past generic header: %w", name, err)
	}

	r := binr.New(f)
	var points []syncPoint
	for pos := int64(genericHeaderLen); pos < size; pos += 12 {
		p := syncPoint{Stamp: r.Int32()}
		p.Time = recording.FiletimeToTime(r.Int64())
		if r.Err() != nil {
			return nil, fmt.Errorf("%s: reading sync pair %d: %w", name, len(points), r.Err())
		}
		points = append(points, p)
	}
	return points, nil
}

// stampTime interpolates the wall-clock time of a sample stamp between
// the surrounding sync points. Outside the covered range the nearest
// segment's rate is extended.
func stampTime(points []syncPoint, stamp int32) (time.Time, error) {
	if len(points) == 0 {
		return time.Time{}, &recording.UnsupportedError{Op: "time lookup without sync points"}
	}
	if len(points) == 1 {
		return points[0].Time, nil
	}
	i := 0
	for i < len(points)-2 && points[i+1].Stamp <= stamp {
		i++
	}
	a, b := points[i], points[i+1]
	if a.Stamp == b.Stamp {
		return a.Time, nil
	}
	frac := float64(stamp-a.Stamp) / float64(b.Stamp-a.Stamp)
	span := b.Time.Sub(a.Time)
	return a.Time.Add(time.Duration(frac * float64(span))), nil
}
