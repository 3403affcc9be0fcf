package recording

import "time"

// Microsoft FILETIME counts 100 ns ticks since 1601-01-01.
// http://support.microsoft.com/kb/167296
const (
	epochAsFiletime = 116444736000000000 // January 1, 1970 as MS file time
	ticksPerSecond  = 10000000
)

// FiletimeToTime converts a Microsoft FILETIME value to a time.Time. The
// source systems record these in the machine's local clock, so the result
// carries the wall-clock fields unchanged with no zone conversion.
func FiletimeToTime(ft int64) time.Time {
	sec := (ft - epochAsFiletime) / ticksPerSecond
	rem := (ft - epochAsFiletime) % ticksPerSecond
	return time.Unix(sec, rem*100).UTC()
}
