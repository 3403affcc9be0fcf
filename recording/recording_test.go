package recording_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromarket/wonambi/recording"
)

func TestScaleFactor(t *testing.T) {
	e := recording.Electrode{
		Label:      "chan1",
		MinDigital: -32767, MaxDigital: 32767,
		MinAnalog: -5000, MaxAnalog: 5000,
	}
	s, err := e.ScaleFactor()
	require.NoError(t, err)
	assert.InDelta(t, 10000.0/65534.0, s, 1e-12)
}

func TestScaleFactorAsymmetricDigital(t *testing.T) {
	e := recording.Electrode{
		MinDigital: -32768, MaxDigital: 32767,
		MinAnalog: -5000, MaxAnalog: 5000,
	}
	_, err := e.ScaleFactor()
	require.Error(t, err)
	assert.ErrorIs(t, err, recording.ErrFormat)
}

func TestScaleFactorAsymmetricAnalog(t *testing.T) {
	e := recording.Electrode{
		MinDigital: -32767, MaxDigital: 32767,
		MinAnalog: -5000, MaxAnalog: 4999,
	}
	_, err := e.ScaleFactor()
	assert.ErrorIs(t, err, recording.ErrFormat)
}

func TestFiletimeToTime(t *testing.T) {
	// The Unix epoch expressed as a FILETIME.
	got := recording.FiletimeToTime(116444736000000000)
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), got)

	// One and a half seconds later.
	got = recording.FiletimeToTime(116444736000000000 + 15000000)
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 1, 500000000, time.UTC), got)
}

func TestCheckRange(t *testing.T) {
	require.NoError(t, recording.CheckRange([]int{0, 1}, 0, 10, 2, 10))
	require.NoError(t, recording.CheckRange([]int{1}, 5, 5, 2, 10))

	err := recording.CheckRange([]int{2}, 0, 10, 2, 10)
	assert.ErrorIs(t, err, recording.ErrOutOfRange)

	err = recording.CheckRange([]int{-1}, 0, 10, 2, 10)
	assert.ErrorIs(t, err, recording.ErrOutOfRange)

	// No clamping: one sample past the end fails.
	err = recording.CheckRange([]int{0}, 0, 11, 2, 10)
	assert.ErrorIs(t, err, recording.ErrOutOfRange)

	err = recording.CheckRange([]int{0}, 7, 3, 2, 10)
	assert.ErrorIs(t, err, recording.ErrOutOfRange)
}

func TestErrorTaxonomyDistinct(t *testing.T) {
	fe := recording.Formatf("a.ns3", "magic tag", "mismatch")
	assert.ErrorIs(t, fe, recording.ErrFormat)
	assert.NotErrorIs(t, fe, recording.ErrOutOfRange)

	ue := &recording.UnsupportedError{Op: "reading samples"}
	assert.ErrorIs(t, ue, recording.ErrUnsupported)
	assert.NotErrorIs(t, ue, recording.ErrFormat)
}
