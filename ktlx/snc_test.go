package ktlx

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromarket/wonambi/recording"
)

func TestReadSNC(t *testing.T) {
	b := buildSNC(
		[2]int64{0, 116444736000000000},
		[2]int64{1024, 116444736000000000 + 20000000},
	)

	points, err := readSNC(bytes.NewReader(b), "rec01.snc")
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.Equal(t, int32(0), points[0].Stamp)
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), points[0].Time)
	assert.Equal(t, int32(1024), points[1].Stamp)
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 2, 0, time.UTC), points[1].Time)
}

func TestStampTimeInterpolation(t *testing.T) {
	t0 := time.Date(2013, 4, 2, 12, 0, 0, 0, time.UTC)
	points := []syncPoint{
		{Stamp: 0, Time: t0},
		{Stamp: 1000, Time: t0.Add(2 * time.Second)},
		{Stamp: 2000, Time: t0.Add(4 * time.Second)},
	}

	got, err := stampTime(points, 500)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Second), got)

	got, err = stampTime(points, 1500)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(3*time.Second), got)

	// Past the last point the final segment's rate extends.
	got, err = stampTime(points, 3000)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(6*time.Second), got)
}

func TestStampTimeNoPoints(t *testing.T) {
	_, err := stampTime(nil, 0)
	assert.ErrorIs(t, err, recording.ErrUnsupported)
}
