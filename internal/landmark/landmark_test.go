package landmark

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guessucla/campusguess/internal/campusguess"
)

var campus = []campusguess.Location{
	{ID: "royce", Name: "Royce Hall", Coord: campusguess.Coord{Lat: 34.07296, Lon: -118.44219}},
	{ID: "powell", Name: "Powell Library", Coord: campusguess.Coord{Lat: 34.07161, Lon: -118.44220}},
	{ID: "pauley", Name: "Pauley Pavilion", Coord: campusguess.Coord{Lat: 34.07040, Lon: -118.44687}},
	{ID: "ackerman", Name: "Ackerman Union", Coord: campusguess.Coord{Lat: 34.07047, Lon: -118.44393}},
	{ID: "hedrick", Name: "Hedrick Hall", Coord: campusguess.Coord{Lat: 34.07318, Lon: -118.45232}},
}

func TestNearestEmpty(t *testing.T) {
	_, _, ok := NewIndex().Nearest(campusguess.Coord{Lat: 34.07, Lon: -118.44})
	assert.False(t, ok)
}

func TestNearestExact(t *testing.T) {
	ix := NewIndex()
	ix.Load(campus)
	require.Equal(t, len(campus), ix.Len())

	for _, loc := range campus {
		l, miles, ok := ix.Nearest(loc.Coord)
		require.True(t, ok)
		assert.Equal(t, loc.ID, l.ID)
		assert.Zero(t, miles)
	}
}

func TestNearestPicksClosest(t *testing.T) {
	ix := NewIndex()
	ix.Load(campus)

	// Just south of Royce, still closer to it than to Powell.
	l, miles, ok := ix.Nearest(campusguess.Coord{Lat: 34.07260, Lon: -118.44219})
	require.True(t, ok)
	assert.Equal(t, "royce", l.ID)
	assert.InDelta(t, campusguess.DistanceMiles(campus[0].Coord, campusguess.Coord{Lat: 34.07260, Lon: -118.44219}), miles, 1e-12)

	// Out west by the dorms.
	l, _, ok = ix.Nearest(campusguess.Coord{Lat: 34.0731, Lon: -118.4530})
	require.True(t, ok)
	assert.Equal(t, "hedrick", l.ID)
}

func TestLoadReplaces(t *testing.T) {
	ix := NewIndex()
	ix.Load(campus)
	ix.Load(campus[:1])
	assert.Equal(t, 1, ix.Len())

	l, _, ok := ix.Nearest(campus[4].Coord)
	require.True(t, ok)
	assert.Equal(t, "royce", l.ID)
}

func TestSyncRebuildsOnChange(t *testing.T) {
	ix := NewIndex()
	require.True(t, ix.Sync(campus))
	assert.False(t, ix.Sync(campus), "unchanged locations should not rebuild")

	// Royce Hall moves next to Hedrick; the count stays the same.
	moved := append([]campusguess.Location(nil), campus...)
	moved[0].Coord = campusguess.Coord{Lat: 34.07330, Lon: -118.45300}
	require.True(t, ix.Sync(moved))
	assert.Equal(t, len(campus), ix.Len())

	l, _, ok := ix.Nearest(campusguess.Coord{Lat: 34.07330, Lon: -118.45300})
	require.True(t, ok)
	assert.Equal(t, "royce", l.ID)
}

func TestSyncConcurrent(t *testing.T) {
	ix := NewIndex()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locs := append([]campusguess.Location(nil), campus...)
			locs = append(locs, campusguess.Location{
				ID:    fmt.Sprintf("p%d", i%5),
				Coord: campusguess.Coord{Lat: 34.06 + float64(i%5)*0.0005, Lon: -118.44},
			})
			ix.Sync(locs)
			ix.Nearest(campusguess.Coord{Lat: 34.07, Lon: -118.44})
		}()
	}
	wg.Wait()
	assert.Equal(t, len(campus)+1, ix.Len())
}
