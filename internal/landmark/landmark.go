// Package landmark answers "what did I actually click on?": it indexes the
// catalogued locations in an R-tree and finds the one nearest to a guess.
package landmark

import (
	"maps"
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/guessucla/campusguess/internal/campusguess"
)

const (
	tolerance   = 1e-6
	minChildren = 4
	maxChildren = 16
	dimensions  = 2

	// The tree ranks by planar degrees; the few closest candidates are
	// re-ranked by great-circle distance.
	candidates = 4
)

// Landmark is an indexed location.
type Landmark struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Coord campusguess.Coord `json:"coord"`
}

type item struct {
	Landmark
	rect *rtreego.Rect
}

func (it *item) Bounds() *rtreego.Rect { return it.rect }

// Index is safe for concurrent use. Reads take a shared lock; Load swaps
// the whole tree.
type Index struct {
	mu      sync.RWMutex
	tree    *rtreego.Rtree
	current map[string]Landmark
}

var _ rtreego.Spatial = (*item)(nil)

func NewIndex() *Index {
	return &Index{
		tree:    rtreego.NewTree(dimensions, minChildren, maxChildren),
		current: map[string]Landmark{},
	}
}

func landmarks(locs []campusguess.Location) map[string]Landmark {
	m := make(map[string]Landmark, len(locs))
	for _, l := range locs {
		m[l.ID] = Landmark{ID: l.ID, Name: l.Name, Coord: l.Coord}
	}
	return m
}

// Load replaces the index contents with locs.
func (ix *Index) Load(locs []campusguess.Location) {
	ix.swap(landmarks(locs))
}

// Sync rebuilds the index when locs differ from what is indexed, including
// a moved or renamed location. It reports whether it rebuilt.
func (ix *Index) Sync(locs []campusguess.Location) bool {
	next := landmarks(locs)

	ix.mu.RLock()
	same := maps.Equal(ix.current, next)
	ix.mu.RUnlock()
	if same {
		return false
	}
	ix.swap(next)
	return true
}

func (ix *Index) swap(next map[string]Landmark) {
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	for _, l := range next {
		tree.Insert(newItem(l))
	}

	ix.mu.Lock()
	ix.tree = tree
	ix.current = next
	ix.mu.Unlock()
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Size()
}

// Nearest returns the landmark closest to c and its distance in miles.
// ok is false when the index is empty.
func (ix *Index) Nearest(c campusguess.Coord) (l Landmark, miles float64, ok bool) {
	ix.mu.RLock()
	found := ix.tree.NearestNeighbors(candidates, rtreego.Point{c.Lat, c.Lon})
	ix.mu.RUnlock()

	miles = math.Inf(1)
	for _, sp := range found {
		it, isItem := sp.(*item)
		if !isItem || it == nil {
			continue
		}
		if d := campusguess.DistanceMiles(c, it.Coord); d < miles {
			l, miles, ok = it.Landmark, d, true
		}
	}
	if !ok {
		return Landmark{}, 0, false
	}
	return l, miles, true
}

func newItem(l Landmark) *item {
	return &item{
		Landmark: l,
		rect:     rtreego.Point{l.Coord.Lat, l.Coord.Lon}.ToRect(tolerance),
	}
}
