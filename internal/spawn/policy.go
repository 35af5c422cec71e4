// Package spawn decides whether a spawn point is currently usable.
package spawn

import (
	"github.com/termrumble/termrumble/internal/board"
)

// Policy answers spawn-point availability against the board and the
// current set of occupied cells. Stateless: the caller supplies the
// occupancy each time.
type Policy struct {
	board       *board.Board
	points      []board.Point
	clearRadius int
}

// NewPolicy builds a policy over the board's declared spawn points.
func NewPolicy(b *board.Board, clearRadius int) *Policy {
	return &Policy{
		board:       b,
		points:      b.SpawnPoints(),
		clearRadius: clearRadius,
	}
}

// Points returns the configured spawn points in declared order.
func (p *Policy) Points() []board.Point {
	return p.points
}

// Available reports whether spawn point i can be used right now.
// A point is usable iff it is in bounds, not a wall, its full
// Manhattan disk of the clear radius fits inside the board, and every
// occupied cell lies strictly outside that disk. Waiting players have
// no cell and therefore never contest a point.
func (p *Policy) Available(i int, occupied []board.Point) bool {
	if i < 0 || i >= len(p.points) {
		return false
	}
	pt := p.points[i]

	if !p.board.InBounds(pt.X, pt.Y) || p.board.IsWall(pt.X, pt.Y) {
		return false
	}

	// The radius-R disk must fit entirely within bounds.
	r := p.clearRadius
	if !p.board.InBounds(pt.X-r, pt.Y) || !p.board.InBounds(pt.X+r, pt.Y) ||
		!p.board.InBounds(pt.X, pt.Y-r) || !p.board.InBounds(pt.X, pt.Y+r) {
		return false
	}

	for _, o := range occupied {
		if manhattan(pt, o) <= r {
			return false
		}
	}
	return true
}

// FirstAvailable scans spawn points in declared order and returns the
// first usable index. ok is false when every point is contested.
func (p *Policy) FirstAvailable(occupied []board.Point) (int, bool) {
	for i := range p.points {
		if p.Available(i, occupied) {
			return i, true
		}
	}
	return 0, false
}

func manhattan(a, b board.Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
