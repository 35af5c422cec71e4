package game

import (
	"sort"

	"github.com/termrumble/termrumble/internal/protocol"
)

// Snapshot serializes a consistent point-in-time view of the world as
// the wire gameState. Velocities are derived at serialization time;
// waiting players carry null coordinates. Players and bullets are
// ordered deterministically (id order and fire order respectively).
func (g *Game) Snapshot() *protocol.GameState {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	ids := make([]string, 0, len(g.players))
	for id := range g.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	players := make([]protocol.PlayerState, 0, len(ids))
	for _, id := range ids {
		p := g.players[id]
		ps := protocol.PlayerState{
			PlayerID:   p.ID(),
			PlayerName: p.Name(),
		}
		if x, y, ok := p.Position(); ok {
			px, py := x, y
			ps.X, ps.Y = &px, &py
			ps.VX, ps.VY = p.Velocity(now)
		}
		players = append(players, ps)
	}

	bullets := make([]protocol.BulletState, 0, len(g.bulletOrder))
	for _, id := range g.bulletOrder {
		b, ok := g.bullets[id]
		if !ok {
			continue
		}
		bullets = append(bullets, protocol.BulletState{
			BulletID: b.ID,
			PlayerID: b.PlayerID,
			X:        b.X,
			Y:        b.Y,
			DX:       b.DX,
			DY:       b.DY,
		})
	}

	scores := make(map[string]int, len(g.scores))
	for id, s := range g.scores {
		scores[id] = s
	}

	return &protocol.GameState{
		Board: protocol.BoardState{
			Width:  g.board.Width(),
			Height: g.board.Height(),
			Grid:   g.board.Rows(),
		},
		Players: players,
		Bullets: bullets,
		Scores:  scores,
		Running: g.running,
	}
}
