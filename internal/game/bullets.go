package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/termrumble/termrumble/internal/event"
	"github.com/termrumble/termrumble/internal/model"
)

// Kill records one victim/killer pair from a simulation tick.
type Kill struct {
	KillerID string
	VictimID string
}

// TickSummary reports what a single bullet tick did.
type TickSummary struct {
	Kills []Kill
}

// FireBullet spawns a bullet at the owner's cell. Exactly one of
// dx/dy must be non-zero, and a player holds at most one live bullet.
func (g *Game) FireBullet(playerID string, dx, dy int) (model.Bullet, error) {
	if dx < -1 || dx > 1 || dy < -1 || dy > 1 {
		return model.Bullet{}, fmt.Errorf("%w: (%d,%d)", ErrInvalidDirection, dx, dy)
	}
	if (dx == 0) == (dy == 0) {
		return model.Bullet{}, fmt.Errorf("%w: (%d,%d)", ErrInvalidDirection, dx, dy)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[playerID]
	if !ok {
		return model.Bullet{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	x, y, spawned := p.Position()
	if !spawned {
		return model.Bullet{}, fmt.Errorf("%w: %s", ErrNotSpawned, playerID)
	}

	for _, b := range g.bullets {
		if b.PlayerID == playerID {
			return model.Bullet{}, fmt.Errorf("%w: player %s", ErrBulletInFlight, playerID)
		}
	}

	b := &model.Bullet{
		ID:       uuid.NewString(),
		PlayerID: playerID,
		X:        x,
		Y:        y,
		DX:       dx,
		DY:       dy,
	}
	g.bullets[b.ID] = b
	g.bulletOrder = append(g.bulletOrder, b.ID)

	return *b, nil
}

// TickBullets advances every bullet one cell in fire order. Bullets
// die on walls and board edges, kill a different player they enter,
// and pass through their own just-vacated owner harmlessly. Bullets
// never collide with each other.
func (g *Game) TickBullets() TickSummary {
	g.mu.Lock()

	var summary TickSummary
	var events []event.Event
	surviving := g.bulletOrder[:0]

	for _, id := range g.bulletOrder {
		b, ok := g.bullets[id]
		if !ok {
			continue
		}
		nx, ny := b.Advance()

		if !g.board.InBounds(nx, ny) || g.board.IsWall(nx, ny) {
			delete(g.bullets, id)
			continue
		}

		if victim := g.playerAtLocked(nx, ny, b.PlayerID); victim != nil {
			delete(g.bullets, id)
			summary.Kills = append(summary.Kills, Kill{KillerID: b.PlayerID, VictimID: victim.ID()})
			events = append(events, g.killLocked(victim.ID(), b.PlayerID)...)
			continue
		}

		if owner, ok := g.players[b.PlayerID]; ok {
			if ox, oy, spawned := owner.Position(); spawned && ox == nx && oy == ny {
				// self-intersection: bullet dies, owner unharmed
				delete(g.bullets, id)
				continue
			}
		}

		b.X, b.Y = nx, ny
		surviving = append(surviving, id)
	}
	g.bulletOrder = surviving

	g.mu.Unlock()
	g.emitAll(events)
	return summary
}

// destroyBulletsOfLocked removes every bullet owned by playerID.
func (g *Game) destroyBulletsOfLocked(playerID string) {
	remaining := g.bulletOrder[:0]
	for _, id := range g.bulletOrder {
		b, ok := g.bullets[id]
		if !ok {
			continue
		}
		if b.PlayerID == playerID {
			delete(g.bullets, id)
			continue
		}
		remaining = append(remaining, id)
	}
	g.bulletOrder = remaining
}

// BulletCount returns the number of live bullets.
func (g *Game) BulletCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.bullets)
}
