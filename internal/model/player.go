package model

import "time"

// NoSpawnIndex marks a player not occupying any spawn point.
const NoSpawnIndex = -1

// Player is a connected avatar. Owned exclusively by the game model;
// all mutation happens under the game model's lock.
type Player struct {
	id       string
	name     string
	clientID string

	spawnIndex int

	// Position. spawned == false means waiting for a spawn point,
	// in which case x/y are meaningless.
	spawned bool
	x, y    int

	// Velocity bookkeeping: previous position and the wall-clock of the
	// last position change. Used only to derive vx/vy for snapshots.
	lastX, lastY int
	lastT        time.Time
}

// NewPlayer creates a player in the waiting state.
func NewPlayer(id, name, clientID string) *Player {
	return &Player{
		id:         id,
		name:       name,
		clientID:   clientID,
		spawnIndex: NoSpawnIndex,
	}
}

// ID returns the opaque unique player id.
func (p *Player) ID() string { return p.id }

// Name returns the display name.
func (p *Player) Name() string { return p.name }

// ClientID returns the current transport binding.
func (p *Player) ClientID() string { return p.clientID }

// SetClientID rebinds the player to a new transport.
func (p *Player) SetClientID(clientID string) { p.clientID = clientID }

// SpawnIndex returns the occupied spawn point index, or NoSpawnIndex.
func (p *Player) SpawnIndex() int { return p.spawnIndex }

// Spawned reports whether the player has a board position.
func (p *Player) Spawned() bool { return p.spawned }

// Position returns the player's cell. ok is false while waiting.
func (p *Player) Position() (x, y int, ok bool) {
	return p.x, p.y, p.spawned
}

// SetPosition places the player at (x,y) and advances the velocity
// bookkeeping: the previous cell becomes lastX/lastY and now becomes
// lastT.
func (p *Player) SetPosition(x, y int, spawnIndex int, now time.Time) {
	if p.spawned {
		p.lastX, p.lastY = p.x, p.y
	} else {
		p.lastX, p.lastY = x, y
	}
	p.lastT = now
	p.x, p.y = x, y
	p.spawned = true
	p.spawnIndex = spawnIndex
}

// Move shifts the player one cell, keeping the velocity bookkeeping
// current. Callers validate the destination first.
func (p *Player) Move(nx, ny int, now time.Time) {
	p.lastX, p.lastY = p.x, p.y
	p.lastT = now
	p.x, p.y = nx, ny
}

// ClearPosition returns the player to the waiting state.
func (p *Player) ClearPosition() {
	p.spawned = false
	p.spawnIndex = NoSpawnIndex
	p.lastT = time.Time{}
}

// RestorePosition places the player back at a remembered cell without
// touching the velocity bookkeeping history. Used on grace-period
// reconnect.
func (p *Player) RestorePosition(x, y, spawnIndex int, now time.Time) {
	p.x, p.y = x, y
	p.lastX, p.lastY = x, y
	p.lastT = now
	p.spawned = true
	p.spawnIndex = spawnIndex
}

// Velocity derives cells-per-second from the last applied move.
// Zero when the player never moved or no time elapsed since.
func (p *Player) Velocity(now time.Time) (vx, vy float64) {
	if !p.spawned || p.lastT.IsZero() {
		return 0, 0
	}
	dt := now.Sub(p.lastT).Seconds()
	if dt <= 0 {
		return 0, 0
	}
	return float64(p.x-p.lastX) / dt, float64(p.y-p.lastY) / dt
}
