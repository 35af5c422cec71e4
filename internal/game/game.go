// Package game holds the authoritative mutable world: players,
// bullets, scores, the waiting queue, the respawn queue, and the
// disconnect grace buffer. It is the only component permitted to
// mutate game entities; every operation takes the model lock, so all
// state transitions are serialized and atomic.
package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/termrumble/termrumble/internal/board"
	"github.com/termrumble/termrumble/internal/event"
	"github.com/termrumble/termrumble/internal/model"
	"github.com/termrumble/termrumble/internal/spawn"
)

// RemoveReason distinguishes a dropped transport from a deliberate exit.
type RemoveReason string

const (
	ReasonDisconnect RemoveReason = "disconnect"
	ReasonLeave      RemoveReason = "leave"
)

// SpawnStatus is the outcome of a spawn attempt.
type SpawnStatus int

const (
	StatusSpawned SpawnStatus = iota
	StatusWaiting
)

// DisconnectedPlayer is the grace-buffer snapshot of a dropped player.
type DisconnectedPlayer struct {
	Name           string
	X, Y           int
	Spawned        bool
	Score          int
	SpawnIndex     int
	Joined         bool
	DisconnectedAt time.Time
}

// respawnTask schedules a killed player's return to the board.
type respawnTask struct {
	playerID  string
	respawnAt time.Time
}

// Game is the authoritative world model.
type Game struct {
	mu sync.Mutex

	board  *board.Board
	policy *spawn.Policy
	bus    *event.Bus
	now    func() time.Time

	respawnDelay time.Duration
	grace        time.Duration

	players     map[string]*model.Player
	bullets     map[string]*model.Bullet
	bulletOrder []string // fire order, drives tick processing
	scores      map[string]int
	joined      map[string]bool // players that have spawned at least once

	waiting      []string // spawn-starved players, entry order
	disconnected map[string]*DisconnectedPlayer
	respawns     []respawnTask

	running bool
}

// New creates an empty world over the given board.
func New(b *board.Board, policy *spawn.Policy, bus *event.Bus, respawnDelay, grace time.Duration) *Game {
	return &Game{
		board:        b,
		policy:       policy,
		bus:          bus,
		now:          time.Now,
		respawnDelay: respawnDelay,
		grace:        grace,
		players:      make(map[string]*model.Player),
		bullets:      make(map[string]*model.Bullet),
		scores:       make(map[string]int),
		joined:       make(map[string]bool),
		disconnected: make(map[string]*DisconnectedPlayer),
	}
}

// SetClock overrides the wall-clock source. Tests use this to make
// grace expiry and respawn timing deterministic.
func (g *Game) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// SetRunning flips the running flag and emits gameStateChange.
func (g *Game) SetRunning(running bool) {
	g.mu.Lock()
	changed := g.running != running
	g.running = running
	g.mu.Unlock()

	if changed {
		g.bus.Emit(event.Global(event.TypeGameStateChange, GameStateChangePayload{Running: running}))
	}
}

// Board returns the immutable board.
func (g *Game) Board() *board.Board { return g.board }

// AddPlayer inserts a player in the waiting state.
func (g *Game) AddPlayer(clientID, playerID, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.players[playerID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePlayer, playerID)
	}

	g.players[playerID] = model.NewPlayer(playerID, name, clientID)
	g.scores[playerID] = 0
	return nil
}

// SpawnPlayer attempts to place the player at the first available
// spawn point. When every point is contested the player enters the
// waiting queue and StatusWaiting is returned.
func (g *Game) SpawnPlayer(playerID string) (SpawnStatus, error) {
	g.mu.Lock()

	p, ok := g.players[playerID]
	if !ok {
		g.mu.Unlock()
		return StatusWaiting, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	if p.Spawned() {
		g.mu.Unlock()
		return StatusSpawned, nil
	}

	events, spawned := g.spawnLocked(p)
	if !spawned {
		g.enqueueWaitingLocked(playerID)
	}
	g.mu.Unlock()

	g.emitAll(events)
	if !spawned {
		return StatusWaiting, nil
	}
	return StatusSpawned, nil
}

// spawnLocked places p at the first available spawn point. Returns the
// events to emit after the lock is released.
func (g *Game) spawnLocked(p *model.Player) ([]event.Event, bool) {
	idx, ok := g.policy.FirstAvailable(g.occupiedLocked())
	if !ok {
		return nil, false
	}

	pt := g.policy.Points()[idx]
	p.SetPosition(pt.X, pt.Y, idx, g.now())

	events := []event.Event{
		event.Targeted(event.TypeSpawn, p.ID(), SpawnPayload{
			PlayerID: p.ID(), X: pt.X, Y: pt.Y, SpawnIndex: idx,
		}),
	}
	if !g.joined[p.ID()] {
		g.joined[p.ID()] = true
		events = append(events, event.Global(event.TypePlayerJoined, PlayerJoinedPayload{
			PlayerID: p.ID(), PlayerName: p.Name(),
		}))
	}
	return events, true
}

// MovePlayer applies a one-cell move. Rejections emit a targeted bump
// and return ErrMoveFailed; validation failures return without events.
func (g *Game) MovePlayer(playerID string, dx, dy int) error {
	if dx < -1 || dx > 1 || dy < -1 || dy > 1 || (dx == 0 && dy == 0) {
		return fmt.Errorf("%w: (%d,%d)", ErrInvalidMove, dx, dy)
	}

	g.mu.Lock()

	p, ok := g.players[playerID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	x, y, spawned := p.Position()
	if !spawned {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotSpawned, playerID)
	}

	nx, ny := x+dx, y+dy

	collision := ""
	switch {
	case !g.board.InBounds(nx, ny):
		collision = CollisionBounds
	case g.board.IsWall(nx, ny):
		collision = CollisionWall
	case g.playerAtLocked(nx, ny, playerID) != nil:
		collision = CollisionPlayer
	}

	if collision != "" {
		g.mu.Unlock()
		g.bus.Emit(event.Targeted(event.TypeBump, playerID, BumpPayload{
			PlayerID:      playerID,
			AttemptedX:    nx,
			AttemptedY:    ny,
			CurrentX:      x,
			CurrentY:      y,
			CollisionType: collision,
		}))
		return fmt.Errorf("%w: %s at (%d,%d)", ErrMoveFailed, collision, nx, ny)
	}

	p.Move(nx, ny, g.now())
	g.mu.Unlock()
	return nil
}

// Kill moves the victim to the waiting state, schedules a respawn, and
// credits the killer. Self-kills never change the score.
func (g *Game) Kill(victimID, killerID string) {
	g.mu.Lock()
	events := g.killLocked(victimID, killerID)
	g.mu.Unlock()
	g.emitAll(events)
}

func (g *Game) killLocked(victimID, killerID string) []event.Event {
	victim, ok := g.players[victimID]
	if !ok {
		return nil
	}

	victim.ClearPosition()
	g.respawns = append(g.respawns, respawnTask{
		playerID:  victimID,
		respawnAt: g.now().Add(g.respawnDelay),
	})

	if killerID == victimID {
		return nil
	}
	if _, ok := g.players[killerID]; !ok {
		return nil
	}

	g.scores[killerID]++
	return []event.Event{
		event.Targeted(event.TypeScoreChange, killerID, ScoreChangePayload{
			PlayerID: killerID,
			Score:    g.scores[killerID],
			VictimID: victimID,
		}),
	}
}

// ProcessRespawns attempts to spawn every due respawn task. Tasks that
// find no free spawn point stay queued for the next tick. Returns the
// ids that came back.
func (g *Game) ProcessRespawns() []string {
	g.mu.Lock()

	now := g.now()
	var respawned []string
	var events []event.Event
	remaining := g.respawns[:0]

	for _, task := range g.respawns {
		if task.respawnAt.After(now) {
			remaining = append(remaining, task)
			continue
		}
		p, ok := g.players[task.playerID]
		if !ok {
			continue // removed while dead
		}
		evs, spawned := g.spawnLocked(p)
		if !spawned {
			remaining = append(remaining, task)
			continue
		}
		events = append(events, evs...)
		respawned = append(respawned, task.playerID)
	}
	g.respawns = remaining

	g.mu.Unlock()
	g.emitAll(events)
	return respawned
}

// TrySpawnWaitingPlayers attempts to place waiting players in the
// order they entered the waiting state. Returns the ids placed.
func (g *Game) TrySpawnWaitingPlayers() []string {
	g.mu.Lock()

	var placed []string
	var events []event.Event
	remaining := g.waiting[:0]

	for _, id := range g.waiting {
		p, ok := g.players[id]
		if !ok || p.Spawned() {
			continue
		}
		evs, spawned := g.spawnLocked(p)
		if !spawned {
			remaining = append(remaining, id)
			continue
		}
		events = append(events, evs...)
		placed = append(placed, id)
	}
	g.waiting = remaining

	g.mu.Unlock()
	g.emitAll(events)
	return placed
}

// RemovePlayer destroys the player's bullets, clears the score, and
// either buffers the record for grace-period reconnect (disconnect) or
// purges it entirely (leave). A non-empty clientID makes removal
// conditional: when the player has already rebound to a newer
// transport, the stale close is a no-op.
func (g *Game) RemovePlayer(playerID, clientID string, reason RemoveReason) error {
	g.mu.Lock()

	p, ok := g.players[playerID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	if clientID != "" && p.ClientID() != clientID {
		g.mu.Unlock()
		return nil
	}

	g.destroyBulletsOfLocked(playerID)

	if reason == ReasonDisconnect && g.grace > 0 {
		x, y, spawned := p.Position()
		g.disconnected[playerID] = &DisconnectedPlayer{
			Name:           p.Name(),
			X:              x,
			Y:              y,
			Spawned:        spawned,
			Score:          g.scores[playerID],
			SpawnIndex:     p.SpawnIndex(),
			Joined:         g.joined[playerID],
			DisconnectedAt: g.now(),
		}
	}

	delete(g.players, playerID)
	delete(g.scores, playerID)
	delete(g.joined, playerID)
	g.dropWaitingLocked(playerID)
	g.dropRespawnsLocked(playerID)

	g.mu.Unlock()

	g.bus.Emit(event.Global(event.TypePlayerLeft, PlayerLeftPayload{
		PlayerID: playerID,
		Reason:   reason,
	}))
	return nil
}

// RestorePlayer rebinds an active player to a new transport, or
// revives a grace-buffer record with its position, score, and spawn
// index intact. When another player claimed the remembered cell in the
// meantime, the revived player keeps the score but rejoins through the
// waiting queue. Returns the player's display name.
func (g *Game) RestorePlayer(playerID, newClientID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.players[playerID]; ok {
		p.SetClientID(newClientID)
		return p.Name(), nil
	}

	rec, ok := g.disconnected[playerID]
	if !ok || g.now().Sub(rec.DisconnectedAt) > g.grace {
		delete(g.disconnected, playerID)
		return "", fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}

	p := model.NewPlayer(playerID, rec.Name, newClientID)
	canRestore := rec.Spawned &&
		g.board.InBounds(rec.X, rec.Y) && !g.board.IsWall(rec.X, rec.Y) &&
		g.playerAtLocked(rec.X, rec.Y, playerID) == nil
	if canRestore {
		p.RestorePosition(rec.X, rec.Y, rec.SpawnIndex, g.now())
	} else {
		g.enqueueWaitingLocked(playerID)
	}
	g.players[playerID] = p
	g.scores[playerID] = rec.Score
	g.joined[playerID] = rec.Joined
	delete(g.disconnected, playerID)

	return rec.Name, nil
}

// PurgeExpiredDisconnected drops grace-buffer records older than the
// grace period. Idempotent for a fixed clock. Returns the purge count.
func (g *Game) PurgeExpiredDisconnected() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	purged := 0
	for id, rec := range g.disconnected {
		if now.Sub(rec.DisconnectedAt) > g.grace {
			delete(g.disconnected, id)
			purged++
		}
	}
	return purged
}

// RespawnPending reports the scheduled respawn time for a player.
func (g *Game) RespawnPending(playerID string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, task := range g.respawns {
		if task.playerID == playerID {
			return task.respawnAt, true
		}
	}
	return time.Time{}, false
}

// PlayerCount returns the number of active players.
func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

// enqueueWaitingLocked appends playerID to the waiting queue once.
func (g *Game) enqueueWaitingLocked(playerID string) {
	for _, id := range g.waiting {
		if id == playerID {
			return
		}
	}
	g.waiting = append(g.waiting, playerID)
}

func (g *Game) dropWaitingLocked(playerID string) {
	for i, id := range g.waiting {
		if id == playerID {
			g.waiting = append(g.waiting[:i], g.waiting[i+1:]...)
			return
		}
	}
}

func (g *Game) dropRespawnsLocked(playerID string) {
	remaining := g.respawns[:0]
	for _, task := range g.respawns {
		if task.playerID != playerID {
			remaining = append(remaining, task)
		}
	}
	g.respawns = remaining
}

// occupiedLocked returns the cells of all spawned players.
func (g *Game) occupiedLocked() []board.Point {
	occupied := make([]board.Point, 0, len(g.players))
	for _, p := range g.players {
		if x, y, ok := p.Position(); ok {
			occupied = append(occupied, board.Point{X: x, Y: y})
		}
	}
	return occupied
}

// playerAtLocked returns the spawned player at (x,y), excluding
// exceptID. Nil when the cell is free.
func (g *Game) playerAtLocked(x, y int, exceptID string) *model.Player {
	for _, p := range g.players {
		if p.ID() == exceptID {
			continue
		}
		if px, py, ok := p.Position(); ok && px == x && py == y {
			return p
		}
	}
	return nil
}

// emitAll publishes events outside the model lock. Subscribers may
// call back into the model without deadlocking.
func (g *Game) emitAll(events []event.Event) {
	for _, ev := range events {
		g.bus.Emit(ev)
	}
}
