package game

// Collision types carried in bump events.
const (
	CollisionWall   = "wall"
	CollisionPlayer = "player"
	CollisionBounds = "bounds"
)

// BumpPayload describes a rejected move.
type BumpPayload struct {
	PlayerID      string
	AttemptedX    int
	AttemptedY    int
	CurrentX      int
	CurrentY      int
	CollisionType string
}

// SpawnPayload describes a player placed at a spawn point.
type SpawnPayload struct {
	PlayerID   string
	X          int
	Y          int
	SpawnIndex int
}

// PlayerJoinedPayload announces a player's first spawn.
type PlayerJoinedPayload struct {
	PlayerID   string
	PlayerName string
}

// PlayerLeftPayload announces a player's removal.
type PlayerLeftPayload struct {
	PlayerID string
	Reason   RemoveReason
}

// ScoreChangePayload announces a killer's new score.
type ScoreChangePayload struct {
	PlayerID string
	Score    int
	VictimID string
}

// GameStateChangePayload announces a running-state transition.
type GameStateChangePayload struct {
	Running bool
}
