package protocol

// GameState is the complete, self-contained world snapshot used as the
// STATE_UPDATE broadcast payload and in CONNECT responses.
type GameState struct {
	Board   BoardState     `json:"board"`
	Players []PlayerState  `json:"players"`
	Bullets []BulletState  `json:"bullets"`
	Scores  map[string]int `json:"scores"`
	Running bool           `json:"running"`
}

// BoardState carries the static grid, row-major.
type BoardState struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Grid   [][]int `json:"grid"`
}

// PlayerState is one player's entry in the snapshot. X and Y are null
// while the player waits for a spawn point. Velocities are
// cells-per-second derived from the last applied move.
type PlayerState struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	X          *int    `json:"x"`
	Y          *int    `json:"y"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
}

// BulletState is one projectile's entry in the snapshot.
type BulletState struct {
	BulletID string `json:"bulletId"`
	PlayerID string `json:"playerId"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	DX       int    `json:"dx"`
	DY       int    `json:"dy"`
}
