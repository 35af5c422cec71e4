package model

// Bullet is a projectile in flight. Exactly one of DX/DY is non-zero.
// Bullets reference their owner by id, never by pointer, and exist
// only between fire and collision/out-of-bounds.
type Bullet struct {
	ID       string
	PlayerID string
	X, Y     int
	DX, DY   int
}

// Advance returns the cell the bullet moves into this tick.
func (b *Bullet) Advance() (nx, ny int) {
	return b.X + b.DX, b.Y + b.DY
}
