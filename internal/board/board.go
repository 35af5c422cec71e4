// Package board loads the static arena grid and answers read-only
// spatial queries. The grid is immutable after Load.
package board

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Cell codes as stored in the board file.
const (
	CellEmpty = 0
	CellWall  = 1
	CellSpawn = 2
)

// Point is a zero-based board coordinate (x columnar, y row-wise).
type Point struct {
	X int
	Y int
}

// Board is the immutable 2D arena grid.
type Board struct {
	width       int
	height      int
	cells       []int // row-major, len == width*height
	spawnPoints []Point
}

// rleEntry is one run-length-encoded cell run in the board file.
type rleEntry struct {
	Entity int  `json:"entity"`
	Repeat *int `json:"repeat,omitempty"`
}

// dimensions is the sibling <base>.config.json file.
type dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Load reads a board file and its sibling dimensions file.
// The board file is a JSON array of {"entity":0|1|2,"repeat"?:N} runs
// totalling width*height cells in row-major order.
func Load(path string) (*Board, error) {
	dimsPath := dimsPath(path)

	dimsData, err := os.ReadFile(dimsPath)
	if err != nil {
		return nil, fmt.Errorf("reading board dimensions %s: %w", dimsPath, err)
	}
	var dims dimensions
	if err := json.Unmarshal(dimsData, &dims); err != nil {
		return nil, fmt.Errorf("parsing board dimensions %s: %w", dimsPath, err)
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		return nil, fmt.Errorf("board %s: invalid dimensions %dx%d", path, dims.Width, dims.Height)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading board %s: %w", path, err)
	}
	var runs []rleEntry
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("parsing board %s: %w", path, err)
	}

	total := dims.Width * dims.Height
	b := &Board{
		width:  dims.Width,
		height: dims.Height,
		cells:  make([]int, 0, total),
	}

	for i, run := range runs {
		if run.Entity != CellEmpty && run.Entity != CellWall && run.Entity != CellSpawn {
			return nil, fmt.Errorf("board %s: run %d has unknown cell code %d", path, i, run.Entity)
		}
		repeat := 1
		if run.Repeat != nil {
			repeat = *run.Repeat
		}
		if repeat < 1 {
			return nil, fmt.Errorf("board %s: run %d has invalid repeat %d", path, i, repeat)
		}
		for n := 0; n < repeat; n++ {
			b.cells = append(b.cells, run.Entity)
		}
		if len(b.cells) > total {
			return nil, fmt.Errorf("board %s: cell count exceeds %dx%d", path, dims.Width, dims.Height)
		}
	}

	if len(b.cells) != total {
		return nil, fmt.Errorf("board %s: %d cells, want %d (%dx%d)", path, len(b.cells), total, dims.Width, dims.Height)
	}

	for i, c := range b.cells {
		if c == CellSpawn {
			b.spawnPoints = append(b.spawnPoints, Point{X: i % b.width, Y: i / b.width})
		}
	}

	return b, nil
}

// FromCells builds a board from an explicit row-major cell slice.
// Used by tests and board authoring tools; Load is the production path.
func FromCells(width, height int, cells []int) (*Board, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if len(cells) != width*height {
		return nil, fmt.Errorf("%d cells, want %d (%dx%d)", len(cells), width*height, width, height)
	}
	b := &Board{width: width, height: height, cells: cells}
	for i, c := range cells {
		if c != CellEmpty && c != CellWall && c != CellSpawn {
			return nil, fmt.Errorf("cell %d has unknown code %d", i, c)
		}
		if c == CellSpawn {
			b.spawnPoints = append(b.spawnPoints, Point{X: i % width, Y: i / width})
		}
	}
	return b, nil
}

// dimsPath derives the sibling dimensions file: <base>.config.json.
func dimsPath(path string) string {
	base := strings.TrimSuffix(path, ".json")
	return base + ".config.json"
}

// Width returns the board width in cells.
func (b *Board) Width() int { return b.width }

// Height returns the board height in cells.
func (b *Board) Height() int { return b.height }

// InBounds reports whether (x,y) lies on the board.
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// IsWall reports whether (x,y) is in bounds and a wall cell.
func (b *Board) IsWall(x, y int) bool {
	if !b.InBounds(x, y) {
		return false
	}
	return b.cells[y*b.width+x] == CellWall
}

// SpawnPoints returns the declared spawn points in row-major order.
// Callers must not mutate the returned slice.
func (b *Board) SpawnPoints() []Point {
	return b.spawnPoints
}

// Rows renders the grid row-major for snapshot serialization.
// Spawn cells render as empty: spawn markers are server-side only.
func (b *Board) Rows() [][]int {
	rows := make([][]int, b.height)
	for y := 0; y < b.height; y++ {
		row := make([]int, b.width)
		for x := 0; x < b.width; x++ {
			c := b.cells[y*b.width+x]
			if c == CellSpawn {
				c = CellEmpty
			}
			row[x] = c
		}
		rows[y] = row
	}
	return rows
}
