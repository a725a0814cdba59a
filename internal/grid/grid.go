// Package grid builds word-search letter grids.
package grid

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	// DefaultSize is the side length of a word-search grid
	DefaultSize = 10
	// MaxAttempts bounds the random placements tried per word
	MaxAttempts = 100
)

var (
	ErrGridSize = errors.New("grid has wrong dimensions")
	ErrGridCell = errors.New("grid cell is not a single uppercase letter")
)

// Direction is a step along which a word is laid out. DX moves across
// columns, DY across rows.
type Direction struct {
	Name string
	DX   int
	DY   int
}

// Directions are the supported placement directions
var Directions = []Direction{
	{Name: "horizontal", DX: 1, DY: 0},
	{Name: "vertical", DX: 0, DY: 1},
	{Name: "diagonal-down-right", DX: 1, DY: 1},
	{Name: "diagonal-up-right", DX: 1, DY: -1},
}

// Placement records where a word sits in the grid
type Placement struct {
	Word      string
	Row       int
	Col       int
	Direction Direction
}

// PartialPlacementWarning reports words that could not be placed
type PartialPlacementWarning struct {
	Dropped []string
}

func (w *PartialPlacementWarning) Error() string {
	return fmt.Sprintf("%d word(s) could not be placed: %s", len(w.Dropped), strings.Join(w.Dropped, ", "))
}

// Result is the outcome of Build
type Result struct {
	Grid    [][]string
	Placed  []Placement
	Dropped []string
}

// Words returns the placed words in placement order
func (r Result) Words() []string {
	words := make([]string, len(r.Placed))
	for i, p := range r.Placed {
		words[i] = p.Word
	}
	return words
}

// Warning returns a non-nil warning when some words were dropped
func (r Result) Warning() *PartialPlacementWarning {
	if len(r.Dropped) == 0 {
		return nil
	}
	return &PartialPlacementWarning{Dropped: r.Dropped}
}

// Normalize uppercases a word and strips everything that is not A-Z
func Normalize(word string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(word) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Build places words into a size x size grid of random uppercase letters.
// Words that do not fit after MaxAttempts tries, or are longer than the
// grid, are reported in Result.Dropped.
func Build(words []string, size int, rng *rand.Rand) Result {
	if size <= 0 {
		size = DefaultSize
	}

	cells := make([][]byte, size)
	for i := range cells {
		cells[i] = make([]byte, size)
	}

	var res Result
	seen := make(map[string]bool, len(words))

	for _, raw := range words {
		word := Normalize(raw)
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true

		if len(word) > size {
			res.Dropped = append(res.Dropped, word)
			continue
		}

		placed := false
		for attempt := 0; attempt < MaxAttempts && !placed; attempt++ {
			dir := Directions[rng.IntN(len(Directions))]
			row, col := rng.IntN(size), rng.IntN(size)
			if !fits(cells, word, row, col, dir) {
				continue
			}
			for i := 0; i < len(word); i++ {
				cells[row+i*dir.DY][col+i*dir.DX] = word[i]
			}
			res.Placed = append(res.Placed, Placement{Word: word, Row: row, Col: col, Direction: dir})
			placed = true
		}

		if !placed {
			res.Dropped = append(res.Dropped, word)
		}
	}

	res.Grid = make([][]string, size)
	for r := range cells {
		res.Grid[r] = make([]string, size)
		for c, b := range cells[r] {
			if b == 0 {
				b = byte('A' + rng.IntN(26))
			}
			res.Grid[r][c] = string(b)
		}
	}

	return res
}

func fits(cells [][]byte, word string, row, col int, dir Direction) bool {
	size := len(cells)
	endRow := row + (len(word)-1)*dir.DY
	endCol := col + (len(word)-1)*dir.DX
	if endRow < 0 || endRow >= size || endCol < 0 || endCol >= size {
		return false
	}
	for i := 0; i < len(word); i++ {
		cell := cells[row+i*dir.DY][col+i*dir.DX]
		if cell != 0 && cell != word[i] {
			return false
		}
	}
	return true
}

// Find locates word along one straight line in one of the supported
// directions
func Find(grid [][]string, word string) (Placement, bool) {
	word = Normalize(word)
	if word == "" {
		return Placement{}, false
	}

	for row := range grid {
		for col := range grid[row] {
			for _, dir := range Directions {
				if matchAt(grid, word, row, col, dir) {
					return Placement{Word: word, Row: row, Col: col, Direction: dir}, true
				}
			}
		}
	}
	return Placement{}, false
}

func matchAt(grid [][]string, word string, row, col int, dir Direction) bool {
	for i := 0; i < len(word); i++ {
		r, c := row+i*dir.DY, col+i*dir.DX
		if r < 0 || r >= len(grid) || c < 0 || c >= len(grid[r]) {
			return false
		}
		if grid[r][c] != string(word[i]) {
			return false
		}
	}
	return true
}

// Validate checks that grid is exactly size x size and every cell holds a
// single uppercase letter
func Validate(grid [][]string, size int) error {
	if len(grid) != size {
		return fmt.Errorf("%w: %d rows, want %d", ErrGridSize, len(grid), size)
	}
	for r, row := range grid {
		if len(row) != size {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrGridSize, r, len(row), size)
		}
		for c, cell := range row {
			if len(cell) != 1 || cell[0] < 'A' || cell[0] > 'Z' {
				return fmt.Errorf("%w: (%d,%d) = %q", ErrGridCell, r, c, cell)
			}
		}
	}
	return nil
}
