// Package population defines the cell grid evolved by the game engine.
// This package is PURE and must NOT import any infrastructure packages.
package population

import (
	"fmt"
	"strings"
)

const (
	aliveRune = '#'
	deadRune  = '.'
)

// Population is a rectangular grid of cells indexed [row][col].
// A true cell is alive.
type Population [][]bool

// New returns an all-dead population with the given dimensions.
func New(rows, cols int) Population {
	p := make(Population, rows)
	for r := range p {
		p[r] = make([]bool, cols)
	}
	return p
}

// Rows returns the number of rows.
func (p Population) Rows() int { return len(p) }

// Cols returns the number of columns.
func (p Population) Cols() int {
	if len(p) == 0 {
		return 0
	}
	return len(p[0])
}

// LiveCount returns the number of live cells.
func (p Population) LiveCount() int {
	n := 0
	for _, row := range p {
		for _, alive := range row {
			if alive {
				n++
			}
		}
	}
	return n
}

// IsExtinct reports whether no cell is alive.
func (p Population) IsExtinct() bool {
	for _, row := range p {
		for _, alive := range row {
			if alive {
				return false
			}
		}
	}
	return true
}

// LiveNeighbors counts the live cells among the up to 8 cells adjacent to
// (row, col). Positions outside the grid do not count.
func (p Population) LiveNeighbors(row, col int) int {
	n := 0
	for dr := -1; dr <= 1; dr++ {
		r := row + dr
		if r < 0 || r >= len(p) {
			continue
		}
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			c := col + dc
			if c < 0 || c >= len(p[r]) {
				continue
			}
			if p[r][c] {
				n++
			}
		}
	}
	return n
}

// Next computes the following generation.
// A live cell survives with 2 or 3 live neighbors; a dead cell with exactly
// 3 live neighbors becomes alive. The receiver is not modified.
func (p Population) Next() Population {
	next := make(Population, len(p))
	for r := range p {
		next[r] = make([]bool, len(p[r]))
		for c := range p[r] {
			n := p.LiveNeighbors(r, c)
			if p[r][c] {
				next[r][c] = n == 2 || n == 3
			} else {
				next[r][c] = n == 3
			}
		}
	}
	return next
}

// Clone returns a deep copy.
func (p Population) Clone() Population {
	cp := make(Population, len(p))
	for r := range p {
		cp[r] = append([]bool(nil), p[r]...)
	}
	return cp
}

// Equal reports whether both grids have the same shape and cells.
func (p Population) Equal(other Population) bool {
	if len(p) != len(other) {
		return false
	}
	for r := range p {
		if len(p[r]) != len(other[r]) {
			return false
		}
		for c := range p[r] {
			if p[r][c] != other[r][c] {
				return false
			}
		}
	}
	return true
}

// String renders the grid one line per row, '#' for alive and '.' for dead.
func (p Population) String() string {
	var b strings.Builder
	b.Grow(len(p) * (p.Cols() + 1))
	for r, row := range p {
		if r > 0 {
			b.WriteByte('\n')
		}
		for _, alive := range row {
			if alive {
				b.WriteByte(aliveRune)
			} else {
				b.WriteByte(deadRune)
			}
		}
	}
	return b.String()
}

// Parse decodes the text form produced by String.
// Every line must have the same width.
func Parse(s string) (Population, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Population{}, nil
	}
	lines := strings.Split(s, "\n")
	p := make(Population, len(lines))
	cols := -1
	for r, line := range lines {
		line = strings.TrimRight(line, "\r")
		if cols == -1 {
			cols = len(line)
		} else if len(line) != cols {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", r, len(line), cols)
		}
		p[r] = make([]bool, cols)
		for c := 0; c < len(line); c++ {
			switch line[c] {
			case aliveRune:
				p[r][c] = true
			case deadRune:
			default:
				return nil, fmt.Errorf("row %d col %d: unexpected cell %q", r, c, line[c])
			}
		}
	}
	return p, nil
}
