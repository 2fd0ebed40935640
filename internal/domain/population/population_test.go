package population

import (
	"math/rand/v2"
	"testing"
)

func mustParse(t *testing.T, s string) Population {
	t.Helper()
	p, err := Parse(s)
	if err != nil {
		t.Fatalf("parse pattern: %v", err)
	}
	return p
}

func TestBlockIsStillLife(t *testing.T) {
	block := mustParse(t, `
....
.##.
.##.
....`)

	next := block.Next()
	if !next.Equal(block) {
		t.Errorf("Expected block to be stable, got:\n%s", next)
	}
}

func TestBlinkerOscillation(t *testing.T) {
	horizontal := mustParse(t, `
.....
.....
.###.
.....
.....`)
	vertical := mustParse(t, `
.....
..#..
..#..
..#..
.....`)

	step1 := horizontal.Next()
	if !step1.Equal(vertical) {
		t.Fatalf("Expected vertical blinker after one step, got:\n%s", step1)
	}

	step2 := step1.Next()
	if !step2.Equal(horizontal) {
		t.Fatalf("Expected horizontal blinker after two steps, got:\n%s", step2)
	}
}

func TestNoWraparound(t *testing.T) {
	// On a torus the top and bottom cells would see each other.
	p := mustParse(t, `
#...
#...
#...`)

	next := p.Next()
	want := mustParse(t, `
....
##..
....`)
	if !next.Equal(want) {
		t.Errorf("Expected border cells to see no wrapped neighbors, got:\n%s", next)
	}
}

func TestSingleCellGrid(t *testing.T) {
	alive := Population{{true}}
	if got := alive.Next(); got[0][0] {
		t.Errorf("Expected live singleton to die")
	}

	dead := Population{{false}}
	if got := dead.Next(); got[0][0] {
		t.Errorf("Expected dead singleton to stay dead")
	}
}

func TestNextIsLocal(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	base := Seed(12, 12, 40, rng)
	want := base.Next()[5][5]

	for r := 0; r < 12; r++ {
		for c := 0; c < 12; c++ {
			if r >= 4 && r <= 6 && c >= 4 && c <= 6 {
				continue
			}
			mutated := base.Clone()
			mutated[r][c] = !mutated[r][c]
			if got := mutated.Next()[5][5]; got != want {
				t.Fatalf("Flipping (%d,%d) changed cell (5,5): got %v, want %v", r, c, got, want)
			}
		}
	}
}

func TestNextDoesNotMutateInput(t *testing.T) {
	p := mustParse(t, `
.#.
.#.
.#.`)
	before := p.Clone()
	_ = p.Next()
	if !p.Equal(before) {
		t.Errorf("Next modified its receiver")
	}
}

func TestExtinctionIsPermanent(t *testing.T) {
	dead := New(6, 4)
	if !dead.IsExtinct() {
		t.Fatalf("Expected all-dead grid to be extinct")
	}
	if !dead.Next().IsExtinct() {
		t.Errorf("Expected successor of an extinct grid to be extinct")
	}

	lonely := mustParse(t, `
...
.#.
...`)
	if lonely.IsExtinct() {
		t.Errorf("Grid with a live cell reported extinct")
	}
	if !lonely.Next().IsExtinct() {
		t.Errorf("Expected isolated cell to die out")
	}
}

func TestSeedCounts(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		percentage int
		want       int
	}{
		{"thirty percent", 10, 10, 30, 30},
		{"empty", 10, 10, 0, 0},
		{"full", 10, 10, 100, 100},
		{"rounds down", 3, 3, 50, 4},
		{"wide", 1, 7, 15, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(1, 2))
			p := Seed(tt.rows, tt.cols, tt.percentage, rng)

			if p.Rows() != tt.rows || p.Cols() != tt.cols {
				t.Fatalf("Expected %dx%d grid, got %dx%d", tt.rows, tt.cols, p.Rows(), p.Cols())
			}
			for r, row := range p {
				if len(row) != tt.cols {
					t.Fatalf("Row %d has %d cells, expected %d", r, len(row), tt.cols)
				}
			}
			if got := p.LiveCount(); got != tt.want {
				t.Errorf("Expected %d live cells, got %d", tt.want, got)
			}
		})
	}
}

func TestSeedIsReproducibleWithSameSource(t *testing.T) {
	a := Seed(20, 30, 35, rand.New(rand.NewPCG(42, 0)))
	b := Seed(20, 30, 35, rand.New(rand.NewPCG(42, 0)))
	if !a.Equal(b) {
		t.Errorf("Expected identical seeds from identical sources")
	}

	c := Seed(20, 30, 35, rand.New(rand.NewPCG(43, 0)))
	if a.Equal(c) {
		t.Errorf("Expected different sources to place cells differently")
	}
}

func TestSeedRowsDoNotAlias(t *testing.T) {
	p := Seed(3, 3, 0, rand.New(rand.NewPCG(1, 1)))
	p[0] = append(p[0], true)
	if p[1][0] {
		t.Errorf("Appending to row 0 leaked into row 1")
	}
}

func TestParseRejectsRaggedRows(t *testing.T) {
	if _, err := Parse("##\n#"); err == nil {
		t.Errorf("Expected error for rows of different widths")
	}
	if _, err := Parse("#x"); err == nil {
		t.Errorf("Expected error for unknown cell rune")
	}
}

func TestStringParseRoundTrip(t *testing.T) {
	p := Seed(5, 8, 50, rand.New(rand.NewPCG(3, 3)))
	back, err := Parse(p.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !back.Equal(p) {
		t.Errorf("Round trip changed the grid:\n%s\nvs\n%s", p, back)
	}
}
