package population

// RandomSource yields uniform integers in [0, n). *rand.Rand from
// math/rand/v2 satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// SeedCount returns how many cells start alive for the given percentage.
func SeedCount(rows, cols, percentage int) int {
	return rows * cols * percentage / 100
}

// Seed builds a random population in which exactly SeedCount cells are
// alive. The live cells are placed by a Fisher-Yates shuffle of a flat
// array which is then cut into rows of cols cells.
func Seed(rows, cols, percentage int, rng RandomSource) Population {
	total := rows * cols
	live := SeedCount(rows, cols, percentage)

	cells := make([]bool, total)
	for i := 0; i < live; i++ {
		cells[i] = true
	}

	for i := total - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cells[i], cells[j] = cells[j], cells[i]
	}

	p := make(Population, rows)
	for r := 0; r < rows; r++ {
		p[r] = cells[r*cols : (r+1)*cols : (r+1)*cols]
	}
	return p
}
