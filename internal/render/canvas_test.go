package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/MRamiBalles/conway-life/internal/domain/population"
	"github.com/MRamiBalles/conway-life/internal/domain/settings"
)

var (
	white  = color.RGBA{255, 255, 255, 255}
	yellow = color.RGBA{255, 255, 0, 255}
	grey   = color.RGBA{192, 192, 192, 255}
	marker = color.RGBA{1, 2, 3, 255}
)

func smallConfig() settings.GameConfig {
	cfg := settings.Default()
	cfg.Cols = 3
	cfg.Rows = 2
	cfg.CellSize = 2
	cfg.CellSpacing = 1
	return cfg
}

func pixel(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func TestSize(t *testing.T) {
	cfg := smallConfig()
	if w, h := Size(cfg); w != 10 || h != 7 {
		t.Errorf("Expected 10x7, got %dx%d", w, h)
	}
	cfg.ShowStats = true
	if _, h := Size(cfg); h != 7+StatBarHeight {
		t.Errorf("Expected stats bar to add %d px, got height %d", StatBarHeight, h)
	}
}

func TestUpdatePaintsCells(t *testing.T) {
	c := NewCanvas(smallConfig())
	p := population.New(2, 3)
	p[0][0] = true

	c.Update(p)
	img := c.Image()

	if got := pixel(img, 1, 1); got != yellow {
		t.Errorf("Expected live cell color at (1,1), got %v", got)
	}
	if got := pixel(img, 4, 1); got != grey {
		t.Errorf("Expected dead cell color at (4,1), got %v", got)
	}
	if got := pixel(img, 0, 0); got != white {
		t.Errorf("Expected spacing to keep background, got %v", got)
	}
}

func TestUpdateOnlyRepaintsChangedCells(t *testing.T) {
	c := NewCanvas(smallConfig())
	first := population.New(2, 3)
	first[0][0] = true
	c.Update(first)

	// Scribble over cell (1,2), which stays dead, and cell (0,0), which dies.
	c.img.SetRGBA(7, 4, marker)
	c.img.SetRGBA(1, 1, marker)

	second := population.New(2, 3)
	second[0][1] = true
	c.Update(second)
	img := c.Image()

	if got := pixel(img, 7, 4); got != marker {
		t.Errorf("Unchanged cell was repainted: %v", got)
	}
	if got := pixel(img, 1, 1); got != grey {
		t.Errorf("Dying cell was not repainted dead: %v", got)
	}
	if got := pixel(img, 4, 1); got != yellow {
		t.Errorf("Born cell was not repainted live: %v", got)
	}
}

func TestClearForgetsPreviousGeneration(t *testing.T) {
	c := NewCanvas(smallConfig())
	p := population.New(2, 3)
	c.Update(p)
	c.Clear()

	if got := pixel(c.Image(), 1, 1); got != white {
		t.Errorf("Expected background after Clear, got %v", got)
	}
	c.Update(p)
	if got := pixel(c.Image(), 1, 1); got != grey {
		t.Errorf("Expected full repaint after Clear, got %v", got)
	}
}

func hasColor(img *image.RGBA, r image.Rectangle, want color.RGBA) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y) == want {
				return true
			}
		}
	}
	return false
}

func TestShowStatsDrawsIntoBar(t *testing.T) {
	cfg := smallConfig()
	cfg.Cols = 40
	cfg.ShowStats = true
	c := NewCanvas(cfg)
	c.ShowStats(12)

	img := c.Image()
	b := img.Bounds()
	red := color.RGBA{255, 0, 0, 255}
	if !hasColor(img, image.Rect(0, b.Dy()-StatBarHeight, b.Dx(), b.Dy()), red) {
		t.Errorf("Expected stats text in the bar")
	}
	if hasColor(img, image.Rect(0, 0, b.Dx(), b.Dy()-StatBarHeight), red) {
		t.Errorf("Stats text leaked into the grid")
	}
}

func TestShowExtinctionStats(t *testing.T) {
	cfg := smallConfig()
	cfg.Cols = 100
	cfg.Rows = 40
	c := NewCanvas(cfg)
	c.Update(population.New(40, 100))
	c.ShowExtinctionStats(321)

	img := c.Image()
	b := img.Bounds()
	mid := b.Dy() / 2
	red := color.RGBA{255, 0, 0, 255}
	if !hasColor(img, image.Rect(0, mid-panelHeight/2, b.Dx(), mid), red) {
		t.Errorf("Expected the extinction title above the middle")
	}
	if !hasColor(img, image.Rect(0, mid, b.Dx(), mid+panelHeight/2), red) {
		t.Errorf("Expected the generation count below the middle")
	}
}

func TestEncodePNG(t *testing.T) {
	c := NewCanvas(smallConfig())
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Invalid PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 7 {
		t.Errorf("Expected 10x7 PNG, got %v", b)
	}
}
