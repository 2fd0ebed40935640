// Package render paints generations onto an in-memory canvas.
//
// The canvas only repaints cells that changed since the previous generation,
// so the frame after a generation is the frame before it plus a diff.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MRamiBalles/conway-life/internal/domain/population"
	"github.com/MRamiBalles/conway-life/internal/domain/settings"
)

const (
	StatBarHeight = settings.StatBarHeight
	textOffset    = 4
	panelHeight   = 100
	titleScale    = 2
)

// Canvas is a raster of the grid plus an optional stats bar.
type Canvas struct {
	mu sync.Mutex

	cfg  settings.GameConfig
	img  *image.RGBA
	face font.Face

	background color.RGBA
	live       color.RGBA
	dead       color.RGBA
	text       color.RGBA

	previous population.Population
}

// Size returns the canvas dimensions for a configuration.
func Size(cfg settings.GameConfig) (width, height int) {
	return cfg.CanvasSize()
}

// NewCanvas allocates a cleared canvas sized for cfg.
func NewCanvas(cfg settings.GameConfig) *Canvas {
	w, h := Size(cfg)
	c := &Canvas{
		cfg:        cfg,
		img:        image.NewRGBA(image.Rect(0, 0, w, h)),
		face:       basicfont.Face7x13,
		background: settings.MustParseColor(cfg.BackgroundColor),
		live:       settings.MustParseColor(cfg.CellColor),
		dead:       settings.MustParseColor(cfg.DeadCellColor),
		text:       settings.MustParseColor(cfg.FontColor),
	}
	c.clear()
	return c
}

// Clear paints the background and forgets the previous generation.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear()
}

func (c *Canvas) clear() {
	c.previous = nil
	c.fill(c.img.Bounds(), c.background)
}

// Update paints the cells of p that differ from the previous generation.
// The first generation after Clear is painted in full.
func (c *Canvas) Update(p population.Population) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.previous
	if prev != nil && (prev.Rows() != p.Rows() || prev.Cols() != p.Cols()) {
		prev = nil
	}

	for row := range p {
		for col, alive := range p[row] {
			if prev != nil && prev[row][col] == alive {
				continue
			}
			if alive {
				c.fill(c.cellRect(row, col), c.live)
			} else {
				c.fill(c.cellRect(row, col), c.dead)
			}
		}
	}
	c.previous = p
}

// ShowStats writes the generation count into the stats bar.
func (c *Canvas) ShowStats(generationCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.img.Bounds()
	c.fill(image.Rect(0, b.Dy()-StatBarHeight, b.Dx(), b.Dy()), c.background)
	c.drawString("Generation: "+strconv.Itoa(generationCount), textOffset, b.Dy()-textOffset)
}

// ShowExtinctionStats paints a centered panel announcing extinction.
func (c *Canvas) ShowExtinctionStats(generationCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.img.Bounds()
	mid := b.Dy() / 2
	c.fill(image.Rect(0, mid-panelHeight/2, b.Dx(), mid+panelHeight/2), c.background)

	c.drawScaledCentered("Extinction reached", mid, titleScale)
	stat := "Generation count: " + strconv.Itoa(generationCount)
	width := font.MeasureString(c.face, stat).Round()
	c.drawString(stat, (b.Dx()-width)/2, mid+35)
}

// EncodePNG writes the current frame.
func (c *Canvas) EncodePNG(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return png.Encode(w, c.img)
}

// Image returns a copy of the current frame.
func (c *Canvas) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := image.NewRGBA(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out
}

func (c *Canvas) cellRect(row, col int) image.Rectangle {
	distance := c.cfg.CellSize + c.cfg.CellSpacing
	x := c.cfg.CellSpacing + col*distance
	y := c.cfg.CellSpacing + row*distance
	return image.Rect(x, y, x+c.cfg.CellSize, y+c.cfg.CellSize)
}

func (c *Canvas) fill(r image.Rectangle, col color.RGBA) {
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Src)
}

// drawString draws s with its baseline at y.
func (c *Canvas) drawString(s string, x, y int) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(c.text),
		Face: c.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawScaledCentered draws s enlarged by scale, horizontally centered, with
// its baseline at y.
func (c *Canvas) drawScaledCentered(s string, y, scale int) {
	metrics := c.face.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := metrics.Height.Ceil()
	width := font.MeasureString(c.face, s).Ceil()

	glyphs := image.NewRGBA(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c.text),
		Face: c.face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(s)

	x := (c.img.Bounds().Dx() - width*scale) / 2
	top := y - ascent*scale
	dst := image.Rect(x, top, x+width*scale, top+height*scale)
	xdraw.NearestNeighbor.Scale(c.img, dst, glyphs, glyphs.Bounds(), xdraw.Over, nil)
}
