// Package settings defines the game configuration record and the schema
// used to build it from user supplied attributes.
// This package is PURE and must NOT import any infrastructure packages.
package settings

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSetting is returned when a configuration value breaks the engine contract.
var ErrInvalidSetting = errors.New("invalid setting")

// Size limits. Each field is bounded on its own and the combination is
// bounded again, since a grid or canvas is allocated per game.
const (
	MaxCols        = 4096
	MaxRows        = 4096
	MaxCellSize    = 64
	MaxCellSpacing = 32
	// MaxCells caps cols*rows.
	MaxCells = 4 << 20
	// MaxCanvasPixels caps the rendered frame, stats bar included.
	MaxCanvasPixels = 16 << 20
	// StatBarHeight is the height in pixels of the generation counter bar.
	StatBarHeight = 25
)

// SettingType describes how an attribute value is validated and cast.
type SettingType string

const (
	TypeInteger SettingType = "integer"
	TypeBoolean SettingType = "boolean"
	TypeColor   SettingType = "color"
)

// GameConfig holds every option of a game.
// Only Cols, Rows, PopulationPercentage and GenerationLifespan matter to the engine;
// the rest drive rendering and the host.
type GameConfig struct {
	Cols                 int    `json:"cols"`
	Rows                 int    `json:"rows"`
	PopulationPercentage int    `json:"populationPercentage"`
	GenerationLifespan   int    `json:"generationLifespan"` // ms between generations
	CellSize             int    `json:"cellSize"`
	CellSpacing          int    `json:"cellSpacing"`
	BackgroundColor      string `json:"backgroundColor"`
	CellColor            string `json:"cellColor"`
	DeadCellColor        string `json:"deadCellColor"`
	RestartInterval      int    `json:"restartInterval"` // ms before a new game after extinction, 0 disables
	FontColor            string `json:"fontColor"`
	ShowStats            bool   `json:"showStats"`
	ShowExtinctionStats  bool   `json:"showExtinctionStats"`
}

// Lifespan returns the delay between two generations.
func (c GameConfig) Lifespan() time.Duration {
	return time.Duration(c.GenerationLifespan) * time.Millisecond
}

// RestartDelay returns the delay before a new game once extinction is reached.
func (c GameConfig) RestartDelay() time.Duration {
	return time.Duration(c.RestartInterval) * time.Millisecond
}

// CanvasSize returns the rendered frame dimensions in pixels.
func (c GameConfig) CanvasSize() (width, height int) {
	width = c.Cols*(c.CellSize+c.CellSpacing) + c.CellSpacing
	height = c.Rows*(c.CellSize+c.CellSpacing) + c.CellSpacing
	if c.ShowStats {
		height += StatBarHeight
	}
	return width, height
}

// Validate checks the values the engine and the renderer trust without
// re-validating, including the size of what they allocate.
func (c GameConfig) Validate() error {
	switch {
	case c.Cols <= 0 || c.Cols > MaxCols:
		return fmt.Errorf("%w: cols must be within [1,%d], got %d", ErrInvalidSetting, MaxCols, c.Cols)
	case c.Rows <= 0 || c.Rows > MaxRows:
		return fmt.Errorf("%w: rows must be within [1,%d], got %d", ErrInvalidSetting, MaxRows, c.Rows)
	case c.PopulationPercentage < 0 || c.PopulationPercentage > 100:
		return fmt.Errorf("%w: population percentage must be within [0,100], got %d", ErrInvalidSetting, c.PopulationPercentage)
	case c.GenerationLifespan < 0:
		return fmt.Errorf("%w: generation lifespan must not be negative, got %d", ErrInvalidSetting, c.GenerationLifespan)
	case c.CellSize <= 0 || c.CellSize > MaxCellSize:
		return fmt.Errorf("%w: cell size must be within [1,%d], got %d", ErrInvalidSetting, MaxCellSize, c.CellSize)
	case c.CellSpacing < 0 || c.CellSpacing > MaxCellSpacing:
		return fmt.Errorf("%w: cell spacing must be within [0,%d], got %d", ErrInvalidSetting, MaxCellSpacing, c.CellSpacing)
	case c.Cols*c.Rows > MaxCells:
		return fmt.Errorf("%w: %dx%d grid exceeds %d cells", ErrInvalidSetting, c.Cols, c.Rows, MaxCells)
	}
	// Fields are bounded above, so the product fits in an int.
	if w, h := c.CanvasSize(); w*h > MaxCanvasPixels {
		return fmt.Errorf("%w: %dx%d canvas exceeds %d pixels", ErrInvalidSetting, w, h, MaxCanvasPixels)
	}
	return nil
}

// Setting describes one configurable attribute.
type Setting struct {
	Field    string // GameConfig JSON name
	PropName string // attribute name supplied by users
	Type     SettingType
	Default  string
	Min      int
	Max      int
	HasMin   bool
	HasMax   bool
	Usage    string
}

var schema = []Setting{
	{Field: "cols", PropName: "cols", Type: TypeInteger, Default: "480", Min: 1, Max: MaxCols, HasMin: true, HasMax: true, Usage: "number of columns"},
	{Field: "rows", PropName: "rows", Type: TypeInteger, Default: "360", Min: 1, Max: MaxRows, HasMin: true, HasMax: true, Usage: "number of rows"},
	{Field: "populationPercentage", PropName: "population-percentage", Type: TypeInteger, Default: "50", Min: 0, Max: 100, HasMin: true, HasMax: true, Usage: "percentage of cells alive at start"},
	{Field: "generationLifespan", PropName: "generation-lifespan", Type: TypeInteger, Default: "1000", Min: 0, HasMin: true, Usage: "time between generations (ms)"},
	{Field: "cellSize", PropName: "cell-size", Type: TypeInteger, Default: "2", Min: 1, Max: MaxCellSize, HasMin: true, HasMax: true, Usage: "cell width and height in pixels"},
	{Field: "cellSpacing", PropName: "cell-spacing", Type: TypeInteger, Default: "0", Min: 0, Max: MaxCellSpacing, HasMin: true, HasMax: true, Usage: "spacing between cells in pixels"},
	{Field: "backgroundColor", PropName: "bg-color", Type: TypeColor, Default: "#fff", Usage: "background color"},
	{Field: "cellColor", PropName: "cell-color", Type: TypeColor, Default: "#FFFF00", Usage: "live cell color"},
	{Field: "deadCellColor", PropName: "dead-cell-color", Type: TypeColor, Default: "#C0C0C0", Usage: "dead cell color"},
	{Field: "restartInterval", PropName: "restart-interval", Type: TypeInteger, Default: "1000", Min: 0, HasMin: true, Usage: "time before a new game after extinction (ms), 0 disables"},
	{Field: "fontColor", PropName: "font-color", Type: TypeColor, Default: "red", Usage: "font color for stats"},
	{Field: "showStats", PropName: "show-stats", Type: TypeBoolean, Default: "false", Usage: "show the generation counter"},
	{Field: "showExtinctionStats", PropName: "show-extinction-stats", Type: TypeBoolean, Default: "false", Usage: "show the extinction panel"},
}

// Schema returns the attribute schema in declaration order.
func Schema() []Setting {
	out := make([]Setting, len(schema))
	copy(out, schema)
	return out
}

// Default returns the configuration used when no attribute is provided.
func Default() GameConfig {
	cfg, _ := FromAttributes(nil)
	return cfg
}
