package settings

import (
	"math"
	"strconv"
	"strings"
)

// Correction records an attribute whose provided value was rejected and
// replaced by its default.
type Correction struct {
	PropName string `json:"propName"`
	Provided string `json:"provided"`
	Applied  string `json:"applied"`
}

// FromAttributes builds a configuration from attribute values keyed by
// property name. Missing attributes take their default silently; invalid
// ones take their default and are reported as corrections.
func FromAttributes(attrs map[string]string) (GameConfig, []Correction) {
	var cfg GameConfig
	var corrections []Correction

	for _, s := range schema {
		value := s.Default
		if provided, ok := attrs[s.PropName]; ok {
			if s.valid(provided) {
				value = provided
			} else {
				corrections = append(corrections, Correction{PropName: s.PropName, Provided: provided, Applied: s.Default})
			}
		}
		cfg.set(s, value)
	}
	return cfg, corrections
}

// Attributes is the inverse of FromAttributes.
func (c GameConfig) Attributes() map[string]string {
	return map[string]string{
		"cols":                  strconv.Itoa(c.Cols),
		"rows":                  strconv.Itoa(c.Rows),
		"population-percentage": strconv.Itoa(c.PopulationPercentage),
		"generation-lifespan":   strconv.Itoa(c.GenerationLifespan),
		"cell-size":             strconv.Itoa(c.CellSize),
		"cell-spacing":          strconv.Itoa(c.CellSpacing),
		"bg-color":              c.BackgroundColor,
		"cell-color":            c.CellColor,
		"dead-cell-color":       c.DeadCellColor,
		"restart-interval":      strconv.Itoa(c.RestartInterval),
		"font-color":            c.FontColor,
		"show-stats":            strconv.FormatBool(c.ShowStats),
		"show-extinction-stats": strconv.FormatBool(c.ShowExtinctionStats),
	}
}

func (s Setting) valid(value string) bool {
	switch s.Type {
	case TypeInteger:
		n, ok := parseInteger(value)
		if !ok {
			return false
		}
		if s.HasMin && n < s.Min {
			return false
		}
		if s.HasMax && n > s.Max {
			return false
		}
		return true
	case TypeBoolean:
		_, ok := parseBoolean(value)
		return ok
	case TypeColor:
		_, err := ParseColor(value)
		return err == nil
	default:
		return true
	}
}

func (c *GameConfig) set(s Setting, value string) {
	n, _ := parseInteger(value)
	b, _ := parseBoolean(value)

	switch s.Field {
	case "cols":
		c.Cols = n
	case "rows":
		c.Rows = n
	case "populationPercentage":
		c.PopulationPercentage = n
	case "generationLifespan":
		c.GenerationLifespan = n
	case "cellSize":
		c.CellSize = n
	case "cellSpacing":
		c.CellSpacing = n
	case "backgroundColor":
		c.BackgroundColor = value
	case "cellColor":
		c.CellColor = value
	case "deadCellColor":
		c.DeadCellColor = value
	case "restartInterval":
		c.RestartInterval = n
	case "fontColor":
		c.FontColor = value
	case "showStats":
		c.ShowStats = b
	case "showExtinctionStats":
		c.ShowExtinctionStats = b
	}
}

// parseInteger accepts any numeric text with an integral value, so "12"
// and "12.0" are both 12.
func parseInteger(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func parseBoolean(value string) (bool, bool) {
	switch strings.ToLower(value) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
