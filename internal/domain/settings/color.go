package settings

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ParseColor converts a CSS color to RGBA. It accepts #rgb, #rgba,
// #rrggbb, #rrggbbaa, rgb(), rgba(), "transparent" and the CSS named colors.
func ParseColor(s string) (color.RGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return color.RGBA{}, fmt.Errorf("%w: empty color", ErrInvalidSetting)
	case v == "transparent":
		return color.RGBA{}, nil
	case strings.HasPrefix(v, "#"):
		return parseHexColor(v[1:])
	case strings.HasPrefix(v, "rgba(") || strings.HasPrefix(v, "rgb("):
		return parseFunctionalColor(v)
	}

	if c, ok := colornames.Map[v]; ok {
		return c, nil
	}
	return color.RGBA{}, fmt.Errorf("%w: unknown color %q", ErrInvalidSetting, s)
}

// MustParseColor is ParseColor for values already validated by FromAttributes.
// It falls back to opaque black.
func MustParseColor(s string) color.RGBA {
	c, err := ParseColor(s)
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return c
}

func parseHexColor(hex string) (color.RGBA, error) {
	var digits []uint8
	for i := 0; i < len(hex); i++ {
		d, ok := hexDigit(hex[i])
		if !ok {
			return color.RGBA{}, fmt.Errorf("%w: bad hex color #%s", ErrInvalidSetting, hex)
		}
		digits = append(digits, d)
	}

	switch len(digits) {
	case 3, 4:
		c := color.RGBA{R: digits[0] * 17, G: digits[1] * 17, B: digits[2] * 17, A: 0xff}
		if len(digits) == 4 {
			c.A = digits[3] * 17
		}
		return c, nil
	case 6, 8:
		c := color.RGBA{
			R: digits[0]<<4 | digits[1],
			G: digits[2]<<4 | digits[3],
			B: digits[4]<<4 | digits[5],
			A: 0xff,
		}
		if len(digits) == 8 {
			c.A = digits[6]<<4 | digits[7]
		}
		return c, nil
	}
	return color.RGBA{}, fmt.Errorf("%w: bad hex color length #%s", ErrInvalidSetting, hex)
}

func hexDigit(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}

func parseFunctionalColor(v string) (color.RGBA, error) {
	open := strings.IndexByte(v, '(')
	if !strings.HasSuffix(v, ")") {
		return color.RGBA{}, fmt.Errorf("%w: unterminated color %q", ErrInvalidSetting, v)
	}
	name := v[:open]
	args := strings.Split(v[open+1:len(v)-1], ",")

	want := 3
	if name == "rgba" {
		want = 4
	}
	if len(args) != want {
		return color.RGBA{}, fmt.Errorf("%w: %s expects %d components", ErrInvalidSetting, name, want)
	}

	var channels [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(args[i]))
		if err != nil || n < 0 || n > 255 {
			return color.RGBA{}, fmt.Errorf("%w: bad %s component %q", ErrInvalidSetting, name, args[i])
		}
		channels[i] = uint8(n)
	}

	alpha := uint8(0xff)
	if want == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(args[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.RGBA{}, fmt.Errorf("%w: bad alpha %q", ErrInvalidSetting, args[3])
		}
		alpha = uint8(a*255 + 0.5)
	}

	// color.RGBA is alpha-premultiplied.
	c := color.NRGBA{R: channels[0], G: channels[1], B: channels[2], A: alpha}
	r, g, b, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}, nil
}
