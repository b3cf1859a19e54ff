package classify

// DefaultPalette is used for unknown palette names.
const DefaultPalette = "grey_blue"

// Palettes are five-step colour ramps, light to dark.
var Palettes = map[string][]string{
	"grey":      {"#d0d0d0", "#a0a0a0", "#707070", "#404040", "#101010"},
	"blues":     {"#deebf7", "#9ecae1", "#4292c6", "#2171b5", "#08306b"},
	"heat":      {"#ffffb2", "#fecc5c", "#fd8d3c", "#f03b20", "#bd0026"},
	"greens":    {"#edf8e9", "#bae4b3", "#74c476", "#31a354", "#006d2c"},
	"purples":   {"#efedf5", "#bcbddc", "#807dba", "#6a51a3", "#4a1486"},
	"grey_blue": {"#e0e0e0", "#a8c5d8", "#6a9fc0", "#3a7ca5", "#08519c"},
}

// Palette returns the named ramp, falling back to DefaultPalette.
func Palette(name string) []string {
	if p, ok := Palettes[name]; ok {
		return p
	}
	return Palettes[DefaultPalette]
}

// Color returns the palette colour for class index idx, clamped to the ramp.
func Color(palette []string, idx int) string {
	if len(palette) == 0 {
		return ""
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(palette) {
		idx = len(palette) - 1
	}
	return palette[idx]
}
