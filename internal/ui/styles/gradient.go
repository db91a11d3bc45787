package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/uniseg"
)

// neutral stands in for colors that are not #rrggbb, such as ANSI indexes.
var neutral = colorful.Color{R: 128.0 / 255, G: 128.0 / 255, B: 128.0 / 255}

// ApplyBoldGradient renders text in bold, blending from one color to the
// other across its grapheme clusters. Used for the station name and the
// track title.
func ApplyBoldGradient(text string, from, to lipgloss.Color) string {
	var clusters []string
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		clusters = append(clusters, gr.Str())
	}
	return paint(clusters, true, from, to)
}

// GradientFill renders width copies of block blended from one color to the
// other. Used for the filled part of the progress bar.
func GradientFill(block string, width int, from, to lipgloss.Color) string {
	if width <= 0 {
		return ""
	}
	cells := make([]string, width)
	for i := range cells {
		cells[i] = block
	}
	return paint(cells, false, from, to)
}

func paint(cells []string, bold bool, from, to lipgloss.Color) string {
	var b strings.Builder
	for i, c := range blend(len(cells), from, to) {
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Hex())).
			Bold(bold).
			Render(cells[i]))
	}
	return b.String()
}

// blend returns size colors from one end to the other, interpolated in HCL
// so the steps look even.
func blend(size int, from, to lipgloss.Color) []colorful.Color {
	c1, c2 := parseHex(from), parseHex(to)
	if size < 2 {
		return []colorful.Color{c1}[:size]
	}
	colors := make([]colorful.Color, size)
	for i := range colors {
		colors[i] = c1.BlendHcl(c2, float64(i)/float64(size-1)).Clamped()
	}
	return colors
}

func parseHex(c lipgloss.Color) colorful.Color {
	col, err := colorful.Hex(string(c))
	if err != nil {
		return neutral
	}
	return col
}
