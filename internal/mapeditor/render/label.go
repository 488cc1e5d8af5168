package render

import (
	"math"
	"strings"
	"unicode/utf8"

	"facility-map/internal/mapeditor/geometry"
)

const (
	Ellipsis         = "…"
	lineHeightFactor = 1.2
	approxGlyphWidth = 0.6
)

// Measure возвращает ширину строки в пикселях при данном размере шрифта.
type Measure func(s string, fontSize float64) float64

// ApproxMeasure оценивает ширину без шрифта: средняя ширина глифа 0.6em.
func ApproxMeasure(s string, fontSize float64) float64 {
	return float64(utf8.RuneCountInString(s)) * fontSize * approxGlyphWidth
}

type Label struct {
	Lines      []string `json:"lines"`
	FontSize   float64  `json:"font_size"`
	LineHeight float64  `json:"line_height"`
}

// LayoutLabel переносит текст по словам внутри прямоугольника за вычетом отступов.
// Не поместившиеся строки отбрасываются, последняя видимая получает «…».
// Непустой текст всегда занимает хотя бы одну строку.
func LayoutLabel(text string, r geometry.Rect, fontSize float64, measure Measure) Label {
	if measure == nil {
		measure = ApproxMeasure
	}
	l := Label{FontSize: fontSize, LineHeight: fontSize * lineHeightFactor}

	words := strings.Fields(text)
	if len(words) == 0 {
		return l
	}

	innerW := math.Max(0, r.Width-2*LabelPadding)
	innerH := math.Max(0, r.Height-2*LabelPadding)
	maxLines := max(1, int(math.Floor(innerH/l.LineHeight)))

	var lines []string
	current := ""
	for _, w := range words {
		candidate := w
		if current != "" {
			candidate = current + " " + w
		}
		if current == "" || measure(candidate, fontSize) <= innerW {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = w
	}
	lines = append(lines, current)

	overflow := len(lines) > maxLines
	if overflow {
		lines = lines[:maxLines]
	}
	for i, line := range lines {
		last := i == len(lines)-1
		if (last && overflow) || measure(line, fontSize) > innerW {
			lines[i] = ellipsize(line, innerW, fontSize, measure)
		}
	}
	l.Lines = lines
	return l
}

// Positions возвращает центры строк, блок строк центрируется в прямоугольнике.
func (l Label) Positions(r geometry.Rect) []geometry.Point {
	c := r.Center()
	top := c.Y - float64(len(l.Lines))*l.LineHeight/2
	out := make([]geometry.Point, len(l.Lines))
	for i := range l.Lines {
		out[i] = geometry.Point{X: c.X, Y: top + (float64(i)+0.5)*l.LineHeight}
	}
	return out
}

func ellipsize(s string, width, fontSize float64, measure Measure) string {
	runes := []rune(strings.TrimRight(s, " "))
	for len(runes) > 0 && measure(string(runes)+Ellipsis, fontSize) > width {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimRight(string(runes), " ") + Ellipsis
}
