package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// ============================================================
// SVG Renderer
// ============================================================

type Renderer struct {
	measure Measure
}

func NewRenderer() *Renderer {
	return &Renderer{measure: ApproxMeasure}
}

// SVG собирает SVG-документ размером с фон: изображение и коробки с подписями.
func (r *Renderer) SVG(scene *Scene) (string, error) {
	if scene == nil {
		return "", fmt.Errorf("scene is nil")
	}
	if scene.Width <= 0 || scene.Height <= 0 {
		return "", fmt.Errorf("invalid scene size %vx%v", scene.Width, scene.Height)
	}

	var elements []string
	elements = append(elements, r.renderBackground(scene)...)
	for _, n := range scene.Nodes(r.measure) {
		elements = append(elements, r.renderNode(n)...)
	}

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		formatFloat(scene.Width), formatFloat(scene.Height), formatFloat(scene.Width), formatFloat(scene.Height)))
	builder.WriteString("\n")

	for _, elem := range elements {
		builder.WriteString("  ")
		builder.WriteString(elem)
		builder.WriteString("\n")
	}

	builder.WriteString(`</svg>`)
	return builder.String(), nil
}

// ============================================================
// Element renderers
// ============================================================

func (r *Renderer) renderBackground(scene *Scene) []string {
	if scene.Background == "" {
		return []string{fmt.Sprintf(`<rect width="%s" height="%s" fill="#f3f4f6" />`,
			formatFloat(scene.Width), formatFloat(scene.Height))}
	}
	return []string{fmt.Sprintf(`<image href="%s" x="0" y="0" width="%s" height="%s" />`,
		html.EscapeString(scene.Background), formatFloat(scene.Width), formatFloat(scene.Height))}
}

func (r *Renderer) renderNode(n Node) []string {
	var out []string

	out = append(out, fmt.Sprintf(`<rect id="%s" data-state="%s" x="%s" y="%s" width="%s" height="%s" rx="%s" fill="%s" fill-opacity="%s" stroke="%s" stroke-width="%s" />`,
		html.EscapeString(n.ID), n.State,
		formatFloat(n.Rect.X), formatFloat(n.Rect.Y), formatFloat(n.Rect.Width), formatFloat(n.Rect.Height),
		formatFloat(CornerRadius), n.Style.Fill, formatFloat(n.Style.FillOpacity),
		n.Style.Stroke, formatFloat(n.Style.StrokeWidth)))

	for i, p := range n.Label.Positions(n.Rect) {
		out = append(out, fmt.Sprintf(`<text x="%s" y="%s" font-size="%s" fill="%s" text-anchor="middle" dominant-baseline="central">%s</text>`,
			formatFloat(p.X), formatFloat(p.Y), formatFloat(n.Label.FontSize), TextColor,
			html.EscapeString(n.Label.Lines[i])))
	}

	return out
}

// ============================================================
// Formatting helpers
// ============================================================

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}
