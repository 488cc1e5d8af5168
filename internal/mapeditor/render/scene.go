package render

import (
	"facility-map/internal/mapeditor/geometry"
	"facility-map/internal/mapeditor/models"
)

// ============================================================
// Scene projection
// ============================================================

// Scene содержит всё, что нужно для отрисовки карты: размер фона и коробки.
type Scene struct {
	Width      float64
	Height     float64
	Background string // href фонового изображения для SVG, может быть пустым
	Boxes      []models.Box
	Selected   string
	Viewing    string
	Flashing   map[string]bool
}

// Node описывает визуальную проекцию одной коробки в пикселях изображения.
type Node struct {
	ID    string        `json:"id"`
	Rect  geometry.Rect `json:"rect"`
	State State         `json:"state"`
	Style Style         `json:"style"`
	Label Label         `json:"label"`
	Glyph string        `json:"glyph"`
	Flash bool          `json:"flash,omitempty"`
}

func (s *Scene) stateOf(id string) State {
	switch id {
	case s.Selected:
		return StateSelected
	case s.Viewing:
		return StateViewing
	}
	return StateDefault
}

// Nodes проецирует коробки сцены в узлы. Порядок узлов совпадает с порядком коробок.
func (s *Scene) Nodes(measure Measure) []Node {
	nodes := make([]Node, 0, len(s.Boxes))
	for _, b := range s.Boxes {
		nodes = append(nodes, NodeFor(b, s.stateOf(b.ID), s.Width, s.Height, measure))
	}
	for i := range nodes {
		nodes[i].Flash = s.Flashing[nodes[i].ID]
	}
	return nodes
}

func NodeFor(b models.Box, state State, imageW, imageH float64, measure Measure) Node {
	rect := geometry.ApplyTransform(b, imageW, imageH)
	return Node{
		ID:    b.ID,
		Rect:  rect,
		State: state,
		Style: StyleFor(b, state),
		Label: LayoutLabel(b.Name, rect, FontSize(b), measure),
		Glyph: AvatarGlyph(b.Name),
	}
}
