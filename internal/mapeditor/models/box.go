package models

import (
	"encoding/json"
	"slices"
)

// ============================================================
// Box Model
// ============================================================

// LinkType задаёт класс ссылки, определяется по хосту URL.
type LinkType string

const (
	LinkProjectTracker LinkType = "project-tracker"
	LinkCloudDoc       LinkType = "cloud-doc"
	LinkGeneric        LinkType = "generic"
)

type Link struct {
	URL      string   `json:"url"`
	LinkType LinkType `json:"link_type"`
}

// Box описывает аннотированную область на карте. Геометрия хранится в долях
// от натурального размера фонового изображения.
type Box struct {
	ID          string   `json:"id"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Width       float64  `json:"width"`
	Height      float64  `json:"height"`
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	TextSize    *float64 `json:"text_size"`
	Description string   `json:"description"`
	Links       []Link   `json:"links"`
	LinkURL     string   `json:"link_url,omitempty"`
	IsActive    bool     `json:"is_active"`
	CreatedBy   string   `json:"created_by"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

// Clone возвращает глубокую копию, не разделяющую Links и TextSize.
func (b Box) Clone() Box {
	out := b
	if b.TextSize != nil {
		v := *b.TextSize
		out.TextSize = &v
	}
	if b.Links != nil {
		out.Links = slices.Clone(b.Links)
	}
	return out
}

// ============================================================
// Partial updates
// ============================================================

// NullableFloat хранит поле патча с тремя состояниями: не задано, null или значение.
type NullableFloat struct {
	Set   bool
	Value *float64
}

func Float(v float64) NullableFloat {
	return NullableFloat{Set: true, Value: &v}
}

func Null() NullableFloat {
	return NullableFloat{Set: true}
}

func (n NullableFloat) IsZero() bool { return !n.Set }

func (n NullableFloat) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

func (n *NullableFloat) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// BoxPatch содержит частичный набор изменённых полей. nil означает «не менять».
type BoxPatch struct {
	X           *float64      `json:"x,omitempty"`
	Y           *float64      `json:"y,omitempty"`
	Width       *float64      `json:"width,omitempty"`
	Height      *float64      `json:"height,omitempty"`
	Name        *string       `json:"name,omitempty"`
	Color       *string       `json:"color,omitempty"`
	TextSize    NullableFloat `json:"text_size,omitzero"`
	Description *string       `json:"description,omitempty"`
	Links       *[]Link       `json:"links,omitempty"`
	LinkURL     *string       `json:"link_url,omitempty"`
}

func Ptr[T any](v T) *T { return &v }

// Merge накладывает next поверх p: каждое заданное поле next перезаписывает поле p.
func (p BoxPatch) Merge(next BoxPatch) BoxPatch {
	out := p
	if next.X != nil {
		out.X = Ptr(*next.X)
	}
	if next.Y != nil {
		out.Y = Ptr(*next.Y)
	}
	if next.Width != nil {
		out.Width = Ptr(*next.Width)
	}
	if next.Height != nil {
		out.Height = Ptr(*next.Height)
	}
	if next.Name != nil {
		out.Name = Ptr(*next.Name)
	}
	if next.Color != nil {
		out.Color = Ptr(*next.Color)
	}
	if next.TextSize.Set {
		out.TextSize = NullableFloat{Set: true}
		if next.TextSize.Value != nil {
			out.TextSize.Value = Ptr(*next.TextSize.Value)
		}
	}
	if next.Description != nil {
		out.Description = Ptr(*next.Description)
	}
	if next.Links != nil {
		out.Links = Ptr(slices.Clone(*next.Links))
	}
	if next.LinkURL != nil {
		out.LinkURL = Ptr(*next.LinkURL)
	}
	return out
}

// Apply возвращает копию b с применёнными полями патча.
func (p BoxPatch) Apply(b Box) Box {
	out := b.Clone()
	if p.X != nil {
		out.X = *p.X
	}
	if p.Y != nil {
		out.Y = *p.Y
	}
	if p.Width != nil {
		out.Width = *p.Width
	}
	if p.Height != nil {
		out.Height = *p.Height
	}
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Color != nil {
		out.Color = *p.Color
	}
	if p.TextSize.Set {
		out.TextSize = nil
		if p.TextSize.Value != nil {
			out.TextSize = Ptr(*p.TextSize.Value)
		}
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Links != nil {
		out.Links = slices.Clone(*p.Links)
	}
	if p.LinkURL != nil {
		out.LinkURL = *p.LinkURL
	}
	return out
}

// Fields перечисляет имена заданных полей в порядке колонок таблицы.
func (p BoxPatch) Fields() []string {
	var out []string
	if p.X != nil {
		out = append(out, "x")
	}
	if p.Y != nil {
		out = append(out, "y")
	}
	if p.Width != nil {
		out = append(out, "width")
	}
	if p.Height != nil {
		out = append(out, "height")
	}
	if p.Name != nil {
		out = append(out, "name")
	}
	if p.Color != nil {
		out = append(out, "color")
	}
	if p.TextSize.Set {
		out = append(out, "text_size")
	}
	if p.Description != nil {
		out = append(out, "description")
	}
	if p.Links != nil {
		out = append(out, "links")
	}
	if p.LinkURL != nil {
		out = append(out, "link_url")
	}
	return out
}

func (p BoxPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// HasGeometry сообщает, затрагивает ли патч положение или размер.
func (p BoxPatch) HasGeometry() bool {
	return p.X != nil || p.Y != nil || p.Width != nil || p.Height != nil
}
