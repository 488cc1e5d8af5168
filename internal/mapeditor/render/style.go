package render

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"facility-map/internal/mapeditor/models"
)

// ============================================================
// Visual state
// ============================================================

type State string

const (
	StateDefault  State = "default"
	StateSelected State = "selected"
	StateViewing  State = "viewing"
)

const (
	DefaultFontSize = 12.0
	LabelPadding    = 8.0
	CornerRadius    = 4.0
	DefaultColor    = "#3b82f6"
	TextColor       = "#111827"
)

type Style struct {
	Fill        string  `json:"fill"`
	FillOpacity float64 `json:"fill_opacity"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"stroke_width"`
	ShadowBlur  float64 `json:"shadow_blur"`
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Color возвращает цвет заливки коробки или цвет по умолчанию, если он не #RRGGBB.
func Color(b models.Box) string {
	if hexColor.MatchString(b.Color) {
		return strings.ToLower(b.Color)
	}
	return DefaultColor
}

func StyleFor(b models.Box, state State) Style {
	s := Style{
		Fill:        Color(b),
		FillOpacity: 0.35,
		Stroke:      "#1f2937",
		StrokeWidth: 1,
	}
	switch state {
	case StateSelected:
		s.Stroke = "#2563eb"
		s.StrokeWidth = 3
		s.ShadowBlur = 12
		s.FillOpacity = 0.5
	case StateViewing:
		s.Stroke = "#f59e0b"
		s.StrokeWidth = 2
		s.ShadowBlur = 8
		s.FillOpacity = 0.45
	}
	return s
}

// FontSize возвращает явный размер шрифта коробки или автоматический.
func FontSize(b models.Box) float64 {
	if b.TextSize != nil && *b.TextSize > 0 {
		return *b.TextSize
	}
	return DefaultFontSize
}

// AvatarGlyph возвращает первую букву имени в верхнем регистре, «?» для пустого имени.
func AvatarGlyph(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}
