package asset

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ============================================================
// SVG dimensions
// ============================================================

type svgRoot struct {
	XMLName xml.Name `xml:"svg"`
	Width   string   `xml:"width,attr"`
	Height  string   `xml:"height,attr"`
	ViewBox string   `xml:"viewBox,attr"`
}

// SVGSize читает размеры корневого <svg>: width/height в пикселях,
// иначе размеры из viewBox.
func SVGSize(r io.Reader) (float64, float64, error) {
	var root svgRoot
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&root); err != nil {
		return 0, 0, err
	}

	w, okW := parseLength(root.Width)
	h, okH := parseLength(root.Height)
	if okW && okH {
		return w, h, nil
	}

	vw, vh, err := parseViewBox(root.ViewBox)
	if err != nil {
		return 0, 0, err
	}
	switch {
	case okW:
		return w, w * vh / vw, nil
	case okH:
		return h * vw / vh, h, nil
	}
	return vw, vh, nil
}

// parseLength понимает числа без единиц и с "px"; проценты и прочие единицы игнорируются.
func parseLength(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func parseViewBox(s string) (float64, float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) != 4 {
		return 0, 0, fmt.Errorf("svg has neither size nor viewBox")
	}
	w, errW := strconv.ParseFloat(fields[2], 64)
	h, errH := strconv.ParseFloat(fields[3], 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid viewBox %q", s)
	}
	return w, h, nil
}
