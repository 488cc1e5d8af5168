package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"facility-map/internal/mapeditor/geometry"
)

// ============================================================
// PNG Rasterizer
// ============================================================

const (
	MinPNGWidth     = 64
	MaxPNGWidth     = 4096
	DefaultPNGWidth = 1600
)

// Rasterizer рисует сцену в PNG. Шрифтовые начертания кэшируются по размеру.
type Rasterizer struct {
	font *truetype.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

func NewRasterizer() (*Rasterizer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Rasterizer{font: f, faces: make(map[float64]font.Face)}, nil
}

func (r *Rasterizer) face(size float64) font.Face {
	size = math.Max(1, math.Round(size*2)/2)

	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.faces[size]; ok {
		return f
	}
	f := truetype.NewFace(r.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	r.faces[size] = f
	return f
}

// measureAt возвращает Measure в пикселях изображения для вывода с масштабом scale.
func (r *Rasterizer) measureAt(scale float64) Measure {
	return func(s string, fontSize float64) float64 {
		adv := font.MeasureString(r.face(fontSize*scale), s)
		return float64(adv) / 64 / scale
	}
}

// PNG рисует сцену шириной width пикселей; высота сохраняет пропорции фона.
// bg может быть nil, тогда фон заливается нейтральным цветом.
func (r *Rasterizer) PNG(scene *Scene, bg image.Image, width int) ([]byte, error) {
	if scene == nil {
		return nil, fmt.Errorf("scene is nil")
	}
	if scene.Width <= 0 || scene.Height <= 0 {
		return nil, fmt.Errorf("invalid scene size %vx%v", scene.Width, scene.Height)
	}
	if width <= 0 {
		width = DefaultPNGWidth
	}
	width = min(max(width, MinPNGWidth), MaxPNGWidth)

	scale := float64(width) / scene.Width
	height := max(1, int(math.Round(scene.Height*scale)))

	dc := gg.NewContext(width, height)
	dc.SetColor(color.RGBA{R: 0xf3, G: 0xf4, B: 0xf6, A: 0xff})
	dc.Clear()

	if bg != nil {
		b := bg.Bounds()
		dc.Push()
		dc.Scale(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
		dc.DrawImage(bg, -b.Min.X, -b.Min.Y)
		dc.Pop()
	}

	for _, n := range scene.Nodes(r.measureAt(scale)) {
		r.drawNode(dc, n, scale)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Rasterizer) drawNode(dc *gg.Context, n Node, scale float64) {
	x := n.Rect.X * scale
	y := n.Rect.Y * scale
	w := n.Rect.Width * scale
	h := n.Rect.Height * scale

	dc.DrawRoundedRectangle(x, y, w, h, CornerRadius*scale)
	dc.SetColor(withOpacity(n.Style.Fill, n.Style.FillOpacity))
	dc.FillPreserve()

	dc.SetHexColor(n.Style.Stroke)
	dc.SetLineWidth(math.Max(1, n.Style.StrokeWidth*scale))
	dc.Stroke()

	dc.SetFontFace(r.face(n.Label.FontSize * scale))
	dc.SetHexColor(TextColor)
	for i, p := range n.Label.Positions(n.Rect) {
		dc.DrawStringAnchored(n.Label.Lines[i], p.X*scale, p.Y*scale, 0.5, 0.5)
	}
}

// withOpacity разбирает #RRGGBB; некорректный цвет даёт чёрный.
func withOpacity(hex string, opacity float64) color.NRGBA {
	var cr, cg, cb uint8
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &cr, &cg, &cb); err != nil {
		cr, cg, cb = 0, 0, 0
	}
	a := uint8(math.Round(geometry.Clamp(opacity, 0, 1) * 255))
	return color.NRGBA{R: cr, G: cg, B: cb, A: a}
}
