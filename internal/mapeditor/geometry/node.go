package geometry

import (
	"fmt"
	"math"

	"facility-map/internal/mapeditor/models"
)

// ============================================================
// Box Render Node
// ============================================================

// Corner обозначает угол, за который тянут при изменении размера.
type Corner string

const (
	TopLeft     Corner = "top-left"
	TopRight    Corner = "top-right"
	BottomLeft  Corner = "bottom-left"
	BottomRight Corner = "bottom-right"
)

func ParseCorner(s string) (Corner, error) {
	switch c := Corner(s); c {
	case TopLeft, TopRight, BottomLeft, BottomRight:
		return c, nil
	}
	return "", fmt.Errorf("unknown corner %q", s)
}

func (c Corner) left() bool { return c == TopLeft || c == BottomLeft }
func (c Corner) top() bool  { return c == TopLeft || c == TopRight }

// FractionalRect возвращает геометрию коробки в долях.
func FractionalRect(b models.Box) Rect {
	return Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

// ApplyTransform проецирует авторитетную геометрию коробки в пиксели изображения.
// Графический узел всегда пересчитывается из этого результата и не читается обратно.
func ApplyTransform(b models.Box, imageW, imageH float64) Rect {
	return ToImagePixels(FractionalRect(b), imageW, imageH)
}

// DragEnd превращает конечную позицию перетаскивания (пиксели изображения)
// в патч {x, y}, прижимая коробку к границам изображения.
func DragEnd(b models.Box, px, py, imageW, imageH float64) models.BoxPatch {
	bounds := ApplyTransform(b, imageW, imageH)
	x := Clamp(px, 0, imageW-bounds.Width)
	y := Clamp(py, 0, imageH-bounds.Height)
	frac := ToFractional(Rect{X: x, Y: y, Width: bounds.Width, Height: bounds.Height}, imageW, imageH)
	return models.BoxPatch{X: models.Ptr(frac.X), Y: models.Ptr(frac.Y)}
}

// ResizeEnd применяет накопленный масштаб узла к размеру коробки. Противоположный
// тянутому угол остаётся на месте; размер не меньше 60×40 px; результат прижимается
// к изображению. Масштаб «запекается» в ширину и высоту, узел возвращается к масштабу 1.
func ResizeEnd(b models.Box, corner Corner, scaleX, scaleY, imageW, imageH float64) models.BoxPatch {
	bounds := ApplyTransform(b, imageW, imageH)

	w := scaledSize(bounds.Width, scaleX, MinBoxWidthPx)
	h := scaledSize(bounds.Height, scaleY, MinBoxHeightPx)
	w = math.Min(w, imageW)
	h = math.Min(h, imageH)

	x, y := bounds.X, bounds.Y
	if corner.left() {
		x = bounds.X + bounds.Width - w
	}
	if corner.top() {
		y = bounds.Y + bounds.Height - h
	}
	x = Clamp(x, 0, imageW-w)
	y = Clamp(y, 0, imageH-h)

	frac := ToFractional(Rect{X: x, Y: y, Width: w, Height: h}, imageW, imageH)
	return models.BoxPatch{
		X:      models.Ptr(frac.X),
		Y:      models.Ptr(frac.Y),
		Width:  models.Ptr(frac.Width),
		Height: models.Ptr(frac.Height),
	}
}

// ResizeTo выводит масштаб из конечной позиции указателя на тянутом углу.
func ResizeTo(b models.Box, corner Corner, pointer Point, imageW, imageH float64) models.BoxPatch {
	bounds := ApplyTransform(b, imageW, imageH)
	var w, h float64
	if corner.left() {
		w = bounds.X + bounds.Width - pointer.X
	} else {
		w = pointer.X - bounds.X
	}
	if corner.top() {
		h = bounds.Y + bounds.Height - pointer.Y
	} else {
		h = pointer.Y - bounds.Y
	}
	return ResizeEnd(b, corner, ratio(w, bounds.Width), ratio(h, bounds.Height), imageW, imageH)
}

func scaledSize(size, scale, minimum float64) float64 {
	v := size * scale
	if math.IsNaN(v) || math.IsInf(v, 0) || v < minimum {
		return minimum
	}
	return v
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
