package geometry

import "math"

// ============================================================
// Coordinate Model
// ============================================================

// Три пространства координат:
//   - доли [0,1]×[0,1] натурального размера изображения (хранятся в БД);
//   - пиксели изображения;
//   - пиксели сцены (после вписывания в контейнер и камеры viewport).

const (
	MinBoxWidthPx  = 60.0
	MinBoxHeightPx = 40.0

	DefaultBoxWidth  = 0.06
	DefaultBoxHeight = 0.03
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }
func (p Point) Scale(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }
func (p Point) Distance(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Clamp ограничивает v отрезком [lo, hi]. При hi < lo возвращает lo; NaN превращается в lo.
func Clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ToImagePixels переводит доли в пиксели изображения.
func ToImagePixels(r Rect, imageW, imageH float64) Rect {
	return Rect{
		X:      r.X * imageW,
		Y:      r.Y * imageH,
		Width:  r.Width * imageW,
		Height: r.Height * imageH,
	}
}

// ToFractional переводит пиксели в доли и прижимает позицию к [0, 1-size],
// чтобы прямоугольник не выходил за изображение.
func ToFractional(r Rect, imageW, imageH float64) Rect {
	if imageW <= 0 || imageH <= 0 {
		return Rect{}
	}
	w := Clamp(r.Width/imageW, 0, 1)
	h := Clamp(r.Height/imageH, 0, 1)
	return Rect{
		X:      Clamp(r.X/imageW, 0, 1-w),
		Y:      Clamp(r.Y/imageH, 0, 1-h),
		Width:  w,
		Height: h,
	}
}

// MinSizeFraction возвращает минимальный размер коробки в долях при данном размере изображения.
func MinSizeFraction(imageW, imageH float64) (float64, float64) {
	if imageW <= 0 || imageH <= 0 {
		return 0, 0
	}
	return math.Min(1, MinBoxWidthPx/imageW), math.Min(1, MinBoxHeightPx/imageH)
}

// ClampFractional приводит долевую геометрию к инвариантам: минимальный размер,
// размер не больше изображения, позиция внутри изображения.
func ClampFractional(r Rect, imageW, imageH float64) Rect {
	minW, minH := MinSizeFraction(imageW, imageH)
	w := Clamp(r.Width, minW, 1)
	h := Clamp(r.Height, minH, 1)
	return Rect{
		X:      Clamp(r.X, 0, 1-w),
		Y:      Clamp(r.Y, 0, 1-h),
		Width:  w,
		Height: h,
	}
}

// ============================================================
// Fit image to container
// ============================================================

// Fit хранит масштаб вписывания изображения в контейнер и смещение для центрирования.
type Fit struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// FitScale вычисляет наибольший равномерный масштаб, при котором изображение
// целиком помещается в контейнер, и смещение по свободной оси.
func FitScale(container, image Size) Fit {
	if !container.Valid() || !image.Valid() {
		return Fit{Scale: 1}
	}
	scale := math.Min(container.Width/image.Width, container.Height/image.Height)
	return Fit{
		Scale:   scale,
		OffsetX: (container.Width - image.Width*scale) / 2,
		OffsetY: (container.Height - image.Height*scale) / 2,
	}
}

// ImageToStage переводит точку изображения в координаты сцены (до камеры).
func (f Fit) ImageToStage(p Point) Point {
	return Point{X: p.X*f.Scale + f.OffsetX, Y: p.Y*f.Scale + f.OffsetY}
}

// StageToImage выполняет обратное к ImageToStage преобразование.
func (f Fit) StageToImage(p Point) Point {
	if f.Scale == 0 {
		return p
	}
	return Point{X: (p.X - f.OffsetX) / f.Scale, Y: (p.Y - f.OffsetY) / f.Scale}
}
