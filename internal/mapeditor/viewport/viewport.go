package viewport

import (
	"facility-map/internal/mapeditor/geometry"
)

// ============================================================
// Gesture / Viewport Controller
// ============================================================

const (
	MinZoom   = 0.5
	MaxZoom   = 5.0
	WheelStep = 1.1
)

// Transform задаёт камеру сцены: масштаб и сдвиг в пикселях. Не зависит от геометрии коробок.
type Transform struct {
	Zoom float64        `json:"zoom"`
	Pan  geometry.Point `json:"pan"`
}

func Identity() Transform {
	return Transform{Zoom: 1}
}

// ScreenToWorld переводит точку экрана в координаты сцены до камеры.
func (t Transform) ScreenToWorld(p geometry.Point) geometry.Point {
	return p.Sub(t.Pan).Scale(1 / t.Zoom)
}

// WorldToScreen выполняет обратное к ScreenToWorld преобразование.
func (t Transform) WorldToScreen(p geometry.Point) geometry.Point {
	return p.Scale(t.Zoom).Add(t.Pan)
}

// anchored возвращает камеру с новым масштабом, при которой мировая точка world
// оказывается под экранной точкой screen.
func anchored(zoom float64, world, screen geometry.Point) Transform {
	return Transform{Zoom: zoom, Pan: screen.Sub(world.Scale(zoom))}
}

func clampZoom(z float64) float64 {
	return geometry.Clamp(z, MinZoom, MaxZoom)
}

type gesture int

const (
	gestureNone gesture = iota
	gesturePan
	gesturePinch
)

// Viewport хранит зафиксированную камеру и «живую», которая меняется во время
// жестов. Промежуточные кадры щипка и панорамирования пишут только в живую камеру;
// фиксация происходит в конце жеста.
type Viewport struct {
	committed Transform
	live      Transform
	gesture   gesture

	lastDistance float64
	lastMid      geometry.Point

	panStart  geometry.Point
	panOrigin geometry.Point
}

func New() *Viewport {
	return &Viewport{committed: Identity(), live: Identity()}
}

// Transform возвращает зафиксированную камеру.
func (v *Viewport) Transform() Transform {
	return v.committed
}

// Live возвращает камеру, которой рисуется текущий кадр.
func (v *Viewport) Live() Transform {
	return v.live
}

func (v *Viewport) InGesture() bool {
	return v.gesture != gestureNone
}

func (v *Viewport) commit(t Transform) Transform {
	v.committed = t
	v.live = t
	return t
}

// Wheel меняет масштаб на шаг WheelStep к точке указателя; deltaY < 0 приближает.
func (v *Viewport) Wheel(pointer geometry.Point, deltaY float64) Transform {
	if deltaY == 0 {
		return v.committed
	}
	zoom := v.committed.Zoom * WheelStep
	if deltaY > 0 {
		zoom = v.committed.Zoom / WheelStep
	}
	world := v.committed.ScreenToWorld(pointer)
	return v.commit(anchored(clampZoom(zoom), world, pointer))
}

// ============================================================
// Pinch
// ============================================================

func (v *Viewport) PinchStart(a, b geometry.Point) {
	v.gesture = gesturePinch
	v.live = v.committed
	v.lastDistance = a.Distance(b)
	v.lastMid = geometry.Midpoint(a, b)
}

// PinchMove масштабирует на отношение расстояний между касаниями, удерживая мировую
// точку под серединой щипка и следуя за её смещением.
func (v *Viewport) PinchMove(a, b geometry.Point) Transform {
	if v.gesture != gesturePinch {
		v.PinchStart(a, b)
		return v.live
	}
	dist := a.Distance(b)
	mid := geometry.Midpoint(a, b)
	if v.lastDistance <= 0 || dist <= 0 {
		v.lastDistance = dist
		v.lastMid = mid
		return v.live
	}

	zoom := clampZoom(v.live.Zoom * dist / v.lastDistance)
	world := v.live.ScreenToWorld(v.lastMid)
	v.live = anchored(zoom, world, mid)

	v.lastDistance = dist
	v.lastMid = mid
	return v.live
}

func (v *Viewport) PinchEnd() Transform {
	if v.gesture != gesturePinch {
		return v.committed
	}
	v.gesture = gestureNone
	return v.commit(v.live)
}

// ============================================================
// Pan
// ============================================================

func (v *Viewport) PanStart(p geometry.Point) {
	v.gesture = gesturePan
	v.live = v.committed
	v.panStart = p
	v.panOrigin = v.committed.Pan
}

func (v *Viewport) PanMove(p geometry.Point) Transform {
	if v.gesture != gesturePan {
		return v.live
	}
	v.live.Pan = v.panOrigin.Add(p.Sub(v.panStart))
	return v.live
}

func (v *Viewport) PanEnd() Transform {
	if v.gesture != gesturePan {
		return v.committed
	}
	v.gesture = gestureNone
	return v.commit(v.live)
}

// ============================================================
// Direct control
// ============================================================

func (v *Viewport) Reset() Transform {
	v.gesture = gestureNone
	return v.commit(Identity())
}

// CenterOn сдвигает камеру так, чтобы мировая точка оказалась в центре сцены.
func (v *Viewport) CenterOn(world geometry.Point, stage geometry.Size) Transform {
	center := geometry.Point{X: stage.Width / 2, Y: stage.Height / 2}
	v.gesture = gestureNone
	return v.commit(anchored(v.committed.Zoom, world, center))
}
