package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"facility-map/internal/mapeditor/geometry"
)

const eps = 1e-9

func pt(x, y float64) geometry.Point { return geometry.Point{X: x, Y: y} }

func assertPoint(t *testing.T, want, got geometry.Point) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, eps)
	assert.InDelta(t, want.Y, got.Y, eps)
}

func TestWheel_ZoomClamp(t *testing.T) {
	t.Parallel()

	v := New()
	for range 200 {
		v.Wheel(pt(100, 100), -1)
		assert.LessOrEqual(t, v.Transform().Zoom, MaxZoom)
	}
	assert.Equal(t, MaxZoom, v.Transform().Zoom)

	for range 200 {
		v.Wheel(pt(100, 100), 1)
		assert.GreaterOrEqual(t, v.Transform().Zoom, MinZoom)
	}
	assert.Equal(t, MinZoom, v.Transform().Zoom)
}

func TestWheel_KeepsPointerWorldFixed(t *testing.T) {
	v := New()
	pointer := pt(320, 240)
	before := v.Transform().ScreenToWorld(pointer)

	v.Wheel(pointer, -120)
	v.Wheel(pointer, -120)
	v.Wheel(pointer, 120)

	after := v.Transform().ScreenToWorld(pointer)
	assertPoint(t, before, after)
	assert.InDelta(t, 1.1, v.Transform().Zoom, eps)
}

func TestWheel_ZeroDeltaIsNoop(t *testing.T) {
	v := New()
	assert.Equal(t, Identity(), v.Wheel(pt(5, 5), 0))
}

func TestPinch_ScalesAroundMidpointAndCommitsOnEnd(t *testing.T) {
	v := New()

	v.PinchStart(pt(100, 100), pt(200, 100))
	world := v.Live().ScreenToWorld(pt(150, 100))

	live := v.PinchMove(pt(50, 100), pt(250, 100))
	assert.InDelta(t, 2.0, live.Zoom, eps)
	assertPoint(t, world, live.ScreenToWorld(pt(150, 100)))
	assert.Equal(t, Identity(), v.Transform(), "intermediate frames are not committed")

	final := v.PinchEnd()
	assert.Equal(t, live, final)
	assert.Equal(t, final, v.Transform())
	assert.False(t, v.InGesture())
}

func TestPinch_FollowsMidpointTranslation(t *testing.T) {
	v := New()

	v.PinchStart(pt(100, 100), pt(200, 100))
	world := v.Live().ScreenToWorld(pt(150, 100))

	// Same spread, midpoint moved by (+30, +40): pure pan.
	live := v.PinchMove(pt(130, 140), pt(230, 140))

	assert.InDelta(t, 1.0, live.Zoom, eps)
	assertPoint(t, pt(30, 40), live.Pan)
	assertPoint(t, world, live.ScreenToWorld(pt(180, 140)))
}

func TestPinch_ZoomClamped(t *testing.T) {
	v := New()
	v.PinchStart(pt(0, 0), pt(1, 0))
	v.PinchMove(pt(0, 0), pt(1000, 0))
	assert.Equal(t, MaxZoom, v.PinchEnd().Zoom)

	v.PinchStart(pt(0, 0), pt(1000, 0))
	v.PinchMove(pt(0, 0), pt(1, 0))
	assert.Equal(t, MinZoom, v.PinchEnd().Zoom)
}

func TestPan_CommitsOnlyOnEnd(t *testing.T) {
	v := New()

	v.PanStart(pt(10, 10))
	v.PanMove(pt(20, 30))
	live := v.PanMove(pt(60, 70))

	assertPoint(t, pt(50, 60), live.Pan)
	assert.Equal(t, Identity(), v.Transform())

	v.PanEnd()
	assertPoint(t, pt(50, 60), v.Transform().Pan)
}

func TestPan_MoveWithoutStartIgnored(t *testing.T) {
	v := New()
	v.PanMove(pt(100, 100))
	v.PanEnd()
	assert.Equal(t, Identity(), v.Transform())
}

func TestReset(t *testing.T) {
	v := New()
	v.Wheel(pt(10, 10), -1)
	v.PanStart(pt(0, 0))
	v.PanMove(pt(5, 5))

	assert.Equal(t, Identity(), v.Reset())
	assert.False(t, v.InGesture())
}

func TestCenterOn(t *testing.T) {
	v := New()
	v.Wheel(pt(0, 0), -1)

	tr := v.CenterOn(pt(500, 250), geometry.Size{Width: 800, Height: 600})

	assertPoint(t, pt(400, 300), tr.WorldToScreen(pt(500, 250)))
}
