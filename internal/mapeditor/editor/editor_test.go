package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facility-map/internal/mapeditor/geometry"
	"facility-map/internal/mapeditor/interaction"
	"facility-map/internal/mapeditor/models"
)

// ============================================================
// Fakes
// ============================================================

type updateCall struct {
	ID    string
	Patch models.BoxPatch
}

type memStore struct {
	mu      sync.Mutex
	rows    []models.Box
	seq     int
	updates []updateCall
	deleted []string

	failList   error
	failCreate error
	failUpdate map[string]error
	failDelete error
}

func newMemStore(boxes ...models.Box) *memStore {
	for i := range boxes {
		boxes[i].IsActive = true
	}
	return &memStore{rows: boxes, failUpdate: map[string]error{}}
}

func (s *memStore) List(context.Context) ([]models.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	var out []models.Box
	for _, b := range s.rows {
		if b.IsActive {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, b models.Box) (models.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return models.Box{}, s.failCreate
	}
	s.seq++
	b.ID = fmt.Sprintf("new-%d", s.seq)
	b.IsActive = true
	s.rows = append(s.rows, b)
	return b.Clone(), nil
}

func (s *memStore) Update(_ context.Context, id string, patch models.BoxPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, updateCall{ID: id, Patch: patch})
	if err := s.failUpdate[id]; err != nil {
		return err
	}
	for i, b := range s.rows {
		if b.ID == id {
			s.rows[i] = patch.Apply(b)
			return nil
		}
	}
	return errors.New("not found")
}

func (s *memStore) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return s.failDelete
	}
	for i, b := range s.rows {
		if b.ID == id {
			s.rows[i].IsActive = false
			s.deleted = append(s.deleted, id)
			return nil
		}
	}
	return errors.New("not found")
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// ============================================================
// Helpers
// ============================================================

var square = geometry.Size{Width: 1000, Height: 1000}

func seedBox(id string, x, y float64) models.Box {
	return models.Box{ID: id, X: x, Y: y, Width: 0.1, Height: 0.1, Name: "Box " + id, Color: "#123456"}
}

func newEditor(t *testing.T, store *memStore, canEdit bool) (*Editor, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	ed := New(store, User{ID: "u1", CanEdit: canEdit}, Options{
		Image: square,
		Stage: square,
		Log:   zerolog.Nop(),
		Now:   clk.Now,
	})
	require.NoError(t, ed.Load(context.Background()))
	return ed, clk
}

func boxByID(t *testing.T, ed *Editor, id string) models.Box {
	t.Helper()
	for _, b := range ed.Boxes() {
		if b.ID == id {
			return b
		}
	}
	t.Fatalf("box %s not found", id)
	return models.Box{}
}

// ============================================================
// Tests
// ============================================================

func TestPlaceAndEditScenario(t *testing.T) {
	store := newMemStore()
	ed, _ := newEditor(t, store, true)
	ctx := context.Background()

	require.NoError(t, ed.SetTool(interaction.ToolEdit))
	require.NoError(t, ed.EnterPlacement())

	placed, err := ed.ClickEmpty(ctx, geometry.Point{X: 300, Y: 400})
	require.NoError(t, err)
	require.NotNil(t, placed)

	assert.Equal(t, 0.30, placed.X)
	assert.Equal(t, 0.40, placed.Y)
	assert.Equal(t, 0.06, placed.Width)
	assert.Equal(t, 0.03, placed.Height)
	assert.True(t, placed.IsActive)
	assert.Equal(t, "u1", placed.CreatedBy)

	st := ed.State()
	assert.False(t, st.Placing, "placement mode exits after one box")
	assert.Equal(t, placed.ID, st.Selected)
	assert.True(t, st.FormOpen)
	assert.Equal(t, []string{placed.ID}, st.Flashing)

	_, err = ed.EditFields(placed.ID, models.BoxPatch{Name: models.Ptr("Server Room")})
	require.NoError(t, err)

	report, err := ed.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{placed.ID}, report.Saved)

	require.Len(t, store.updates, 1)
	assert.Equal(t, placed.ID, store.updates[0].ID)
	assert.Equal(t, []string{"name"}, store.updates[0].Patch.Fields())
	assert.Equal(t, "Server Room", *store.updates[0].Patch.Name)

	st = ed.State()
	assert.Empty(t, st.Pending)
	assert.Empty(t, st.Selected, "save exits edit mode")
}

func TestPlaceAt_ThroughViewportAndFit(t *testing.T) {
	store := newMemStore()
	ed, _ := newEditor(t, store, true)
	ed.SetStageSize(geometry.Size{Width: 500, Height: 500}) // fit scale 0.5
	require.NoError(t, ed.SetTool(interaction.ToolEdit))

	_, err := ed.PlaceAt(context.Background(), geometry.Point{X: 1, Y: 1})
	assert.ErrorIs(t, err, ErrNotPlacing)

	ed.Wheel(geometry.Point{X: 0, Y: 0}, -1) // zoom 1.1 anchored at origin
	require.NoError(t, ed.EnterPlacement())

	b, err := ed.PlaceAt(context.Background(), geometry.Point{X: 110, Y: 220})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, b.X, 1e-9)
	assert.InDelta(t, 0.4, b.Y, 1e-9)
}

func TestPlaceAt_ClampsIntoImage(t *testing.T) {
	ed, _ := newEditor(t, newMemStore(), true)
	require.NoError(t, ed.SetTool(interaction.ToolEdit))
	require.NoError(t, ed.EnterPlacement())

	b, err := ed.PlaceAt(context.Background(), geometry.Point{X: 990, Y: 2000})
	require.NoError(t, err)
	assert.InDelta(t, 0.94, b.X, 1e-9)
	assert.InDelta(t, 0.97, b.Y, 1e-9)
}

func TestPlacement_CreateFailureInsertsNothing(t *testing.T) {
	store := newMemStore()
	store.failCreate = errors.New("db down")
	ed, _ := newEditor(t, store, true)
	require.NoError(t, ed.SetTool(interaction.ToolEdit))
	require.NoError(t, ed.EnterPlacement())

	_, err := ed.ClickEmpty(context.Background(), geometry.Point{X: 10, Y: 10})
	assert.Error(t, err)
	assert.Empty(t, ed.Boxes())
	assert.False(t, ed.State().Placing)
}

func TestCancelRestoresExactly(t *testing.T) {
	a := seedBox("a", 0.1, 0.1)
	store := newMemStore(a)
	ed, _ := newEditor(t, store, true)
	require.NoError(t, ed.SetTool(interaction.ToolEdit))

	before := boxByID(t, ed, "a")

	_, err := ed.DragEnd("a", 500, 500)
	require.NoError(t, err)
	_, err = ed.ResizeEnd("a", geometry.BottomRight, 2, 2)
	require.NoError(t, err)
	_, err = ed.EditFields("a", models.BoxPatch{Name: models.Ptr("Renamed"), TextSize: models.Float(22)})
	require.NoError(t, err)

	moved := boxByID(t, ed, "a")
	assert.NotEqual(t, before, moved)

	restored := ed.Cancel()
	require.Len(t, restored, 1)
	assert.Equal(t, before, boxByID(t, ed, "a"))
	assert.Empty(t, ed.State().Pending)
	assert.Empty(t, store.updates, "cancel makes no network calls")
}

func TestSwitchingEditedBoxRevertsOther(t *testing.T) {
	store := newMemStore(seedBox("a", 0.1, 0.1), seedBox("b", 0.5, 0.5))
	ed, _ := newEditor(t, store, true)
	require.NoError(t, ed.SetTool(interaction.ToolEdit))

	origA := boxByID(t, ed, "a")
	_, err := ed.DragEnd("a", 700, 700)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ed.State().Pending)

	_, err = ed.Click("b")
	require.NoError(t, err)

	assert.Equal(t, origA, boxByID(t, ed, "a"))
	st := ed.State()
	assert.Equal(t, "b", st.Selected)
	assert.Empty(t, st.Pending)
}

func TestSaveFailureRestoresSnapshot(t *testing.T) {
	store := newMemStore(seedBox("a", 0.1, 0.1))
	store.failUpdate["a"] = errors.New("conflict")
	ed, _ := newEditor(t, store, true)
	require.NoError(t, ed.SetTool(interaction.ToolEdit))

	orig := boxByID(t, ed, "a")
	_, err := ed.DragEnd("a", 400, 400)
	require.NoError(t, err)

	report, err := ed.Save(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)

	assert.Equal(t, orig, boxByID(t, ed, "a"))
	assert.Empty(t, ed.State().Pending, "buffer cleared even on failure")
}

func TestSaveDetachesFromCancelledContext(t *testing.T) {
	store := newMemStore(seedBox("a", 0.1, 0.1))
	ed, _ := newEditor(t, store, true)
	require.NoError(t, ed.SetTool(interaction.ToolEdit))
	_, err := ed.DragEnd("a", 100, 100)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := ed.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, report.Saved)
}

func TestDelete(t *testing.T) {
	store := newMemStore(seedBox("a", 0.1, 0.1), seedBox("b", 0.3, 0.3))
	ed, _ := newEditor(t, store, true)
	ctx := context.Background()

	require.NoError(t, ed.Delete(ctx, "a"))
	assert.Equal(t, []string{"a"}, store.deleted)
	require.Len(t, ed.Boxes(), 1)

	require.NoError(t, ed.Load(ctx))
	require.Len(t, ed.Boxes(), 1, "soft-deleted rows are not listed")
	assert.Equal(t, "b", ed.Boxes()[0].ID)

	assert.ErrorIs(t, ed.Delete(ctx, "missing"), ErrUnknownBox)
}

func TestDeleteFailureReinsertsAtSamePosition(t *testing.T) {
	store := newMemStore(seedBox("a", 0.1, 0.1), seedBox("b", 0.3, 0.3), seedBox("c", 0.5, 0.5))
	store.failDelete = errors.New("db down")
	ed, _ := newEditor(t, store, true)

	err := ed.Delete(context.Background(), "b")
	assert.Error(t, err)

	boxes := ed.Boxes()
	require.Len(t, boxes, 3)
	assert.Equal(t, "b", boxes[1].ID)
}

func TestViewerPermissions(t *testing.T) {
	store := newMemStore(seedBox("a", 0.1, 0.1))
	ed, _ := newEditor(t, store, false)
	ctx := context.Background()

	assert.ErrorIs(t, ed.SetTool(interaction.ToolEdit), ErrForbidden)
	assert.ErrorIs(t, ed.EnterPlacement(), ErrForbidden)

	act, err := ed.Click("a")
	require.NoError(t, err)
	assert.Equal(t, interaction.Action{OpenDetail: true}, act)
	assert.Equal(t, "a", ed.State().Viewing)

	_, err = ed.DragEnd("a", 1, 1)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, ed.Delete(ctx, "a"), ErrForbidden)
	_, err = ed.Create(ctx, models.Box{Name: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEditRequiresEditTool(t *testing.T) {
	ed, _ := newEditor(t, newMemStore(seedBox("a", 0.1, 0.1)), true)

	_, err := ed.DragEnd("a", 1, 1)
	assert.ErrorIs(t, err, ErrWrongTool)

	act, err := ed.Click("a")
	require.NoError(t, err)
	assert.True(t, act.OpenDetail, "select tool opens detail even for editors")
}

func TestDoubleClickOpensForm(t *testing.T) {
	ed, clk := newEditor(t, newMemStore(seedBox("a", 0.1, 0.1)), true)
	require.NoError(t, ed.SetTool(interaction.ToolEdit))

	act, err := ed.Click("a")
	require.NoError(t, err)
	assert.Equal(t, interaction.Action{Select: true}, act)
	assert.False(t, ed.State().FormOpen)

	clk.Advance(200 * time.Millisecond)
	act, err = ed.Click("a")
	require.NoError(t, err)
	assert.True(t, act.OpenEditForm)
	assert.True(t, ed.State().FormOpen)

	_, err = ed.Click("zzz")
	assert.ErrorIs(t, err, ErrUnknownBox)
}

func TestLoad_KeepsStaleDataOnError(t *testing.T) {
	store := newMemStore(seedBox("a", 0.1, 0.1))
	ed, _ := newEditor(t, store, true)

	store.failList = errors.New("timeout")
	assert.Error(t, ed.Load(context.Background()))
	assert.Len(t, ed.Boxes(), 1)
}

func TestLoad_ReappliesPendingDrafts(t *testing.T) {
	store := newMemStore(seedBox("a", 0.1, 0.1))
	ed, _ := newEditor(t, store, true)
	require.NoError(t, ed.SetTool(interaction.ToolEdit))

	_, err := ed.EditFields("a", models.BoxPatch{Name: models.Ptr("Draft")})
	require.NoError(t, err)

	store.rows[0].Description = "changed elsewhere"
	require.NoError(t, ed.Load(context.Background()))

	got := boxByID(t, ed, "a")
	assert.Equal(t, "Draft", got.Name)
	assert.Equal(t, "changed elsewhere", got.Description)
}

func TestEditFields_NormalizesLinksAndIgnoresGeometry(t *testing.T) {
	ed, _ := newEditor(t, newMemStore(seedBox("a", 0.1, 0.1)), true)
	require.NoError(t, ed.SetTool(interaction.ToolEdit))

	got, err := ed.EditFields("a", models.BoxPatch{
		X:     models.Ptr(0.9),
		Links: &[]models.Link{{URL: " https://trello.com/b/1 "}, {URL: ""}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.1, got.X)
	assert.Equal(t, []models.Link{{URL: "https://trello.com/b/1", LinkType: models.LinkProjectTracker}}, got.Links)
}

func TestCreateFromForm(t *testing.T) {
	store := newMemStore()
	ed, _ := newEditor(t, store, true)

	b, err := ed.Create(context.Background(), models.Box{X: 0.99, Y: 0.5, Name: "  Lab  ", Color: "bad"})
	require.NoError(t, err)

	assert.Equal(t, "Lab", b.Name)
	assert.InDelta(t, 0.94, b.X, 1e-9)
	assert.Equal(t, geometry.DefaultBoxWidth, b.Width)
	assert.Equal(t, "#3b82f6", b.Color)
	assert.Len(t, ed.Boxes(), 1)
}

func TestOpenDeepLink(t *testing.T) {
	ed, _ := newEditor(t, newMemStore(seedBox("a", 0.45, 0.45)), false)
	stage := geometry.Size{Width: 800, Height: 600}
	ed.SetStageSize(stage)

	assert.False(t, ed.OpenDeepLink("missing"))
	require.True(t, ed.OpenDeepLink("a"))

	st := ed.State()
	assert.Equal(t, "a", st.Viewing)

	// центр коробки: (500, 500) в пикселях изображения
	world := st.Fit.ImageToStage(geometry.Point{X: 500, Y: 500})
	screen := st.Viewport.WorldToScreen(world)
	assert.InDelta(t, 400, screen.X, 1e-9)
	assert.InDelta(t, 300, screen.Y, 1e-9)
}

func TestGesturesCommitOnEnd(t *testing.T) {
	ed, _ := newEditor(t, newMemStore(), false)

	_, err := ed.Pan(PhaseStart, geometry.Point{X: 0, Y: 0})
	require.NoError(t, err)
	_, err = ed.Pan(PhaseMove, geometry.Point{X: 30, Y: 40})
	require.NoError(t, err)
	assert.True(t, ed.State().InGesture)
	assert.Zero(t, ed.State().Viewport.Pan.X)

	tr, err := ed.Pan(PhaseEnd, geometry.Point{})
	require.NoError(t, err)
	assert.Equal(t, 30.0, tr.Pan.X)

	_, err = ed.Pinch("twist", geometry.Point{}, geometry.Point{})
	assert.Error(t, err)

	assert.Equal(t, 1.0, ed.ResetView().Zoom)
}

func TestStateNodes(t *testing.T) {
	ed, _ := newEditor(t, newMemStore(seedBox("a", 0.1, 0.1)), true)

	st := ed.State()
	require.Len(t, st.Nodes, 1)
	assert.Equal(t, geometry.Rect{X: 100, Y: 100, Width: 100, Height: 100}, st.Nodes[0].Rect)
	assert.Equal(t, "B", st.Nodes[0].Glyph)
	assert.Equal(t, []string{}, st.Flashing)
}

// ============================================================
// Registry
// ============================================================

func TestRegistry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	store := newMemStore()
	made := 0
	reg := NewRegistry(func(u User) *Editor {
		made++
		return New(store, u, Options{Image: square, Log: zerolog.Nop(), Now: clk.Now})
	}, 10*time.Minute, clk.Now, zerolog.Nop())

	ed1, created := reg.Acquire("tok", User{ID: "u1", CanEdit: true})
	assert.True(t, created)
	ed2, created := reg.Acquire("tok", User{ID: "u1", CanEdit: false})
	assert.False(t, created)
	assert.Same(t, ed1, ed2)
	assert.Equal(t, 1, made)
	assert.False(t, ed2.State().User.CanEdit, "roles refreshed on every acquire")

	clk.Advance(5 * time.Minute)
	assert.Zero(t, reg.Sweep())

	clk.Advance(11 * time.Minute)
	assert.Equal(t, 1, reg.Sweep())
	assert.Zero(t, reg.Len())

	reg.Acquire("other", User{ID: "u2"})
	reg.Drop("other")
	assert.Zero(t, reg.Len())
}
