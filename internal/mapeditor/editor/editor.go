package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"facility-map/internal/mapeditor/geometry"
	"facility-map/internal/mapeditor/interaction"
	"facility-map/internal/mapeditor/links"
	"facility-map/internal/mapeditor/models"
	"facility-map/internal/mapeditor/render"
	"facility-map/internal/mapeditor/session"
	"facility-map/internal/mapeditor/viewport"
)

// ============================================================
// Map Editor
// ============================================================

var (
	ErrForbidden  = errors.New("edit permission required")
	ErrUnknownBox = errors.New("unknown box")
	ErrWrongTool  = errors.New("edit tool required")
	ErrNotPlacing = errors.New("placement mode is off")
)

// Store описывает хранилище коробок, с которым работает редактор.
type Store interface {
	List(ctx context.Context) ([]models.Box, error)
	Create(ctx context.Context, b models.Box) (models.Box, error)
	Update(ctx context.Context, id string, patch models.BoxPatch) error
	SoftDelete(ctx context.Context, id string) error
}

// User описывает текущего пользователя редактора.
type User struct {
	ID      string `json:"id"`
	CanEdit bool   `json:"can_edit"`
}

type Options struct {
	Image geometry.Size
	Stage geometry.Size
	Log   zerolog.Logger
	Now   func() time.Time
}

// Editor хранит состояние карты одного клиента: коробки, инструмент, выделение,
// камера и буфер несохранённых изменений. Все операции сериализуются мьютексом,
// как обработчики событий в однопоточном UI.
type Editor struct {
	mu    sync.Mutex
	store Store
	user  User
	log   zerolog.Logger

	boxes []models.Box
	index map[string]int

	session *session.Session
	view    *viewport.Viewport
	clicks  *interaction.Clicker
	flash   *interaction.Flash

	tool     interaction.Tool
	image    geometry.Size
	stage    geometry.Size
	placing  bool
	selected string
	viewing  string
	formOpen bool
}

func New(store Store, user User, opts Options) *Editor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if !opts.Image.Valid() {
		opts.Image = geometry.Size{Width: 1920, Height: 1080}
	}
	if !opts.Stage.Valid() {
		opts.Stage = opts.Image
	}
	return &Editor{
		store:   store,
		user:    user,
		log:     opts.Log,
		index:   make(map[string]int),
		session: session.New(opts.Log),
		view:    viewport.New(),
		clicks:  interaction.NewClicker(opts.Now),
		flash:   interaction.NewFlash(opts.Now),
		tool:    interaction.ToolSelect,
		image:   opts.Image,
		stage:   opts.Stage,
	}
}

// ============================================================
// Arena
// ============================================================

func (e *Editor) reindex() {
	e.index = make(map[string]int, len(e.boxes))
	for i, b := range e.boxes {
		e.index[b.ID] = i
	}
}

func (e *Editor) get(id string) (models.Box, bool) {
	i, ok := e.index[id]
	if !ok {
		return models.Box{}, false
	}
	return e.boxes[i], true
}

// put заменяет коробку по id или добавляет её в конец.
func (e *Editor) put(b models.Box) {
	if i, ok := e.index[b.ID]; ok {
		e.boxes[i] = b
		return
	}
	e.index[b.ID] = len(e.boxes)
	e.boxes = append(e.boxes, b)
}

func (e *Editor) remove(id string) (models.Box, bool) {
	i, ok := e.index[id]
	if !ok {
		return models.Box{}, false
	}
	b := e.boxes[i]
	e.boxes = slices.Delete(e.boxes, i, i+1)
	e.reindex()
	return b, true
}

func (e *Editor) requireEdit() error {
	if !e.user.CanEdit {
		return ErrForbidden
	}
	if e.tool != interaction.ToolEdit {
		return ErrWrongTool
	}
	return nil
}

// ============================================================
// Loading
// ============================================================

// Load перечитывает коробки из хранилища. Несохранённые изменения накладываются
// поверх свежих строк; при ошибке остаются прежние данные.
func (e *Editor) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, err := e.store.List(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("load boxes")
		return fmt.Errorf("load boxes: %w", err)
	}

	e.boxes = rows
	e.reindex()

	for id, draft := range e.session.Pending() {
		i, ok := e.index[id]
		if !ok {
			e.session.Discard(id)
			continue
		}
		e.boxes[i] = draft.Apply(e.boxes[i])
	}

	if _, ok := e.index[e.selected]; !ok {
		e.selected, e.formOpen = "", false
	}
	if _, ok := e.index[e.viewing]; !ok {
		e.viewing = ""
	}
	e.log.Debug().Int("boxes", len(e.boxes)).Msg("boxes loaded")
	return nil
}

// Boxes возвращает копию текущего списка коробок.
func (e *Editor) Boxes() []models.Box {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Box, len(e.boxes))
	for i, b := range e.boxes {
		out[i] = b.Clone()
	}
	return out
}

// ============================================================
// Tools & user
// ============================================================

func (e *Editor) SetUser(u User) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.user = u
	if !u.CanEdit {
		e.placing = false
	}
}

func (e *Editor) SetTool(t interaction.Tool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t == interaction.ToolEdit && !e.user.CanEdit {
		return ErrForbidden
	}
	e.tool = t
	e.clicks.Reset()
	if t == interaction.ToolSelect {
		e.placing = false
		e.selected, e.formOpen = "", false
	}
	return nil
}

func (e *Editor) SetImageSize(s geometry.Size) {
	if !s.Valid() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.image = s
}

func (e *Editor) SetStageSize(s geometry.Size) {
	if !s.Valid() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stage = s
}

// ============================================================
// Clicks & selection
// ============================================================

// Click обрабатывает клик по коробке.
func (e *Editor) Click(id string) (interaction.Action, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.get(id); !ok {
		return interaction.Action{}, fmt.Errorf("%s: %w", id, ErrUnknownBox)
	}

	act := e.clicks.Click(id, e.tool, e.user.CanEdit)
	if act.OpenDetail {
		e.viewing = id
		return act, nil
	}

	e.selectForEdit(id)
	if act.OpenEditForm {
		e.formOpen = true
	}
	return act, nil
}

// selectForEdit делает коробку редактируемой. Несохранённые изменения других
// коробок откатываются, чтобы в правке была только одна.
func (e *Editor) selectForEdit(id string) {
	if e.selected == id {
		return
	}
	for _, b := range e.session.RevertOthers(id) {
		if _, ok := e.index[b.ID]; ok {
			e.put(b)
		}
	}
	e.selected = id
	e.viewing = ""
	e.formOpen = false
}

// ClickEmpty обрабатывает клик по пустому месту сцены (экранные координаты).
// В режиме размещения создаёт коробку, иначе снимает выделение и закрывает карточку.
func (e *Editor) ClickEmpty(ctx context.Context, screen geometry.Point) (*models.Box, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.placing {
		b, err := e.placeAt(ctx, screen)
		if err != nil {
			return nil, err
		}
		return &b, nil
	}
	e.viewing = ""
	if e.session.Len() == 0 {
		e.selected, e.formOpen = "", false
	}
	return nil, nil
}

// CloseDetail закрывает карточку просмотра.
func (e *Editor) CloseDetail() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewing = ""
}

// ============================================================
// Placement & creation
// ============================================================

func (e *Editor) EnterPlacement() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireEdit(); err != nil {
		return err
	}
	e.placing = true
	return nil
}

func (e *Editor) ExitPlacement() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.placing = false
}

// PlaceAt создаёт коробку размера по умолчанию в точке экрана и выходит из
// режима размещения. Вне режима размещения возвращает ErrNotPlacing.
func (e *Editor) PlaceAt(ctx context.Context, screen geometry.Point) (models.Box, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.placing {
		return models.Box{}, ErrNotPlacing
	}
	return e.placeAt(ctx, screen)
}

// screenToFraction проводит экранную точку через обратную камеру и вписывание
// в долевые координаты изображения.
func (e *Editor) screenToFraction(screen geometry.Point) geometry.Point {
	world := e.view.Transform().ScreenToWorld(screen)
	img := geometry.FitScale(e.stage, e.image).StageToImage(world)
	return geometry.Point{X: img.X / e.image.Width, Y: img.Y / e.image.Height}
}

func (e *Editor) placeAt(ctx context.Context, screen geometry.Point) (models.Box, error) {
	p := e.screenToFraction(screen)
	draft := models.Box{
		X:         geometry.Clamp(p.X, 0, 1-geometry.DefaultBoxWidth),
		Y:         geometry.Clamp(p.Y, 0, 1-geometry.DefaultBoxHeight),
		Width:     geometry.DefaultBoxWidth,
		Height:    geometry.DefaultBoxHeight,
		Color:     render.DefaultColor,
		Links:     []models.Link{},
		CreatedBy: e.user.ID,
	}
	e.placing = false

	created, err := e.store.Create(ctx, draft)
	if err != nil {
		e.log.Error().Err(err).Msg("place box")
		return models.Box{}, fmt.Errorf("create box: %w", err)
	}
	e.insertCreated(created)
	e.formOpen = true
	return created.Clone(), nil
}

// Create создаёт коробку из формы. Пустой размер заменяется размером по умолчанию.
func (e *Editor) Create(ctx context.Context, form models.Box) (models.Box, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.user.CanEdit {
		return models.Box{}, ErrForbidden
	}

	w, h := form.Width, form.Height
	if w <= 0 || w > 1 {
		w = geometry.DefaultBoxWidth
	}
	if h <= 0 || h > 1 {
		h = geometry.DefaultBoxHeight
	}
	draft := form.Clone()
	draft.Width, draft.Height = w, h
	draft.X = geometry.Clamp(form.X, 0, 1-w)
	draft.Y = geometry.Clamp(form.Y, 0, 1-h)
	draft.Name = strings.TrimSpace(form.Name)
	draft.Color = render.Color(form)
	draft.Links = links.Normalize(form.Links)
	draft.CreatedBy = e.user.ID

	created, err := e.store.Create(ctx, draft)
	if err != nil {
		e.log.Error().Err(err).Msg("create box")
		return models.Box{}, fmt.Errorf("create box: %w", err)
	}
	e.insertCreated(created)
	return created.Clone(), nil
}

func (e *Editor) insertCreated(b models.Box) {
	e.put(b)
	e.flash.Start(b.ID)
	if e.user.CanEdit && e.tool == interaction.ToolEdit {
		e.selectForEdit(b.ID)
	}
	e.log.Info().Str("box_id", b.ID).Str("user_id", e.user.ID).Msg("box created")
}

// ============================================================
// Geometry edits
// ============================================================

func (e *Editor) editable(id string) (models.Box, error) {
	if err := e.requireEdit(); err != nil {
		return models.Box{}, err
	}
	b, ok := e.get(id)
	if !ok {
		return models.Box{}, fmt.Errorf("%s: %w", id, ErrUnknownBox)
	}
	e.selectForEdit(id)
	return b, nil
}

func (e *Editor) record(b models.Box, patch models.BoxPatch) models.Box {
	updated := e.session.RecordChange(b, patch)
	e.put(updated)
	return updated.Clone()
}

// DragEnd фиксирует конечную позицию перетаскивания (пиксели изображения).
func (e *Editor) DragEnd(id string, px, py float64) (models.Box, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.editable(id)
	if err != nil {
		return models.Box{}, err
	}
	patch := geometry.DragEnd(b, px, py, e.image.Width, e.image.Height)
	return e.record(b, patch), nil
}

// ResizeEnd «запекает» масштаб узла в размер коробки.
func (e *Editor) ResizeEnd(id string, corner geometry.Corner, scaleX, scaleY float64) (models.Box, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.editable(id)
	if err != nil {
		return models.Box{}, err
	}
	patch := geometry.ResizeEnd(b, corner, scaleX, scaleY, e.image.Width, e.image.Height)
	return e.record(b, patch), nil
}

// ResizeTo изменяет размер по конечной позиции тянутого угла (пиксели изображения).
func (e *Editor) ResizeTo(id string, corner geometry.Corner, pointer geometry.Point) (models.Box, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.editable(id)
	if err != nil {
		return models.Box{}, err
	}
	patch := geometry.ResizeTo(b, corner, pointer, e.image.Width, e.image.Height)
	return e.record(b, patch), nil
}

// EditFields применяет изменения полей формы. Геометрия через форму не меняется.
func (e *Editor) EditFields(id string, patch models.BoxPatch) (models.Box, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.editable(id)
	if err != nil {
		return models.Box{}, err
	}

	patch.X, patch.Y, patch.Width, patch.Height = nil, nil, nil, nil
	if patch.Links != nil {
		patch.Links = models.Ptr(links.Normalize(*patch.Links))
	}
	if patch.TextSize.Value != nil && *patch.TextSize.Value <= 0 {
		patch.TextSize = models.Null()
	}
	if patch.IsEmpty() {
		return b.Clone(), nil
	}
	return e.record(b, patch), nil
}

// ============================================================
// Save / Cancel / Delete
// ============================================================

// Save сохраняет все несохранённые изменения и выходит из режима правки.
// Запросы не отменяются при обрыве клиента. Коробки, обновление которых не
// удалось, возвращаются к исходному состоянию.
func (e *Editor) Save(ctx context.Context) (session.SaveReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.user.CanEdit {
		return session.SaveReport{}, ErrForbidden
	}

	report := e.session.Save(context.WithoutCancel(ctx), e.store)
	for _, f := range report.Failed {
		if _, ok := e.index[f.ID]; ok {
			e.put(f.Original)
		}
	}
	e.selected, e.formOpen = "", false

	e.log.Info().Int("saved", len(report.Saved)).Int("failed", len(report.Failed)).Msg("edit session saved")
	return report, nil
}

// Cancel возвращает затронутые коробки к снимкам и выходит из режима правки.
func (e *Editor) Cancel() []models.Box {
	e.mu.Lock()
	defer e.mu.Unlock()

	restored := e.session.Cancel()
	for _, b := range restored {
		if _, ok := e.index[b.ID]; ok {
			e.put(b)
		}
	}
	e.selected, e.formOpen = "", false
	return restored
}

// Delete мягко удаляет коробку. Коробка убирается сразу; если хранилище
// вернуло ошибку, она возвращается на место.
func (e *Editor) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.user.CanEdit {
		return ErrForbidden
	}
	pos, ok := e.index[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownBox)
	}

	original, touched := e.session.Snapshot(id)
	b, _ := e.remove(id)
	e.session.Discard(id)
	if e.selected == id {
		e.selected, e.formOpen = "", false
	}
	if e.viewing == id {
		e.viewing = ""
	}

	if err := e.store.SoftDelete(context.WithoutCancel(ctx), id); err != nil {
		e.log.Error().Err(err).Str("box_id", id).Msg("delete box")
		if touched {
			b = original
		}
		e.boxes = slices.Insert(e.boxes, pos, b)
		e.reindex()
		return fmt.Errorf("delete box: %w", err)
	}
	e.log.Info().Str("box_id", id).Str("user_id", e.user.ID).Msg("box deleted")
	return nil
}

// ============================================================
// Deep links
// ============================================================

// OpenDeepLink центрирует камеру на коробке и открывает её карточку.
// Возвращает false, если коробки нет.
func (e *Editor) OpenDeepLink(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.get(id)
	if !ok {
		return false
	}
	center := geometry.ApplyTransform(b, e.image.Width, e.image.Height).Center()
	world := geometry.FitScale(e.stage, e.image).ImageToStage(center)
	e.view.CenterOn(world, e.stage)
	e.viewing = id
	return true
}

// ============================================================
// Viewport
// ============================================================

func (e *Editor) Wheel(pointer geometry.Point, deltaY float64) viewport.Transform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view.Wheel(pointer, deltaY)
}

type Phase string

const (
	PhaseStart Phase = "start"
	PhaseMove  Phase = "move"
	PhaseEnd   Phase = "end"
)

func (e *Editor) Pinch(phase Phase, a, b geometry.Point) (viewport.Transform, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch phase {
	case PhaseStart:
		e.view.PinchStart(a, b)
		return e.view.Live(), nil
	case PhaseMove:
		return e.view.PinchMove(a, b), nil
	case PhaseEnd:
		return e.view.PinchEnd(), nil
	}
	return viewport.Transform{}, fmt.Errorf("unknown phase %q", phase)
}

func (e *Editor) Pan(phase Phase, p geometry.Point) (viewport.Transform, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch phase {
	case PhaseStart:
		e.view.PanStart(p)
		return e.view.Live(), nil
	case PhaseMove:
		return e.view.PanMove(p), nil
	case PhaseEnd:
		return e.view.PanEnd(), nil
	}
	return viewport.Transform{}, fmt.Errorf("unknown phase %q", phase)
}

func (e *Editor) ResetView() viewport.Transform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view.Reset()
}
