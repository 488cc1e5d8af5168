package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"facility-map/internal/mapeditor/editor"
	"facility-map/internal/mapeditor/geometry"
	"facility-map/internal/mapeditor/interaction"
	"facility-map/internal/mapeditor/models"
)

// ============================================================
// Editor Requests
// ============================================================

type toolRequest struct {
	Tool string `json:"tool"`
}

type clickRequest struct {
	BoxID string  `json:"box_id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type dragRequest struct {
	BoxID string  `json:"box_id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type resizeRequest struct {
	BoxID   string          `json:"box_id"`
	Corner  string          `json:"corner"`
	ScaleX  float64         `json:"scale_x"`
	ScaleY  float64         `json:"scale_y"`
	Pointer *geometry.Point `json:"pointer,omitempty"`
}

type fieldsRequest struct {
	BoxID string          `json:"box_id"`
	Patch models.BoxPatch `json:"patch"`
}

type wheelRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"delta_y"`
}

type pinchRequest struct {
	Phase   editor.Phase     `json:"phase"`
	Touches []geometry.Point `json:"touches"`
}

type panRequest struct {
	Phase editor.Phase `json:"phase"`
	X     float64      `json:"x"`
	Y     float64      `json:"y"`
}

// ============================================================
// Editor State
// ============================================================

func (h *MapHandler) EditorState(c fiber.Ctx) error {
	return c.JSON(h.editorFor(c).State())
}

// EditorLoad перечитывает коробки. ?box=<id> открывает коробку по ссылке;
// параметр клиент убирает из адреса в любом случае.
func (h *MapHandler) EditorLoad(c fiber.Ctx) error {
	ed := h.editorFor(c)
	stale := ed.Load(context.Background()) != nil

	resp := fiber.Map{"stale": stale}
	if id := c.Query("box"); id != "" {
		resp["deep_link"] = ed.OpenDeepLink(id)
		resp["strip_query"] = true
	}
	resp["state"] = ed.State()
	return c.JSON(resp)
}

func (h *MapHandler) EditorTool(c fiber.Ctx) error {
	var req toolRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}
	tool, err := interaction.ParseTool(req.Tool)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ed := h.editorFor(c)
	if err := ed.SetTool(tool); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ed.State())
}

func (h *MapHandler) EditorStage(c fiber.Ctx) error {
	var req geometry.Size
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}
	if !req.Valid() {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "width and height must be positive"})
	}

	ed := h.editorFor(c)
	ed.SetStageSize(req)
	return c.JSON(ed.State())
}

// EditorClick обрабатывает клик по коробке (box_id) или по пустому месту сцены (x, y).
func (h *MapHandler) EditorClick(c fiber.Ctx) error {
	var req clickRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}

	ed := h.editorFor(c)
	if req.BoxID != "" {
		act, err := ed.Click(req.BoxID)
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(fiber.Map{"action": act, "state": ed.State()})
	}

	created, err := ed.ClickEmpty(context.Background(), geometry.Point{X: req.X, Y: req.Y})
	if err != nil {
		return h.fail(c, err)
	}
	resp := fiber.Map{"state": ed.State()}
	if created != nil {
		resp["created"] = created
	}
	return c.JSON(resp)
}

func (h *MapHandler) EditorCloseDetail(c fiber.Ctx) error {
	ed := h.editorFor(c)
	ed.CloseDetail()
	return c.JSON(ed.State())
}

func (h *MapHandler) EditorDrag(c fiber.Ctx) error {
	var req dragRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}

	b, err := h.editorFor(c).DragEnd(req.BoxID, req.X, req.Y)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(b)
}

// EditorResize принимает либо масштаб узла (scale_x, scale_y), либо конечную
// позицию тянутого угла (pointer) в пикселях изображения.
func (h *MapHandler) EditorResize(c fiber.Ctx) error {
	var req resizeRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}
	corner, err := geometry.ParseCorner(req.Corner)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ed := h.editorFor(c)
	var b models.Box
	if req.Pointer != nil {
		b, err = ed.ResizeTo(req.BoxID, corner, *req.Pointer)
	} else {
		b, err = ed.ResizeEnd(req.BoxID, corner, req.ScaleX, req.ScaleY)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(b)
}

func (h *MapHandler) EditorFields(c fiber.Ctx) error {
	var req fieldsRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}

	b, err := h.editorFor(c).EditFields(req.BoxID, req.Patch)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(b)
}

func (h *MapHandler) EditorEnterPlacement(c fiber.Ctx) error {
	ed := h.editorFor(c)
	if err := ed.EnterPlacement(); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ed.State())
}

func (h *MapHandler) EditorExitPlacement(c fiber.Ctx) error {
	ed := h.editorFor(c)
	ed.ExitPlacement()
	return c.JSON(ed.State())
}

// EditorSave сохраняет буфер правок; частичные неудачи перечислены в failed.
func (h *MapHandler) EditorSave(c fiber.Ctx) error {
	ed := h.editorFor(c)
	report, err := ed.Save(context.Background())
	if err != nil {
		return h.fail(c, err)
	}

	failed := make([]fiber.Map, 0, len(report.Failed))
	for _, f := range report.Failed {
		failed = append(failed, fiber.Map{"id": f.ID, "error": f.Err.Error()})
	}
	saved := report.Saved
	if saved == nil {
		saved = []string{}
	}
	return c.JSON(fiber.Map{"saved": saved, "failed": failed, "state": ed.State()})
}

func (h *MapHandler) EditorCancel(c fiber.Ctx) error {
	ed := h.editorFor(c)
	restored := ed.Cancel()
	return c.JSON(fiber.Map{"restored": restored, "state": ed.State()})
}

func (h *MapHandler) EditorDelete(c fiber.Ctx) error {
	ed := h.editorFor(c)
	if err := ed.Delete(context.Background(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ed.State())
}

// ============================================================
// Viewport
// ============================================================

func (h *MapHandler) EditorWheel(c fiber.Ctx) error {
	var req wheelRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(h.editorFor(c).Wheel(geometry.Point{X: req.X, Y: req.Y}, req.DeltaY))
}

// EditorPinch: start и move требуют двух касаний.
func (h *MapHandler) EditorPinch(c fiber.Ctx) error {
	var req pinchRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}

	var a, b geometry.Point
	if req.Phase != editor.PhaseEnd {
		if len(req.Touches) < 2 {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "two touches required"})
		}
		a, b = req.Touches[0], req.Touches[1]
	}

	tr, err := h.editorFor(c).Pinch(req.Phase, a, b)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(tr)
}

func (h *MapHandler) EditorPan(c fiber.Ctx) error {
	var req panRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}

	tr, err := h.editorFor(c).Pan(req.Phase, geometry.Point{X: req.X, Y: req.Y})
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(tr)
}

func (h *MapHandler) EditorResetView(c fiber.Ctx) error {
	return c.JSON(h.editorFor(c).ResetView())
}
