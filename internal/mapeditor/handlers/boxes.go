package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"facility-map/internal/mapeditor/editor"
	"facility-map/internal/mapeditor/geometry"
	"facility-map/internal/mapeditor/links"
	"facility-map/internal/mapeditor/models"
	"facility-map/internal/mapeditor/render"
	"facility-map/internal/mapeditor/repository"
)

// ============================================================
// Boxes
// ============================================================

// ListBoxes возвращает активные коробки в порядке создания.
func (h *MapHandler) ListBoxes(c fiber.Ctx) error {
	boxes, err := h.store.List(context.Background())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(boxes)
}

// GetBox возвращает одну активную коробку.
func (h *MapHandler) GetBox(c fiber.Ctx) error {
	b, err := h.activeBox(c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(b)
}

// CreateBox создаёт коробку из формы через редактор клиента, чтобы она сразу
// появилась на его сцене с анимацией.
func (h *MapHandler) CreateBox(c fiber.Ctx) error {
	var form models.Box
	if err := decode(c, &form); err != nil {
		return h.fail(c, err)
	}

	b, err := h.editorFor(c).Create(context.Background(), form)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(b)
}

// PatchBox применяет частичное изменение сразу, минуя буфер редактора.
// Геометрия приводится к инвариантам относительно текущего фона.
func (h *MapHandler) PatchBox(c fiber.Ctx) error {
	if !currentUser(c).CanEdit {
		return h.fail(c, editor.ErrForbidden)
	}

	var patch models.BoxPatch
	if err := decode(c, &patch); err != nil {
		return h.fail(c, err)
	}
	if patch.IsEmpty() {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "nothing to update"})
	}

	ctx := context.Background()
	id := c.Params("id")
	current, err := h.activeBox(id)
	if err != nil {
		return h.fail(c, err)
	}

	if patch.HasGeometry() {
		size := h.imageSize()
		r := geometry.ClampFractional(geometry.FractionalRect(patch.Apply(current)), size.Width, size.Height)
		patch.X, patch.Y = models.Ptr(r.X), models.Ptr(r.Y)
		patch.Width, patch.Height = models.Ptr(r.Width), models.Ptr(r.Height)
	}
	if patch.Links != nil {
		patch.Links = models.Ptr(links.Normalize(*patch.Links))
	}

	if err := h.store.Update(ctx, id, patch); err != nil {
		return h.fail(c, err)
	}
	updated, err := h.store.Get(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(updated)
}

// DeleteBox мягко удаляет коробку.
func (h *MapHandler) DeleteBox(c fiber.Ctx) error {
	if !currentUser(c).CanEdit {
		return h.fail(c, editor.ErrForbidden)
	}
	if err := h.store.SoftDelete(context.Background(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// BoxLink возвращает ссылку для шаринга и внешние ссылки коробки.
func (h *MapHandler) BoxLink(c fiber.Ctx) error {
	b, err := h.activeBox(c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"url":   links.ShareURL(h.baseURL, b.ID),
		"links": links.Effective(b),
	})
}

// BoxQR отдаёт PNG с QR-кодом ссылки на коробку.
func (h *MapHandler) BoxQR(c fiber.Ctx) error {
	b, err := h.activeBox(c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}

	size, _ := strconv.Atoi(c.Query("size"))
	png, err := links.QRCode(links.ShareURL(h.baseURL, b.ID), size)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set("Content-Type", "image/png")
	return c.Send(png)
}

func (h *MapHandler) activeBox(id string) (models.Box, error) {
	b, err := h.store.Get(context.Background(), id)
	if err != nil {
		return models.Box{}, err
	}
	if !b.IsActive {
		return models.Box{}, repository.ErrBoxNotFound
	}
	return b, nil
}

// ============================================================
// Snapshots
// ============================================================

// snapshotScene строит сцену по сохранённому состоянию карты.
// ?box=<id> подсвечивает коробку как просматриваемую.
func (h *MapHandler) snapshotScene(c fiber.Ctx) (*render.Scene, error) {
	boxes, err := h.store.List(context.Background())
	if err != nil {
		return nil, err
	}
	info, _ := h.background()

	scene := &render.Scene{
		Width:   info.Width,
		Height:  info.Height,
		Boxes:   boxes,
		Viewing: c.Query("box"),
	}
	if !info.Placeholder {
		// относительно /map/snapshot.svg, в том числе за шлюзом
		scene.Background = "image"
	}
	return scene, nil
}

func (h *MapHandler) SnapshotSVG(c fiber.Ctx) error {
	scene, err := h.snapshotScene(c)
	if err != nil {
		return h.fail(c, err)
	}
	out, err := h.svg.SVG(scene)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set("Content-Type", "image/svg+xml")
	return c.SendString(out)
}

func (h *MapHandler) SnapshotPNG(c fiber.Ctx) error {
	scene, err := h.snapshotScene(c)
	if err != nil {
		return h.fail(c, err)
	}
	_, bg := h.background()

	width, _ := strconv.Atoi(c.Query("width"))
	out, err := h.png.PNG(scene, bg, width)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set("Content-Type", "image/png")
	return c.Send(out)
}
