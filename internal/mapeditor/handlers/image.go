package handlers

import (
	"io"
	"net/http"
	"os"

	"github.com/gofiber/fiber/v3"

	"facility-map/internal/mapeditor/editor"
	"facility-map/internal/mapeditor/geometry"
)

// ============================================================
// Background Image
// ============================================================

const maxImageBytes = 32 << 20

// ImageInfo возвращает натуральный размер фона.
func (h *MapHandler) ImageInfo(c fiber.Ctx) error {
	info, _ := h.background()
	return c.JSON(info)
}

// Image отдаёт файл фонового изображения.
func (h *MapHandler) Image(c fiber.Ctx) error {
	info, _ := h.background()
	if info.Placeholder {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "background not configured"})
	}

	data, err := os.ReadFile(info.Path)
	if err != nil {
		h.log.Error().Err(err).Str("path", info.Path).Msg("read background")
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "background not found"})
	}
	c.Set("Content-Type", info.ContentType)
	return c.Send(data)
}

// UploadImage заменяет фон карты (multipart, поле file). Долевые координаты
// коробок не меняются; редакторы клиентов получают новый натуральный размер.
func (h *MapHandler) UploadImage(c fiber.Ctx) error {
	if !currentUser(c).CanEdit {
		return h.fail(c, editor.ErrForbidden)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	if fileHeader.Size > maxImageBytes {
		return c.Status(http.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "file too large"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "cannot open file"})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "cannot read file"})
	}

	info, err := h.storage.SaveBackground(fileHeader.Filename, data)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	h.setImage(info)

	size := geometry.Size{Width: info.Width, Height: info.Height}
	h.registry.Each(func(ed *editor.Editor) { ed.SetImageSize(size) })

	h.log.Info().
		Str("user_id", currentUser(c).ID).
		Float64("width", info.Width).
		Float64("height", info.Height).
		Msg("background replaced")
	return c.Status(http.StatusCreated).JSON(info)
}
