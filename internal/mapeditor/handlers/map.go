package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"facility-map/internal/common/logging"
	"facility-map/internal/mapeditor/asset"
	"facility-map/internal/mapeditor/editor"
	"facility-map/internal/mapeditor/geometry"
	"facility-map/internal/mapeditor/models"
	"facility-map/internal/mapeditor/render"
	"facility-map/internal/mapeditor/repository"
	"facility-map/internal/mapeditor/service"
)

// ============================================================
// Map Handler
// ============================================================

const (
	localUser  = "user"
	localToken = "token"
)

// Resolver разрешает bearer-токен в пользователя.
type Resolver interface {
	Resolve(ctx context.Context, token string) (editor.User, error)
}

// BoxStore описывает хранилище коробок, используемое обработчиками напрямую.
type BoxStore interface {
	editor.Store
	Get(ctx context.Context, id string) (models.Box, error)
}

type Options struct {
	BaseURL string
	IdleTTL time.Duration
	Log     zerolog.Logger
}

type MapHandler struct {
	store    BoxStore
	resolver Resolver
	storage  *asset.Storage
	registry *editor.Registry
	svg      *render.Renderer
	png      *render.Rasterizer
	baseURL  string
	log      zerolog.Logger

	mu    sync.RWMutex
	image asset.Info
	bg    image.Image
}

func NewMapHandler(store BoxStore, resolver Resolver, storage *asset.Storage, img asset.Info, opts Options) (*MapHandler, error) {
	raster, err := render.NewRasterizer()
	if err != nil {
		return nil, err
	}

	h := &MapHandler{
		store:    store,
		resolver: resolver,
		storage:  storage,
		svg:      render.NewRenderer(),
		png:      raster,
		baseURL:  opts.BaseURL,
		log:      opts.Log,
	}
	h.setImage(img)

	editorLog := logging.Component(opts.Log, "editor")
	h.registry = editor.NewRegistry(func(u editor.User) *editor.Editor {
		return editor.New(store, u, editor.Options{Image: h.imageSize(), Log: editorLog})
	}, opts.IdleTTL, nil, editorLog)
	return h, nil
}

// Registry возвращает редакторы клиентов; вызывающий запускает Registry().Run.
func (h *MapHandler) Registry() *editor.Registry {
	return h.registry
}

func (h *MapHandler) setImage(info asset.Info) {
	bg, err := asset.Decode(info)
	if err != nil {
		h.log.Warn().Err(err).Str("path", info.Path).Msg("background not decodable, png snapshots without it")
	}

	h.mu.Lock()
	h.image, h.bg = info, bg
	h.mu.Unlock()
}

func (h *MapHandler) background() (asset.Info, image.Image) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.image, h.bg
}

func (h *MapHandler) imageSize() geometry.Size {
	info, _ := h.background()
	return geometry.Size{Width: info.Width, Height: info.Height}
}

// ============================================================
// Routes
// ============================================================

func (h *MapHandler) Routes(r fiber.Router) {
	auth := h.identify

	r.Get("/boxes", auth, h.ListBoxes)
	r.Post("/boxes", auth, h.CreateBox)
	r.Get("/boxes/:id", auth, h.GetBox)
	r.Patch("/boxes/:id", auth, h.PatchBox)
	r.Delete("/boxes/:id", auth, h.DeleteBox)
	r.Get("/boxes/:id/link", auth, h.BoxLink)
	r.Get("/boxes/:id/qr", auth, h.BoxQR)

	r.Get("/map/info", auth, h.ImageInfo)
	r.Get("/map/image", auth, h.Image)
	r.Post("/map/image", auth, h.UploadImage)
	r.Get("/map/snapshot.svg", auth, h.SnapshotSVG)
	r.Get("/map/snapshot.png", auth, h.SnapshotPNG)

	r.Get("/editor", auth, h.EditorState)
	r.Post("/editor/load", auth, h.EditorLoad)
	r.Post("/editor/tool", auth, h.EditorTool)
	r.Post("/editor/stage", auth, h.EditorStage)
	r.Post("/editor/click", auth, h.EditorClick)
	r.Post("/editor/close-detail", auth, h.EditorCloseDetail)
	r.Post("/editor/drag", auth, h.EditorDrag)
	r.Post("/editor/resize", auth, h.EditorResize)
	r.Post("/editor/fields", auth, h.EditorFields)
	r.Post("/editor/placement", auth, h.EditorEnterPlacement)
	r.Delete("/editor/placement", auth, h.EditorExitPlacement)
	r.Post("/editor/save", auth, h.EditorSave)
	r.Post("/editor/cancel", auth, h.EditorCancel)
	r.Post("/editor/wheel", auth, h.EditorWheel)
	r.Post("/editor/pinch", auth, h.EditorPinch)
	r.Post("/editor/pan", auth, h.EditorPan)
	r.Post("/editor/reset-view", auth, h.EditorResetView)
	r.Delete("/editor/boxes/:id", auth, h.EditorDelete)
}

// ============================================================
// Identity
// ============================================================

// identify разрешает bearer-токен и кладёт пользователя в Locals.
func (h *MapHandler) identify(c fiber.Ctx) error {
	header := c.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	token := strings.TrimPrefix(header, "Bearer ")

	user, err := h.resolver.Resolve(context.Background(), token)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		h.log.Error().Err(err).Msg("resolve session")
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "auth service unavailable"})
	}

	c.Locals(localUser, user)
	c.Locals(localToken, token)
	return c.Next()
}

func currentUser(c fiber.Ctx) editor.User {
	u, _ := c.Locals(localUser).(editor.User)
	return u
}

// editorFor возвращает редактор клиента; новый редактор сразу загружается.
func (h *MapHandler) editorFor(c fiber.Ctx) *editor.Editor {
	token, _ := c.Locals(localToken).(string)
	ed, created := h.registry.Acquire(token, currentUser(c))
	if created {
		// При ошибке редактор остаётся пустым; клиент может повторить /editor/load.
		_ = ed.Load(context.Background())
	}
	return ed
}

// ============================================================
// Helpers
// ============================================================

func decode(c fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return fiber.NewError(http.StatusBadRequest, "empty body")
	}
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid json")
	}
	return nil
}

// fail отображает ошибку домена в HTTP-статус.
func (h *MapHandler) fail(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, editor.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, editor.ErrUnknownBox), errors.Is(err, repository.ErrBoxNotFound):
		status = http.StatusNotFound
	case errors.Is(err, editor.ErrWrongTool), errors.Is(err, editor.ErrNotPlacing):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
