package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"facility-map/internal/auth/models"
	"facility-map/internal/auth/repository"
	"facility-map/internal/auth/service"
)

// ============================================================
// Auth Handler
// ============================================================

type AuthHandler struct {
	repo     *repository.Repository
	sessions *service.SessionManager
	log      zerolog.Logger
}

func NewAuthHandler(repo *repository.Repository, sessions *service.SessionManager, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		repo:     repo,
		sessions: sessions,
		log:      log,
	}
}

func (h *AuthHandler) Routes(r fiber.Router) {
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Post("/users", h.CreateUser)
	r.Get("/users/:id", h.GetUser)
	r.Put("/users/:id/roles", h.SetRoles)

	// Internal routes (для межсервисного общения)
	r.Get("/internal/sessions/:token", h.GetSessionInternal)
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

type userPayload struct {
	ID        string   `json:"id"`
	Login     string   `json:"login"`
	FIO       string   `json:"fio"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	CanEdit   bool     `json:"can_edit"`
	CreatedAt string   `json:"created_at"`
}

type sessionPayload struct {
	UserID  string   `json:"user_id"`
	Roles   []string `json:"roles"`
	CanEdit bool     `json:"can_edit"`
}

type createUserRequest struct {
	Login    string   `json:"login"`
	Password string   `json:"password"`
	FIO      string   `json:"fio"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

type rolesRequest struct {
	Roles []string `json:"roles"`
}

// Login выдает простой токен по паре login/password.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}

	var req loginRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}

	if req.Login == "" || req.Password == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "login and password required"})
	}

	user, err := h.repo.Authenticate(context.Background(), req.Login, req.Password)
	if err != nil {
		if !errors.Is(err, repository.ErrInvalidCredentials) {
			h.log.Error().Err(err).Msg("authenticate")
		}
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}

	token := h.sessions.Issue(user.ID)
	h.log.Info().Str("user_id", user.ID).Msg("login")

	return c.JSON(loginResponse{
		Token: token,
		User:  mapUser(user),
	})
}

// Logout отзывает текущий токен.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	token, ok := bearer(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	h.sessions.Revoke(token)
	return c.SendStatus(http.StatusNoContent)
}

// GetUser возвращает данные пользователя: себе или администратору.
func (h *AuthHandler) GetUser(c fiber.Ctx) error {
	caller, ok := h.authorize(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	targetID := c.Params("id")
	if targetID == "" || (targetID != caller.ID && !caller.HasRole(models.RoleAdmin)) {
		return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}

	user, err := h.repo.GetByID(context.Background(), targetID)
	if err != nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}

	return c.JSON(mapUser(user))
}

// CreateUser заводит пользователя (только admin).
func (h *AuthHandler) CreateUser(c fiber.Ctx) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}

	var req createUserRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	if req.Login == "" || req.Password == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "login and password required"})
	}
	if !validRoles(req.Roles) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "unknown role"})
	}

	user, err := h.repo.Create(context.Background(), models.User{
		Login: req.Login,
		FIO:   req.FIO,
		Email: req.Email,
		Roles: req.Roles,
	}, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrLoginTaken) {
			return c.Status(http.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error().Err(err).Msg("create user")
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "create failed"})
	}
	return c.Status(http.StatusCreated).JSON(mapUser(user))
}

// SetRoles заменяет роли пользователя (только admin). Админ не может снять
// роль admin с самого себя.
func (h *AuthHandler) SetRoles(c fiber.Ctx) error {
	caller, ok := h.requireAdmin(c)
	if !ok {
		return nil
	}

	var req rolesRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	if len(req.Roles) == 0 || !validRoles(req.Roles) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "unknown role"})
	}

	targetID := c.Params("id")
	if targetID == caller.ID && !slices.Contains(req.Roles, models.RoleAdmin) {
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "cannot drop own admin role"})
	}

	ctx := context.Background()
	if err := h.repo.SetRoles(ctx, targetID, req.Roles); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		h.log.Error().Err(err).Msg("set roles")
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "update failed"})
	}

	user, err := h.repo.GetByID(ctx, targetID)
	if err != nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	h.log.Info().Str("user_id", targetID).Strs("roles", user.Roles).Str("by", caller.ID).Msg("roles changed")
	return c.JSON(mapUser(user))
}

// GetSessionInternal разрешает токен для других сервисов.
func (h *AuthHandler) GetSessionInternal(c fiber.Ctx) error {
	userID, ok := h.sessions.Resolve(c.Params("token"))
	if !ok {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}

	user, err := h.repo.GetByID(context.Background(), userID)
	if err != nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}

	return c.JSON(sessionPayload{
		UserID:  user.ID,
		Roles:   user.Roles,
		CanEdit: models.CanEdit(user.Roles),
	})
}

// ============================================================
// Helpers
// ============================================================

func bearer(c fiber.Ctx) (string, bool) {
	auth := c.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(auth, "Bearer "), true
}

func (h *AuthHandler) authorize(c fiber.Ctx) (*models.User, bool) {
	token, ok := bearer(c)
	if !ok {
		return nil, false
	}
	userID, ok := h.sessions.Resolve(token)
	if !ok {
		return nil, false
	}
	user, err := h.repo.GetByID(context.Background(), userID)
	if err != nil {
		return nil, false
	}
	return user, true
}

// requireAdmin пишет ответ об ошибке сам и возвращает false, если вызывающий не admin.
func (h *AuthHandler) requireAdmin(c fiber.Ctx) (*models.User, bool) {
	caller, ok := h.authorize(c)
	if !ok {
		_ = c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		return nil, false
	}
	if !caller.HasRole(models.RoleAdmin) {
		_ = c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		return nil, false
	}
	return caller, true
}

func validRoles(roles []string) bool {
	for _, r := range roles {
		if !models.ValidRole(r) {
			return false
		}
	}
	return true
}

func mapUser(u *models.User) userPayload {
	return userPayload{
		ID:        u.ID,
		Login:     u.Login,
		FIO:       u.FIO,
		Email:     u.Email,
		Roles:     u.Roles,
		CanEdit:   models.CanEdit(u.Roles),
		CreatedAt: u.CreatedAt,
	}
}
