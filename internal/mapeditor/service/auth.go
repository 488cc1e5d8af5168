package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"facility-map/internal/mapeditor/editor"
)

// ============================================================
// Auth Client
// ============================================================

var ErrUnauthorized = errors.New("unauthorized")

// sessionPayload повторяет ответ auth-сервиса на GET /internal/sessions/:token.
type sessionPayload struct {
	UserID  string   `json:"user_id"`
	Roles   []string `json:"roles"`
	CanEdit bool     `json:"can_edit"`
}

// AuthClient разрешает bearer-токен в пользователя через auth-сервис.
type AuthClient struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewAuthClient(baseURL string, log zerolog.Logger) *AuthClient {
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

func (a *AuthClient) Resolve(ctx context.Context, token string) (editor.User, error) {
	if token == "" {
		return editor.User{}, ErrUnauthorized
	}

	target := a.baseURL + "/internal/sessions/" + url.PathEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return editor.User{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Error().Err(err).Msg("auth service unreachable")
		return editor.User{}, fmt.Errorf("resolve session: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized:
		return editor.User{}, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return editor.User{}, fmt.Errorf("resolve session: status %d: %s", resp.StatusCode, body)
	}

	var p sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return editor.User{}, fmt.Errorf("decode session: %w", err)
	}
	if p.UserID == "" {
		return editor.User{}, ErrUnauthorized
	}
	return editor.User{ID: p.UserID, CanEdit: p.CanEdit}, nil
}
