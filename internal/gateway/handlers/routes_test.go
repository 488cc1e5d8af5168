package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facility-map/internal/gateway/proxy"
)

type recorded struct {
	method string
	uri    string
	auth   string
	body   string
}

type upstream struct {
	mu   sync.Mutex
	seen []recorded
	srv  *httptest.Server
}

func newUpstream(t *testing.T, name string) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.seen = append(u.seen, recorded{r.Method, r.URL.RequestURI(), r.Header.Get("Authorization"), string(body)})
		u.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", name)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"from":"` + name + `"}`))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) last(t *testing.T) recorded {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	require.NotEmpty(t, u.seen)
	return u.seen[len(u.seen)-1]
}

func newGateway(mapURL, authURL string) *fiber.App {
	app := fiber.New()
	p := proxy.New(time.Second, zerolog.Nop())
	ServiceRoutes(app.Group("/api/v1"), p, "/api/v1", Upstreams{Map: mapURL, Auth: authURL})
	return app
}

func TestServiceRoutes_MapService(t *testing.T) {
	mapSrv := newUpstream(t, "map")
	authSrv := newUpstream(t, "auth")
	app := newGateway(mapSrv.srv.URL, authSrv.srv.URL)

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/v1/boxes", "/boxes"},
		{http.MethodPatch, "/api/v1/boxes/b1", "/boxes/b1"},
		{http.MethodGet, "/api/v1/map/snapshot.svg?box=b1", "/map/snapshot.svg?box=b1"},
		{http.MethodGet, "/api/v1/editor", "/editor"},
		{http.MethodPost, "/api/v1/editor/click", "/editor/click"},
		{http.MethodDelete, "/api/v1/editor/boxes/b2", "/editor/boxes/b2"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{"x":1}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer tok")

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusTeapot, resp.StatusCode)
			assert.Equal(t, "map", resp.Header.Get("X-Upstream"))

			got := mapSrv.last(t)
			assert.Equal(t, tt.method, got.method)
			assert.Equal(t, tt.want, got.uri)
			assert.Equal(t, "Bearer tok", got.auth)
			assert.Equal(t, `{"x":1}`, got.body)
		})
	}
}

func TestServiceRoutes_AuthService(t *testing.T) {
	mapSrv := newUpstream(t, "map")
	authSrv := newUpstream(t, "auth")
	app := newGateway(mapSrv.srv.URL, authSrv.srv.URL)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"login":"admin"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.JSONEq(t, `{"from":"auth"}`, string(body))
	assert.Equal(t, "/login", authSrv.last(t).uri)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/users/u1/roles", strings.NewReader(`{"roles":["editor"]}`))
	resp, err = app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/users/u1/roles", authSrv.last(t).uri)
}

func TestServiceRoutes_InternalNotExposed(t *testing.T) {
	mapSrv := newUpstream(t, "map")
	authSrv := newUpstream(t, "auth")
	app := newGateway(mapSrv.srv.URL, authSrv.srv.URL)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/internal/sessions/tok", nil))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, authSrv.seen)
}

func TestServiceRoutes_UpstreamDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	app := newGateway(url, url)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/boxes", nil))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestReadinessProbe(t *testing.T) {
	ready := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/ready", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer ready.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	app := fiber.New()
	app.Get("/ok", ReadinessProbe(map[string]string{"map": ready.URL, "auth": ready.URL}))
	app.Get("/degraded", ReadinessProbe(map[string]string{"map": ready.URL, "auth": failing.URL}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ready","services":{"auth":"ready","map":"ready"}}`, string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/degraded", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"status":"degraded","services":{"auth":"not ready","map":"ready"}}`, string(body))
}

func TestSwaggerSpec(t *testing.T) {
	app := fiber.New()
	app.Get("/docs/openapi.yaml", SwaggerSpec("../../../docs/openapi.yaml"))
	app.Get("/missing", SwaggerSpec("does-not-exist.yaml"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/docs/openapi.yaml", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "openapi:")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
