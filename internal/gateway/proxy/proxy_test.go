package proxy

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForward_Multipart(t *testing.T) {
	var gotName, gotFile, gotField string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)

		gotName, gotFile, gotField = fh.Filename, string(data), r.FormValue("note")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	app := fiber.New()
	app.Post("/map/image", New(time.Second, zerolog.Nop()).To(srv.URL+"/map/image"))

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "plan.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.WriteField("note", "floor 2"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/map/image", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "plan.png", gotName)
	assert.Equal(t, "png-bytes", gotFile)
	assert.Equal(t, "floor 2", gotField)
}

func TestPrefix_KeepsQuery(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RequestURI()
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	app := fiber.New()
	app.Get("/api/v1/boxes/:id/qr", New(time.Second, zerolog.Nop()).Prefix(srv.URL+"/", "/api/v1"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/boxes/b1/qr?size=128", nil))
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, "/boxes/b1/qr?size=128", got)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}
