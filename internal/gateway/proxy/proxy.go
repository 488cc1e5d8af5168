package proxy

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// ============================================================
// Proxy Handler
// ============================================================

// hopHeaders не копируются из ответа upstream.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
}

type Proxy struct {
	client *http.Client
	log    zerolog.Logger
}

func New(timeout time.Duration, log zerolog.Logger) *Proxy {
	return &Proxy{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// To проксирует запрос на фиксированный URL.
func (p *Proxy) To(targetURL string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return p.Forward(c, targetURL)
	}
}

// Prefix проксирует запрос на baseURL, сохраняя путь без префикса strip и query.
func (p *Proxy) Prefix(baseURL, strip string) fiber.Handler {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(c fiber.Ctx) error {
		target := baseURL + strings.TrimPrefix(c.Path(), strip)
		if q := c.Request().URI().QueryString(); len(q) > 0 {
			target += "?" + string(q)
		}
		return p.Forward(c, target)
	}
}

// Forward проксирует любой метод с учетом multipart/raw.
func (p *Proxy) Forward(c fiber.Ctx, targetURL string) error {
	p.log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("content_type", c.Get("Content-Type")).
		Int("content_length", len(c.Body())).
		Str("target", targetURL).
		Msg("forward")

	contentType := c.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return p.sendRaw(c, targetURL, contentType)
	}

	return p.sendMultipart(c, targetURL)
}

func (p *Proxy) sendRaw(c fiber.Ctx, targetURL, contentType string) error {
	req, err := http.NewRequest(c.Method(), targetURL, bytes.NewReader(c.Body()))
	if err != nil {
		p.log.Error().Err(err).Msg("build request")
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return p.do(c, req)
}

func (p *Proxy) sendMultipart(c fiber.Ctx, targetURL string) error {
	form, err := c.MultipartForm()
	if err != nil {
		p.log.Warn().Err(err).Msg("parse multipart")
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid multipart data"})
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, files := range form.File {
		for _, fileHeader := range files {
			if err := copyFilePart(writer, key, fileHeader); err != nil {
				p.log.Error().Err(err).Str("file", fileHeader.Filename).Msg("copy multipart file")
				return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid multipart data"})
			}
		}
	}

	for key, values := range form.Value {
		for _, value := range values {
			if err := writer.WriteField(key, value); err != nil {
				return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
			}
		}
	}

	if err := writer.Close(); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}

	req, err := http.NewRequest(c.Method(), targetURL, bytes.NewReader(body.Bytes()))
	if err != nil {
		p.log.Error().Err(err).Msg("build multipart request")
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	return p.do(c, req)
}

func copyFilePart(w *multipart.Writer, key string, fh *multipart.FileHeader) error {
	file, err := fh.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, key, fh.Filename))
	h.Set("Content-Type", fh.Header.Get("Content-Type"))

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

func (p *Proxy) do(c fiber.Ctx, req *http.Request) error {
	if auth := c.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Error().Err(err).Str("target", req.URL.String()).Msg("upstream unreachable")
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "failed to reach upstream service"})
	}
	defer resp.Body.Close()

	return p.copyResponse(c, resp)
}

func (p *Proxy) copyResponse(c fiber.Ctx, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		p.log.Error().Err(err).Msg("read upstream response")
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "invalid upstream response"})
	}

	for key, values := range resp.Header {
		if len(values) > 0 && !hopHeaders[key] {
			c.Set(key, values[0])
		}
	}

	c.Status(resp.StatusCode)
	return c.Send(data)
}
