package links

import (
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"facility-map/internal/mapeditor/models"
)

// ============================================================
// Links & share URLs
// ============================================================

const (
	DefaultQRSize = 256
	MinQRSize     = 64
	MaxQRSize     = 1024
)

// Detect определяет тип ссылки по хосту.
func Detect(raw string) models.LinkType {
	host := raw
	if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)

	switch {
	case strings.Contains(host, "trello.com"):
		return models.LinkProjectTracker
	case strings.Contains(host, "drive.google.com"), strings.Contains(host, "docs.google.com"):
		return models.LinkCloudDoc
	default:
		return models.LinkGeneric
	}
}

// Normalize обрезает пробелы, выбрасывает пустые URL и проставляет тип по хосту.
func Normalize(in []models.Link) []models.Link {
	out := make([]models.Link, 0, len(in))
	for _, l := range in {
		u := strings.TrimSpace(l.URL)
		if u == "" {
			continue
		}
		out = append(out, models.Link{URL: u, LinkType: Detect(u)})
	}
	return out
}

// Effective возвращает ссылки коробки; устаревшее поле link_url используется,
// только когда список пуст.
func Effective(b models.Box) []models.Link {
	if len(b.Links) > 0 {
		return b.Links
	}
	if u := strings.TrimSpace(b.LinkURL); u != "" {
		return []models.Link{{URL: u, LinkType: Detect(u)}}
	}
	return nil
}

// ShareURL строит канонический адрес коробки на карте.
func ShareURL(base, boxID string) string {
	return strings.TrimRight(base, "/") + "/map?box=" + url.QueryEscape(boxID)
}

// QRCode кодирует URL в PNG заданного размера.
func QRCode(target string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	size = min(max(size, MinQRSize), MaxQRSize)

	png, err := qrcode.Encode(target, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
