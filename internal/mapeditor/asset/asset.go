package asset

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ============================================================
// Background asset
// ============================================================

const (
	PlaceholderWidth  = 1920.0
	PlaceholderHeight = 1080.0
)

// Info содержит натуральный размер фонового изображения и его тип.
type Info struct {
	Path        string  `json:"-"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	ContentType string  `json:"content_type"`
	Placeholder bool    `json:"placeholder"`
}

func Placeholder() Info {
	return Info{Width: PlaceholderWidth, Height: PlaceholderHeight, Placeholder: true}
}

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// ContentType возвращает MIME-тип по расширению или пустую строку для неподдерживаемых файлов.
func ContentType(name string) string {
	return contentTypes[strings.ToLower(filepath.Ext(name))]
}

// Load читает размеры изображения. При любой ошибке возвращает заглушку
// 1920×1080 вместе с ошибкой, чтобы карта оставалась работоспособной.
func Load(path string) (Info, error) {
	if path == "" {
		return Placeholder(), fmt.Errorf("background path is empty")
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Placeholder(), fmt.Errorf("read background: %w", err)
	}

	info, err := Inspect(filepath.Base(path), data)
	if err != nil {
		return Placeholder(), err
	}
	info.Path = path
	return info, nil
}

// Inspect определяет размеры изображения по содержимому.
func Inspect(name string, data []byte) (Info, error) {
	ct := ContentType(name)
	if ct == "" {
		return Info{}, fmt.Errorf("unsupported background type %q", filepath.Ext(name))
	}

	var w, h float64
	if ct == "image/svg+xml" {
		var err error
		w, h, err = SVGSize(bytes.NewReader(data))
		if err != nil {
			return Info{}, fmt.Errorf("svg size: %w", err)
		}
	} else {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return Info{}, fmt.Errorf("decode image config: %w", err)
		}
		w, h = float64(cfg.Width), float64(cfg.Height)
	}

	if w <= 0 || h <= 0 {
		return Info{}, fmt.Errorf("background has no size")
	}
	return Info{Width: w, Height: h, ContentType: ct}, nil
}

// Decode возвращает растровое изображение фона. Для SVG и заглушки возвращает nil без ошибки.
func Decode(info Info) (image.Image, error) {
	if info.Placeholder || info.Path == "" || info.ContentType == "image/svg+xml" {
		return nil, nil
	}
	f, err := os.Open(filepath.Clean(info.Path))
	if err != nil {
		return nil, fmt.Errorf("open background: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode background: %w", err)
	}
	return img, nil
}
