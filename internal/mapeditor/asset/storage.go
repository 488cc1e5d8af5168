package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ============================================================
// File Storage
// ============================================================

// Storage хранит загруженные фоновые изображения карты.
type Storage struct {
	root string
}

func NewStorage(root string) *Storage {
	return &Storage{root: root}
}

func (s *Storage) Dir() string {
	return s.root
}

// BackgroundPath возвращает путь фона с данным расширением (".png", ".svg", ...).
func (s *Storage) BackgroundPath(ext string) string {
	return filepath.Join(s.root, "background"+strings.ToLower(ext))
}

func (s *Storage) EnsureDir() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("mkdir assets dir: %w", err)
	}
	return nil
}

// SaveBackground проверяет изображение и сохраняет его как новый фон.
func (s *Storage) SaveBackground(filename string, data []byte) (Info, error) {
	info, err := Inspect(filename, data)
	if err != nil {
		return Info{}, err
	}
	if err := s.EnsureDir(); err != nil {
		return Info{}, err
	}

	old, _ := s.Current()
	path := s.BackgroundPath(filepath.Ext(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Info{}, fmt.Errorf("write background: %w", err)
	}
	if old != "" && old != path {
		_ = os.Remove(old)
	}
	info.Path = path
	return info, nil
}

// Current возвращает путь ранее загруженного фона.
func (s *Storage) Current() (string, bool) {
	matches, err := filepath.Glob(filepath.Join(s.root, "background.*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}
