package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"facility-map/internal/common/sqlite"
	"facility-map/internal/mapeditor/models"
)

// ============================================================
// Box Collection Store (SQLite)
// ============================================================

var ErrBoxNotFound = errors.New("box not found")

const boxColumns = `id, x, y, width, height, name, color, text_size, description, links, link_url, is_active, created_by, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Init применяет миграцию таблицы boxes.
func (r *Repository) Init(ctx context.Context, migrationsPath string) error {
	if err := sqlite.Migrate(ctx, r.db, migrationsPath); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

// List возвращает активные коробки в порядке создания.
func (r *Repository) List(ctx context.Context) ([]models.Box, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+boxColumns+`
        FROM boxes
        WHERE is_active = 1
        ORDER BY created_at, rowid
    `)
	if err != nil {
		return nil, fmt.Errorf("list boxes: %w", err)
	}
	defer rows.Close()

	boxes := []models.Box{}
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan box: %w", err)
		}
		boxes = append(boxes, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list boxes: %w", err)
	}
	return boxes, nil
}

// Get возвращает коробку по id, в том числе неактивную.
func (r *Repository) Get(ctx context.Context, id string) (models.Box, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+boxColumns+` FROM boxes WHERE id = ?`, id)
	b, err := scanBox(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Box{}, ErrBoxNotFound
		}
		return models.Box{}, fmt.Errorf("get box: %w", err)
	}
	return b, nil
}

// Create вставляет новую активную коробку. id и created_at назначает хранилище.
func (r *Repository) Create(ctx context.Context, b models.Box) (models.Box, error) {
	links, err := encodeLinks(b.Links)
	if err != nil {
		return models.Box{}, err
	}

	row := r.db.QueryRowContext(ctx, `
        INSERT INTO boxes (id, x, y, width, height, name, color, text_size, description, links, link_url, is_active, created_by)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
        RETURNING `+boxColumns,
		uuid.NewString(), b.X, b.Y, b.Width, b.Height, b.Name, b.Color,
		nullFloat(b.TextSize), b.Description, links, b.LinkURL, b.CreatedBy,
	)
	created, err := scanBox(row)
	if err != nil {
		return models.Box{}, fmt.Errorf("create box: %w", err)
	}
	return created, nil
}

// Update записывает ровно поля патча и отметку updated_at. Неактивная коробка
// считается отсутствующей.
func (r *Repository) Update(ctx context.Context, id string, patch models.BoxPatch) error {
	sets, args, err := patchAssignments(patch)
	if err != nil {
		return err
	}
	sets = append(sets, `updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`)
	args = append(args, id)

	query := `UPDATE boxes SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND is_active = 1`
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update box %s: %w", id, err)
	}
	return expectOne(res, id)
}

// SoftDelete помечает коробку неактивной. Физически строки не удаляются.
func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE boxes
        SET is_active = 0, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
        WHERE id = ?
    `, id)
	if err != nil {
		return fmt.Errorf("delete box %s: %w", id, err)
	}
	return expectOne(res, id)
}

// Ping проверяет соединение (для readiness).
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ============================================================
// Helpers
// ============================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanBox(s scanner) (models.Box, error) {
	var (
		b        models.Box
		textSize sql.NullFloat64
		links    string
		active   int
	)
	err := s.Scan(&b.ID, &b.X, &b.Y, &b.Width, &b.Height, &b.Name, &b.Color, &textSize,
		&b.Description, &links, &b.LinkURL, &active, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return models.Box{}, err
	}
	if textSize.Valid {
		b.TextSize = models.Ptr(textSize.Float64)
	}
	b.IsActive = active == 1
	b.Links, err = decodeLinks(links)
	if err != nil {
		return models.Box{}, err
	}
	return b, nil
}

func patchAssignments(p models.BoxPatch) ([]string, []any, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.X != nil {
		add("x", *p.X)
	}
	if p.Y != nil {
		add("y", *p.Y)
	}
	if p.Width != nil {
		add("width", *p.Width)
	}
	if p.Height != nil {
		add("height", *p.Height)
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Color != nil {
		add("color", *p.Color)
	}
	if p.TextSize.Set {
		add("text_size", nullFloat(p.TextSize.Value))
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Links != nil {
		links, err := encodeLinks(*p.Links)
		if err != nil {
			return nil, nil, err
		}
		add("links", links)
	}
	if p.LinkURL != nil {
		add("link_url", *p.LinkURL)
	}
	return sets, args, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrBoxNotFound)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func encodeLinks(links []models.Link) (string, error) {
	if links == nil {
		links = []models.Link{}
	}
	data, err := json.Marshal(links)
	if err != nil {
		return "", fmt.Errorf("encode links: %w", err)
	}
	return string(data), nil
}

func decodeLinks(raw string) ([]models.Link, error) {
	links := []models.Link{}
	if raw == "" {
		return links, nil
	}
	if err := json.Unmarshal([]byte(raw), &links); err != nil {
		return nil, fmt.Errorf("decode links: %w", err)
	}
	return links, nil
}
