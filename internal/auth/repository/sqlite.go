package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"facility-map/internal/auth/models"
	"facility-map/internal/common/sqlite"
)

// ============================================================
// SQLite Repository
// ============================================================

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginTaken         = errors.New("login already taken")
)

const adminID = "11111111-1111-1111-1111-111111111111"

type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Init запускает миграции и убеждается в наличии admin.
func (r *Repository) Init(ctx context.Context, migrationsPath string) error {
	if err := sqlite.Migrate(ctx, r.db, migrationsPath); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return r.ensureAdmin(ctx)
}

const userColumns = `id, login, password, fio, email, roles, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u     models.User
		roles string
	)
	if err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.FIO, &u.Email, &roles, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Roles = splitRoles(roles)
	return &u, nil
}

// Authenticate проверяет пару login/password.
func (r *Repository) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	u, err := r.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (r *Repository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE login = ?`, login))
}

func (r *Repository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// Create заводит пользователя с хешированным паролем.
func (r *Repository) Create(ctx context.Context, u models.User, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if len(u.Roles) == 0 {
		u.Roles = []string{models.RoleViewer}
	}

	if _, err := r.GetByLogin(ctx, u.Login); err == nil {
		return nil, ErrLoginTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `
        INSERT INTO users (id, login, password, fio, email, roles)
        VALUES (?, ?, ?, ?, ?, ?)
    `, u.ID, u.Login, string(hash), u.FIO, u.Email, joinRoles(u.Roles))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return r.GetByID(ctx, u.ID)
}

// SetRoles заменяет набор ролей пользователя.
func (r *Repository) SetRoles(ctx context.Context, id string, roles []string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET roles = ? WHERE id = ?`, joinRoles(roles), id)
	if err != nil {
		return fmt.Errorf("update roles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ============================================================
// Seeding
// ============================================================

func (r *Repository) ensureAdmin(ctx context.Context) error {
	_, err := r.GetByLogin(ctx, "admin")
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	_, err = r.Create(ctx, models.User{
		ID:    adminID,
		Login: "admin",
		FIO:   "Admin User",
		Email: "admin@example.com",
		Roles: []string{models.RoleAdmin},
	}, "admin")
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

// ============================================================
// Roles column
// ============================================================

// Роли хранятся одной строкой через запятую, отсортированными и без повторов.
func joinRoles(roles []string) string {
	out := slices.Clone(roles)
	slices.Sort(out)
	return strings.Join(slices.Compact(out), ",")
}

func splitRoles(s string) []string {
	out := []string{}
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
