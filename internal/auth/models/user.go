package models

import "slices"

// ============================================================
// User Model
// ============================================================

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

type User struct {
	ID           string   `json:"id"`
	Login        string   `json:"login"`
	PasswordHash string   `json:"-"`
	FIO          string   `json:"fio"`
	Email        string   `json:"email"`
	Roles        []string `json:"roles"`
	CreatedAt    string   `json:"created_at"`
}

func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// CanEdit сообщает, может ли набор ролей менять карту (admin или editor).
func CanEdit(roles []string) bool {
	return slices.Contains(roles, RoleAdmin) || slices.Contains(roles, RoleEditor)
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}
