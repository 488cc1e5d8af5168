package service

import (
	"sync"

	"github.com/google/uuid"
)

// ============================================================
// Session Manager
// ============================================================

type SessionManager struct {
	mu     sync.Mutex
	tokens map[string]string // token -> userID
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		tokens: make(map[string]string),
	}
}

func (m *SessionManager) Issue(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := uuid.NewString()
	m.tokens[token] = userID
	return token
}

func (m *SessionManager) Resolve(token string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.tokens[token]
	return userID, ok
}

// Revoke завершает сессию. Повторный отзыв не ошибка.
func (m *SessionManager) Revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
}

// RevokeUser завершает все сессии пользователя и возвращает их число.
func (m *SessionManager) RevokeUser(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for token, id := range m.tokens {
		if id == userID {
			delete(m.tokens, token)
			n++
		}
	}
	return n
}
