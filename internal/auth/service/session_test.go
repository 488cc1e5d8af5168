package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager(t *testing.T) {
	m := NewSessionManager()

	a := m.Issue("u1")
	b := m.Issue("u1")
	c := m.Issue("u2")
	require.NotEqual(t, a, b)

	id, ok := m.Resolve(a)
	require.True(t, ok)
	assert.Equal(t, "u1", id)

	m.Revoke(a)
	m.Revoke(a)
	_, ok = m.Resolve(a)
	assert.False(t, ok)

	assert.Equal(t, 1, m.RevokeUser("u1"))
	_, ok = m.Resolve(b)
	assert.False(t, ok)

	_, ok = m.Resolve(c)
	assert.True(t, ok)
}
