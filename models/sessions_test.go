package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	session, err := NewSession(7, "test-agent", "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, uint(7), session.UserID)
	assert.NotEmpty(t, session.SessionToken)
	assert.False(t, session.IsExpired())
	assert.WithinDuration(t, time.Now().Add(SessionDuration), session.ExpiresAt, time.Minute)
}

func TestNewSessionTokensAreUnique(t *testing.T) {
	a, err := NewSession(1, "", "")
	require.NoError(t, err)
	b, err := NewSession(1, "", "")
	require.NoError(t, err)

	assert.NotEqual(t, a.SessionToken, b.SessionToken)
}

func TestIsExpired(t *testing.T) {
	session := &Session{ExpiresAt: time.Now().Add(-time.Minute)}
	assert.True(t, session.IsExpired())
}
