package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	tok, err := m.GenerateToken("admin", "ADMIN")
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "ADMIN", claims.Role)
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	tok, err := NewJWTManager("secret", time.Hour).GenerateToken("admin", "ADMIN")
	require.NoError(t, err)

	_, err = NewJWTManager("other", time.Hour).VerifyToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	tok, err := m.GenerateToken("admin", "ADMIN")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.VerifyToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEmptySecret(t *testing.T) {
	m := NewJWTManager("", time.Hour)
	_, err := m.GenerateToken("admin", "ADMIN")
	assert.Error(t, err)
	_, err = m.VerifyToken("anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(16)
	require.NoError(t, err)
	b, err := RandomHex(16)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
