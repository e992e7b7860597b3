package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	verifier := NewJWT("test-secret")

	token, err := verifier.Sign("alice", time.Minute)
	require.NoError(t, err)

	claims, err := verifier.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, "alice", claims.Subject)
}

func TestParseExpiredToken(t *testing.T) {
	verifier := NewJWT("test-secret")

	token, err := verifier.Sign("alice", -time.Minute)
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	require.Error(t, err)
}

func TestParseWrongSecret(t *testing.T) {
	token, err := NewJWT("secret-a").Sign("alice", time.Minute)
	require.NoError(t, err)

	_, err = NewJWT("secret-b").Parse(token)
	require.Error(t, err)
}

func TestParseGarbage(t *testing.T) {
	_, err := NewJWT("test-secret").Parse("not.a.token")
	require.Error(t, err)
}
