package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_SignVerifyRoundTrip(t *testing.T) {
	j := New("test-secret")

	tok, err := j.Sign("user-1", time.Hour)
	require.NoError(t, err)

	uid, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}

func TestJWT_RejectsWrongSecret(t *testing.T) {
	tok, err := New("secret-a").Sign("user-1", time.Hour)
	require.NoError(t, err)

	_, err = New("secret-b").Verify(tok)
	assert.Error(t, err)
}

func TestJWT_RejectsExpired(t *testing.T) {
	j := New("test-secret")
	tok, err := j.Sign("user-1", -time.Minute)
	require.NoError(t, err)

	_, err = j.Verify(tok)
	assert.Error(t, err)
}

func TestJWT_RejectsGarbage(t *testing.T) {
	_, err := New("test-secret").Verify("not-a-token")
	assert.Error(t, err)
}

func TestUserIDContext(t *testing.T) {
	assert.Equal(t, "anon", UserID(context.Background()))

	ctx := WithUser(context.Background(), "user-1")
	assert.Equal(t, "user-1", UserID(ctx))
}
