package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthenticator(t *testing.T, now func() time.Time) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	a, err := New(Options{
		Secret:       []byte("test-secret"),
		Username:     "admin",
		PasswordHash: string(hash),
		TTL:          time.Hour,
		Now:          now,
	})
	require.NoError(t, err)
	return a
}

func TestLoginAndVerify(t *testing.T) {
	a := newAuthenticator(t, nil)

	_, _, err := a.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = a.Login("someone", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, session, err := a.Login(" Admin ", "s3cret")
	require.NoError(t, err)
	assert.True(t, session.IsAdmin)
	assert.NotEmpty(t, session.SessionID)

	verified, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, verified.SessionID)
	assert.Equal(t, "admin", verified.Username)
	assert.True(t, verified.IsAdmin)
	assert.True(t, session.ExpiresAt.Equal(verified.ExpiresAt))
}

func TestVerifyRejects(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	a := newAuthenticator(t, clock)
	token, _, err := a.Issue("admin", true)
	require.NoError(t, err)

	other, err := New(Options{Secret: []byte("other-secret")})
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = a.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidSession)

	now = now.Add(2 * time.Hour)
	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestLoginWithoutConfiguredPassword(t *testing.T) {
	a, err := New(Options{Secret: []byte("x"), Username: "admin"})
	require.NoError(t, err)
	_, _, err = a.Login("admin", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
	hash, err := HashPassword("open sesame")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("open sesame")))
}
