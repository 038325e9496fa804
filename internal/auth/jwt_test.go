package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenService() TokenService {
	return TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "granthalaya-test",
		Duration: time.Hour,
	}
}

func TestTokenService_SignAndParse(t *testing.T) {
	ts := testTokenService()
	u := &User{ID: "u1", Username: "archivist", Email: "a@example.com", TokenVersion: 3}

	tok, exp, err := ts.Sign(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "archivist", claims.Username)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.Equal(t, "granthalaya-test", claims.Issuer)
}

func TestTokenService_ParseExpired(t *testing.T) {
	ts := testTokenService()
	ts.Duration = -time.Minute

	tok, _, err := ts.Sign(&User{ID: "u1"})
	require.NoError(t, err)

	_, err = ts.Parse(tok)
	require.Error(t, err)
}

func TestTokenService_ParseWrongSecret(t *testing.T) {
	ts := testTokenService()
	tok, _, err := ts.Sign(&User{ID: "u1"})
	require.NoError(t, err)

	other := testTokenService()
	other.Secret = []byte("different-secret")
	_, err = other.Parse(tok)
	require.Error(t, err)
}

func TestTokenService_ParseGarbage(t *testing.T) {
	_, err := testTokenService().Parse("not.a.jwt")
	require.Error(t, err)
}
