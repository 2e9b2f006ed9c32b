package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("segredo-forte")
	require.NoError(t, err)

	assert.True(t, IsHash(hash))
	assert.True(t, Verify("segredo-forte", hash))
	assert.False(t, Verify("outra", hash))
	assert.False(t, Verify("segredo-forte", "segredo-forte"))
}

func TestJWTRoundTrip(t *testing.T) {
	mgr := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)

	tok, err := mgr.Issue("ad", AudienceBackoffice, "Administrador Global", []string{"ADMIN"})
	require.NoError(t, err)

	claims, err := mgr.ParseAndValidate(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "ad", claims.Subject)
	assert.Equal(t, AudienceBackoffice, claims.Audience[0])
	assert.Equal(t, []string{"ADMIN"}, claims.Roles)
	assert.Equal(t, tok.ID, claims.ID)
}

func TestJWTRejectsExpiredAndForeignTokens(t *testing.T) {
	mgr := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)
	tok, err := mgr.Issue("ad", AudienceBackoffice, "", nil)
	require.NoError(t, err)

	later := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)
	later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = later.ParseAndValidate(tok.Token)
	assert.Error(t, err)

	other := NewJWTManager("ffffffffffffffffffffffffffffffff", time.Minute)
	_, err = other.ParseAndValidate(tok.Token)
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	raw, hashed, err := NewRefreshToken()
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, hashed, HashRefreshToken(raw))
	assert.Equal(t, "participa:refresh:cidadao:"+hashed, RefreshKey(AudienceCidadao, hashed))
}
