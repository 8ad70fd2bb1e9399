package credentials

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestProviderUnauthorizedWhenEmpty(t *testing.T) {
	provider := NewProvider(NewMemoryStore(Credentials{}))

	_, err := provider.Token(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestProviderReturnsFreshToken(t *testing.T) {
	store := NewMemoryStore(Credentials{Token: "a", UserID: 1})
	provider := NewProvider(store)

	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", token)

	require.NoError(t, store.Save(context.Background(), Credentials{Token: "b", UserID: 1}))
	token, err = provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", token)

	require.NoError(t, store.Clear(context.Background()))
	_, err = provider.Token(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUserIDFromToken(t *testing.T) {
	id, err := UserIDFromToken(signedToken(t, jwt.MapClaims{"user_id": 42}))
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	id, err = UserIDFromToken(signedToken(t, jwt.MapClaims{"sub": "17"}))
	require.NoError(t, err)
	assert.Equal(t, 17, id)

	_, err = UserIDFromToken(signedToken(t, jwt.MapClaims{"sub": "alice"}))
	require.Error(t, err)

	_, err = UserIDFromToken("not-a-jwt")
	require.Error(t, err)
}

func TestFromToken(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"id": 3})
	creds, err := FromToken(token)
	require.NoError(t, err)
	assert.Equal(t, Credentials{Token: token, UserID: 3}, creds)
}
