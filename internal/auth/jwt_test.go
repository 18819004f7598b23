package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestValidateHS256(t *testing.T) {
	jv, err := NewJWTValidator("", "HS256", "secret")
	require.NoError(t, err)

	t.Run("sub claim", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()})
		uid, err := jv.Validate(tok)
		require.NoError(t, err)
		assert.Equal(t, "u1", uid)
	})

	t.Run("user_id wins over sub", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "u1", "user_id": "u2"})
		uid, err := jv.Validate(tok)
		require.NoError(t, err)
		assert.Equal(t, "u2", uid)
	})

	t.Run("expired", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()})
		_, err := jv.Validate(tok)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u1"})
		_, err := jv.Validate(tok)
		assert.Error(t, err)
	})

	t.Run("no subject", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"name": "x"})
		_, err := jv.Validate(tok)
		assert.ErrorIs(t, err, ErrNoSubject)
	})
}

func TestValidateRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	jv, err := NewJWTValidator(path, "RS256", "")
	require.NoError(t, err)

	uid, err := jv.Validate(sign(t, jwt.SigningMethodRS256, key, jwt.MapClaims{"sub": "u9"}))
	require.NoError(t, err)
	assert.Equal(t, "u9", uid)

	// an HS256 token must not pass an RS256 validator
	_, err = jv.Validate(sign(t, jwt.SigningMethodHS256, []byte("x"), jwt.MapClaims{"sub": "u9"}))
	assert.Error(t, err)
}

func TestUnsupportedAlg(t *testing.T) {
	_, err := NewJWTValidator("", "none", "")
	assert.Error(t, err)
	_, err = NewJWTValidator("", "HS256", "")
	assert.Error(t, err)
}
