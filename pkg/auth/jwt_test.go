package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestGenerator(t *testing.T, expiry time.Duration) *JWTGenerator {
	t.Helper()
	gen, err := NewJWTGenerator(JWTGeneratorConfig{
		SecretKey: testSecret,
		Issuer:    "knowde",
		Expiry:    expiry,
	})
	require.NoError(t, err)
	return gen
}

func newTestValidator(t *testing.T) *JWTValidator {
	t.Helper()
	validator, err := NewJWTValidator(JWTConfig{
		SecretKey: testSecret,
		Issuer:    "knowde",
	})
	require.NoError(t, err)
	return validator
}

func TestJWTValidator_RoundTrip(t *testing.T) {
	gen := newTestGenerator(t, time.Hour)
	validator := newTestValidator(t)

	token, err := gen.GenerateToken("carl", "carl@example.com", []string{"user"})
	require.NoError(t, err)

	claims, err := validator.ValidateToken(token)

	require.NoError(t, err)
	assert.Equal(t, "carl", claims.UserID)
	assert.Equal(t, "carl@example.com", claims.Email)
	assert.Equal(t, []string{"user"}, claims.Roles)
}

func TestJWTValidator_ExpiredToken(t *testing.T) {
	gen := newTestGenerator(t, -time.Minute)
	validator := newTestValidator(t)

	token, err := gen.GenerateToken("carl", "carl@example.com", nil)
	require.NoError(t, err)

	_, err = validator.ValidateToken(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTValidator_WrongSecret(t *testing.T) {
	gen, err := NewJWTGenerator(JWTGeneratorConfig{SecretKey: "other-secret", Issuer: "knowde"})
	require.NoError(t, err)
	validator := newTestValidator(t)

	token, err := gen.GenerateToken("carl", "", nil)
	require.NoError(t, err)

	_, err = validator.ValidateToken(token)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestJWTValidator_WrongIssuer(t *testing.T) {
	gen, err := NewJWTGenerator(JWTGeneratorConfig{SecretKey: testSecret, Issuer: "someone-else"})
	require.NoError(t, err)
	validator := newTestValidator(t)

	token, err := gen.GenerateToken("carl", "", nil)
	require.NoError(t, err)

	_, err = validator.ValidateToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidator_GarbageToken(t *testing.T) {
	validator := newTestValidator(t)

	_, err := validator.ValidateToken("not-a-token")

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTValidator_RequiresSecret(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{})

	assert.Error(t, err)
}
