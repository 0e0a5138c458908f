package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken("t1", domain.RoleTechnician)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "t1", claims.SubjectID)
	require.Equal(t, domain.RoleTechnician, claims.Role)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)
	other := NewTokenManager("another-secret", 60)

	token, _, err := tm.GenerateToken("s1", domain.RoleStudent)
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	_, err := tm.ParseToken("not-a-token")
	require.Error(t, err)
}
