package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	SetSecret("test-secret")

	token, err := GenerateToken("u-1", "alice", []string{"RE_MANAGER"}, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, []string{"RE_MANAGER"}, claims.Roles)
}

func TestValidateTokenRejects(t *testing.T) {
	SetSecret("test-secret")

	expired, err := GenerateToken("u-1", "alice", nil, -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(expired)
	assert.Error(t, err)

	SetSecret("other-secret")
	signedElsewhere, err := GenerateToken("u-1", "alice", nil, time.Hour)
	require.NoError(t, err)
	SetSecret("test-secret")
	_, err = ValidateToken(signedElsewhere)
	assert.Error(t, err)

	_, err = ValidateToken("not-a-token")
	assert.Error(t, err)
}
