package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, expiresAt, err := svc.IssueToken("planner-7", "Planner Seven", []string{"planner"})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	actor, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "planner-7", actor.ID)
	assert.Equal(t, "Planner Seven", actor.Name)
	assert.Equal(t, []string{"planner"}, actor.Roles)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	other := NewJWTService(DefaultJWTConfig("other-secret"))
	forged, _, err := other.IssueToken("planner-7", "", nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.Error(t, err)

	cfg := DefaultJWTConfig("secret")
	cfg.TokenTTL = -time.Minute
	expired, _, err := NewJWTService(cfg).IssueToken("planner-7", "", nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.Error(t, err)

	cfg = DefaultJWTConfig("secret")
	cfg.Issuer = "someone-else"
	wrongIssuer, _, err := NewJWTService(cfg).IssueToken("planner-7", "", nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(wrongIssuer)
	assert.Error(t, err)

	noSubject, _, err := svc.IssueToken("", "", nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(noSubject)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
