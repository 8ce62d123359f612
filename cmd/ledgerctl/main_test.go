package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodledger/internal/domain/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestToken_IssuesValidatableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	out, err := run(t, "token", "planner-7", "--name", "Planner", "--role", "planner",
		"--database-url", "postgres://localhost/prodledger")
	require.NoError(t, err)

	actor, err := auth.NewJWTService(auth.DefaultJWTConfig("test-secret")).
		ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "planner-7", actor.ID)
	assert.Equal(t, "Planner", actor.Name)
}

func TestToken_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := run(t, "token", "planner-7", "--database-url", "postgres://localhost/prodledger")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestRoot_RejectsInvalidConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "balance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	_, err = run(t, "balance", "--database-url", "postgres://localhost/x", "--produced-source", "bogus")
	require.Error(t, err)
}

func TestRebuild_NeedsStylesOrAll(t *testing.T) {
	_, err := run(t, "rebuild", "--database-url", "postgres://localhost/prodledger")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")
}

func TestDemoCatalogIsValid(t *testing.T) {
	ctx := context.Background()
	for _, l := range demoLines() {
		assert.NoError(t, l.Validate(ctx), l.Code)
	}
	for _, s := range demoStyles() {
		assert.NoError(t, s.Validate(ctx), s.Code)
	}
	assert.Len(t, demoStyles(), len(demoLines()))
}
