package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndAuthenticate(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)

	tok, err := j.Issue(Principal{ID: 42, Role: RoleDoctor})
	require.NoError(t, err)

	p, err := j.Authenticate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, Principal{ID: 42, Role: RoleDoctor}, p)
	assert.True(t, p.Is(RoleDoctor, 42))
	assert.False(t, p.Is(RolePatient, 42))
}

func TestAuthenticateRejects(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	other := NewJWT("other-secret", time.Hour)

	foreign, err := other.Issue(Principal{ID: 1, Role: RoleAdmin})
	require.NoError(t, err)

	expiredIssuer := NewJWT("test-secret", time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.Issue(Principal{ID: 1, Role: RolePatient})
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":      "not-a-jwt",
		"wrong secret": foreign,
		"expired":      expired,
		"empty":        "",
	} {
		_, err := j.Authenticate(context.Background(), tok)
		assert.ErrorIs(t, err, ErrUnauthenticated, name)
	}
}

func TestIssueUnknownRole(t *testing.T) {
	_, err := NewJWT("s", time.Hour).Issue(Principal{ID: 1, Role: "nurse"})
	assert.Error(t, err)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{ID: 7, Role: RolePatient})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), p.ID)
}
