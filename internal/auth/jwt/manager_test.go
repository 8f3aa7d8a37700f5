package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = strings.Repeat("s", 32)

func TestManagerIssueAndValidate(t *testing.T) {
	m := NewManager(testSecret, "accountdesk", time.Hour)

	token, claims, err := m.Issue("root", "operator")
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "root", parsed.Username)
	assert.Equal(t, "operator", parsed.Role)
	assert.Equal(t, claims.ID, parsed.ID)

	_, second, err := m.Issue("root", "operator")
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, second.ID)
}

func TestManagerRejects(t *testing.T) {
	m := NewManager(testSecret, "accountdesk", time.Hour)
	token, _, err := m.Issue("root", "operator")
	require.NoError(t, err)

	t.Run("过期令牌", func(t *testing.T) {
		expired := NewManager(testSecret, "accountdesk", time.Minute)
		expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
		old, _, err := expired.Issue("root", "operator")
		require.NoError(t, err)

		_, err = m.Validate(old)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("签名密钥不同", func(t *testing.T) {
		other := NewManager(strings.Repeat("x", 32), "accountdesk", time.Hour)
		_, err := other.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("签发者不同", func(t *testing.T) {
		other := NewManager(testSecret, "someone-else", time.Hour)
		_, err := other.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("格式错误", func(t *testing.T) {
		_, err := m.Validate("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
