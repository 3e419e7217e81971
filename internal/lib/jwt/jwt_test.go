package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	return m
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager("", "refresh", time.Minute, time.Hour)
	assert.Error(t, err)

	_, err = NewManager("same", "same", time.Minute, time.Hour)
	assert.Error(t, err)

	_, err = NewManager("a", "b", 0, time.Hour)
	assert.Error(t, err)
}

func TestVerify_RoundTrip(t *testing.T) {
	m := newTestManager(t)
	userID := uuid.New()

	access, err := m.NewAccessToken(userID)
	require.NoError(t, err)

	refresh, err := m.NewRefreshToken(userID)
	require.NoError(t, err)

	claims, err := m.Verify(access, TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, TokenKindAccess, claims.Kind)

	claims, err = m.Verify(refresh, TokenKindRefresh)
	require.NoError(t, err)

	sub, err := claims.Subject()
	require.NoError(t, err)
	assert.Equal(t, userID, sub)
}

func TestVerify_RejectsWrongKind(t *testing.T) {
	m := newTestManager(t)
	userID := uuid.New()

	access, err := m.NewAccessToken(userID)
	require.NoError(t, err)

	refresh, err := m.NewRefreshToken(userID)
	require.NoError(t, err)

	_, err = m.Verify(access, TokenKindRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify(refresh, TokenKindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsForeignSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager("other-access", "other-refresh", time.Minute, time.Hour)
	require.NoError(t, err)

	token, err := other.NewAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = m.Verify(token, TokenKindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	m := &Manager{
		accessSecret:  []byte("access-secret"),
		refreshSecret: []byte("refresh-secret"),
		accessTTL:     -time.Minute,
		refreshTTL:    -time.Minute,
	}

	token, err := m.NewAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = m.Verify(token, TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_Garbage(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Verify("not.a.token", TokenKindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokens_NeverRepeat(t *testing.T) {
	m := newTestManager(t)
	userID := uuid.New()

	first, err := m.NewRefreshToken(userID)
	require.NoError(t, err)

	second, err := m.NewRefreshToken(userID)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
