package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenStableWithinSession(t *testing.T) {
	m := NewCSRFManager("csrf-secret")
	sess := &Session{ID: "11111111-1111-1111-1111-111111111111", values: map[string]string{}}

	first, err := m.EnsureToken(sess)
	require.NoError(t, err)
	second, err := m.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NoError(t, m.VerifyToken(sess, first))
}

func TestCSRFTokenRejections(t *testing.T) {
	m := NewCSRFManager("csrf-secret")
	sess := &Session{ID: "11111111-1111-1111-1111-111111111111", values: map[string]string{}}

	assert.ErrorIs(t, m.VerifyToken(sess, "anything"), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(nil, "anything"), ErrCSRFTokenMissing)

	token, err := m.EnsureToken(sess)
	require.NoError(t, err)
	assert.ErrorIs(t, m.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(sess, token+"x"), ErrCSRFTokenMismatch)

	other := NewCSRFManager("other-secret")
	assert.ErrorIs(t, other.VerifyToken(sess, token), ErrCSRFTokenMismatch)
}

func TestCSRFTokenReissuedAfterSessionRenewal(t *testing.T) {
	m := NewCSRFManager("csrf-secret")
	sess := &Session{ID: "11111111-1111-1111-1111-111111111111", values: map[string]string{}}
	before, err := m.EnsureToken(sess)
	require.NoError(t, err)

	sess.ID = "22222222-2222-2222-2222-222222222222"
	assert.ErrorIs(t, m.VerifyToken(sess, before), ErrCSRFTokenMismatch)

	after, err := m.EnsureToken(sess)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.NoError(t, m.VerifyToken(sess, after))
}
