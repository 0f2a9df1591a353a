package sealer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := New("top-secret", "console-session")
	require.NoError(t, err)
	require.True(t, s.Enabled())

	sealed, err := s.Seal([]byte(`{"id":"u1"}`), []byte("sid-1"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "u1")

	opened, err := s.Open(sealed, []byte("sid-1"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"u1"}`, string(opened))
}

func TestOpenRejectsOtherKeyBinding(t *testing.T) {
	s, err := New("top-secret", "console-session")
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("payload"), []byte("sid-1"))
	require.NoError(t, err)

	_, err = s.Open(sealed, []byte("sid-2"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = s.Open([]byte("short"), nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEmptySecretPassThrough(t *testing.T) {
	s, err := New("", "console-session")
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	sealed, err := s.Seal([]byte("plain"), nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(sealed))
}
