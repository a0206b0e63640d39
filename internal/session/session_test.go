package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "session.yaml"))

	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoSession)

	want := &Session{
		APIURL:      "https://hr.example.com",
		Username:    "jane",
		Role:        "hr",
		AccessToken: "token-1",
		ExpiresAt:   time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(want))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear())
	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoSession)
	require.NoError(t, store.Clear())
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("access_token: [unterminated"), 0o600))

	_, err := NewStore(path).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	var nilSession *Session
	assert.True(t, nilSession.Expired(now))
	assert.Empty(t, nilSession.Token())

	assert.False(t, (&Session{AccessToken: "t"}).Expired(now))
	assert.False(t, (&Session{AccessToken: "t", ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&Session{AccessToken: "t", ExpiresAt: now}).Expired(now))
}
