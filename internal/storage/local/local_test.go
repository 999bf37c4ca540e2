package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/auth"
)

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, Namespace), s.Dir())

	_, ok, err := s.Get(auth.KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(auth.KeyAccessToken, "token-1"))
	require.NoError(t, s.Set(auth.KeyAccessToken, "token-2"))
	v, ok, err := s.Get(auth.KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-2", v)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files are left behind")
	assert.Equal(t, auth.KeyAccessToken, entries[0].Name())

	require.NoError(t, s.Delete(auth.KeyAccessToken))
	require.NoError(t, s.Delete(auth.KeyAccessToken), "deleting an absent key is not an error")
	_, ok, err = s.Get(auth.KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStorage_RejectsPathKeys(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../escape", "a/b", "", "Upper"} {
		require.Error(t, s.Set(key, "x"), key)
		_, _, err := s.Get(key)
		require.Error(t, err, key)
	}
}

func TestFileStorage_SessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewFileStorage(dir)
	require.NoError(t, err)

	store := auth.NewStore(storage, nil)
	require.NoError(t, store.Login("access", "refresh", auth.User{ID: "1", Username: "ana"}))

	reopened, err := NewFileStorage(dir)
	require.NoError(t, err)
	restored := auth.NewStore(reopened, nil)
	require.NoError(t, restored.Rehydrate())
	assert.Equal(t, "access", restored.AccessToken())
	assert.Equal(t, "ana", restored.Session().User.Username)
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.Set("k", "v"))
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, s.Delete("k"))
	_, ok, _ = s.Get("k")
	assert.False(t, ok)
}
