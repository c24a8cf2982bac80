package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hirevoice/interview/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, "http://localhost:8080/uploads/")
	require.NoError(t, err)

	key := storage.NewKey("answers/session-1", "audio/webm")
	assert.True(t, strings.HasPrefix(key, "answers/session-1/"))
	assert.True(t, strings.HasSuffix(key, ".webm"))

	obj, err := store.Put(context.Background(), key, []byte("audio"), "audio/webm")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/"+key, obj.URL)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))

	require.NoError(t, store.Delete(context.Background(), key))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is not an error
	assert.NoError(t, store.Delete(context.Background(), key))
}

func TestRejectsEscapingKeys(t *testing.T) {
	store, err := NewStore(t.TempDir(), "http://x")
	require.NoError(t, err)

	for _, key := range []string{"../outside.mp3", "/etc/passwd", ""} {
		_, err := store.Put(context.Background(), key, []byte("x"), "audio/mpeg")
		assert.Error(t, err, key)
	}
}

func TestNewKeyExtensions(t *testing.T) {
	assert.True(t, strings.HasSuffix(storage.NewKey("q", "audio/mpeg"), ".mp3"))
	assert.True(t, strings.HasSuffix(storage.NewKey("q", "audio/wav"), ".wav"))
	assert.True(t, strings.HasSuffix(storage.NewKey("q", "nonsense"), ".bin"))
}
