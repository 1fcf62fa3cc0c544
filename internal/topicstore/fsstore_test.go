package topicstore

import (
	"os"
	"testing"

	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	return store
}

func TestFileStoreCreateWriteReadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateTopic("t"))

	posts := []wire.Post{
		{Info: wire.PostInfo{PosterName: "alex", FileExtension: "txt", ID: 1}, Data: []byte("first")},
		{Info: wire.PostInfo{PosterName: "alex", FileExtension: "txt", ID: 2}, Data: []byte("second")},
		{Info: wire.PostInfo{PosterName: "dim", FileExtension: "bin", ID: 3}, Data: []byte{0x01, 0x02}},
	}

	for _, p := range posts {
		require.NoError(t, store.WritePost(p, "t"))
	}

	topics, err := store.ReadAllTopics()
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "t", topics[0].Name)
	require.Len(t, topics[0].Posts, 3)

	for i, p := range posts {
		assert.Equal(t, p.Info, topics[0].Posts[i].Info)
		assert.Equal(t, p.Data, topics[0].Posts[i].Data)
	}
}

func TestFileStoreEmptyTopic(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateTopic("empty"))

	topics, err := store.ReadAllTopics()
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Empty(t, topics[0].Posts)
}

func TestFileStoreDeleteTopic(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateTopic("t"))
	require.NoError(t, store.WritePost(wire.Post{Info: wire.PostInfo{PosterName: "u", FileExtension: "txt", ID: 1}, Data: []byte("x")}, "t"))

	require.NoError(t, store.DeleteTopic("t"))

	_, err := os.Stat(store.topicDir("t"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreBadFilenameFailsLoad(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateTopic("t"))

	badPath := store.topicDir("t") + "/not-a-valid-name"
	require.NoError(t, os.WriteFile(badPath, []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(store.headPath("t"), []byte("not-a-valid-name"), 0o644))

	_, err := store.ReadAllTopics()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadFilename)
}

func TestNewFileStoreRequiresExistingDir(t *testing.T) {
	_, err := NewFileStore("/nonexistent/path/does/not/exist")
	require.Error(t, err)
}
