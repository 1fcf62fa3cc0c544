package profilestore

import (
	"testing"

	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestCreateNewProfileBecomesCurrent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateNewProfile("alex"))
	assert.Equal(t, "alex", s.CurrentProfile())
	assert.Contains(t, s.ProfileNames(), "alex")
}

func TestOperationsRequireCurrentProfile(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.CreateTopic("t"), ErrNoCurrentProfile)
	assert.ErrorIs(t, s.DeleteTopic("t"), ErrNoCurrentProfile)
	assert.ErrorIs(t, s.SavePost(wire.Post{}, "t"), ErrNoCurrentProfile)
}

func TestLoadProfileSwitchesCurrentAndReturnsTopics(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateNewProfile("alex"))
	require.NoError(t, s.CreateTopic("news"))
	post := wire.Post{Info: wire.PostInfo{PosterName: "alex", FileExtension: "txt", ID: 1}, Data: []byte("hi")}
	require.NoError(t, s.SavePost(post, "news"))

	require.NoError(t, s.CreateNewProfile("dim"))
	assert.Equal(t, "dim", s.CurrentProfile())

	topics, err := s.LoadProfile("alex")
	require.NoError(t, err)
	assert.Equal(t, "alex", s.CurrentProfile())
	require.Len(t, topics, 1)
	assert.Equal(t, "news", topics[0].Name)
	require.Len(t, topics[0].Posts, 1)
	assert.Equal(t, post.Data, topics[0].Posts[0].Data)
}

func TestLoadProfileUnknownFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadProfile("ghost")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestOpenDiscoversExistingProfiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.CreateNewProfile("alex"))
	require.NoError(t, s.CreateTopic("news"))

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Contains(t, reopened.ProfileNames(), "alex")
}
