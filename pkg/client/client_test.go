package client

import (
	"testing"

	"github.com/AAAlex-123/Yamca/internal/broker"
	"github.com/AAAlex-123/Yamca/internal/topicstore"
	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestBroker(t *testing.T) wire.ConnectionInfo {
	t.Helper()

	store, err := topicstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	log := logrus.NewEntry(logrus.New())
	log.Logger.SetOutput(testWriter{t})

	b, err := broker.NewLeader(broker.Config{
		ID:         "b1",
		ClientAddr: "127.0.0.1:0",
		PeerAddr:   "127.0.0.1:0",
		Store:      store,
		Log:        log,
	})
	require.NoError(t, err)

	go b.Run()
	t.Cleanup(func() { b.Close() })

	return b.ClientCI()
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) { return len(p), nil }

type recordingNotifier struct {
	mu       chan struct{}
	received []string
	deleted  []string
	stopped  []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{mu: make(chan struct{}, 64)}
}

func (n *recordingNotifier) MessageReceived(topicName string, post wire.Post) {
	n.received = append(n.received, topicName)
	n.mu <- struct{}{}
}
func (n *recordingNotifier) ServerTopicDeleted(topicName string) {
	n.deleted = append(n.deleted, topicName)
	n.mu <- struct{}{}
}
func (n *recordingNotifier) ListenStopped(topicName string) {
	n.stopped = append(n.stopped, topicName)
	n.mu <- struct{}{}
}

func TestCreatePublishPullSingleBroker(t *testing.T) {
	defaultBroker := startTestBroker(t)
	ci := NewCIManager(defaultBroker)
	pub := NewPublisher(ci)
	con := NewConsumer(ci)

	ok, err := pub.CreateTopic("t")
	require.NoError(t, err)
	require.True(t, ok)

	notifier := newRecordingNotifier()
	require.NoError(t, con.ListenForTopic("t", wire.FetchAllPosts, notifier))

	info := wire.PostInfo{PosterName: "u", FileExtension: "txt", ID: NewPostID()}
	ok, err = pub.Post("t", info, []byte("hi"))
	require.NoError(t, err)
	require.True(t, ok)

	<-notifier.mu

	posts, err := con.Pull("t")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, info, posts[0].Info)
	assert.Equal(t, []byte("hi"), posts[0].Data)
}

func TestDeleteWhileListeningFiresServerTopicDeleted(t *testing.T) {
	defaultBroker := startTestBroker(t)
	ci := NewCIManager(defaultBroker)
	pub := NewPublisher(ci)
	con := NewConsumer(ci)

	ok, err := pub.CreateTopic("t")
	require.NoError(t, err)
	require.True(t, ok)

	notifier := newRecordingNotifier()
	require.NoError(t, con.ListenForTopic("t", wire.FetchAllPosts, notifier))

	ok, err = pub.DeleteTopic("t")
	require.NoError(t, err)
	require.True(t, ok)

	<-notifier.mu
	assert.Equal(t, []string{"t"}, notifier.deleted)

	_, err = con.Pull("t")
	assert.ErrorIs(t, err, ErrNotListening)
}

func TestStopListeningFiresListenStopped(t *testing.T) {
	defaultBroker := startTestBroker(t)
	ci := NewCIManager(defaultBroker)
	pub := NewPublisher(ci)
	con := NewConsumer(ci)

	ok, err := pub.CreateTopic("t")
	require.NoError(t, err)
	require.True(t, ok)

	notifier := newRecordingNotifier()
	require.NoError(t, con.ListenForTopic("t", wire.FetchAllPosts, notifier))

	require.NoError(t, con.StopListeningForTopic("t"))
	<-notifier.mu
	assert.Equal(t, []string{"t"}, notifier.stopped)
}

func TestCreateTopicDuplicateFails(t *testing.T) {
	defaultBroker := startTestBroker(t)
	ci := NewCIManager(defaultBroker)
	pub := NewPublisher(ci)

	ok, err := pub.CreateTopic("z")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = pub.CreateTopic("z")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostToNonexistentTopicFails(t *testing.T) {
	defaultBroker := startTestBroker(t)
	ci := NewCIManager(defaultBroker)
	pub := NewPublisher(ci)

	ok, err := pub.Post("ghost", wire.PostInfo{ID: NewPostID()}, []byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)
}
