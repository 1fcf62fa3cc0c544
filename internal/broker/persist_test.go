package broker

import (
	"testing"
	"time"

	"github.com/AAAlex-123/Yamca/internal/topicstore"
	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestManagerAddTopicSubscribesPersistenceHook covers spec §4.5's CREATE_TOPIC
// requirement that a topic created mid-session gets a durability subscriber,
// not just topics loaded from the store at startup.
func TestManagerAddTopicSubscribesPersistenceHook(t *testing.T) {
	store, err := topicstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	log := logrus.NewEntry(logrus.New())
	m, err := NewManager(store, MaxPacketPayload, log)
	require.NoError(t, err)

	m.SetPersistenceFactory(func(topic *Topic) Subscriber {
		return newPersistenceSubscriber(topic, store, nil)
	})

	topic, err := m.AddTopic("news")
	require.NoError(t, err)

	pi := wire.PostInfo{ID: 1, PosterName: "alex", FileExtension: "txt"}
	topic.PostInfo(pi)
	topic.PostPacket(wire.Packet{PostID: 1, Final: true, Payload: []byte("hello")})

	persisted, err := store.ReadAllTopics()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	require.Len(t, persisted[0].Posts, 1)
	assert.Equal(t, pi, persisted[0].Posts[0].Info)
	assert.Equal(t, []byte("hello"), persisted[0].Posts[0].Data)
}

// TestPersistenceSubscriberNotifyPacketDoesNotDeadlock exercises the real
// persistenceSubscriber, wired the way Manager wires it, to prove the
// notify-under-lock path assembles the post without re-entering the topic's
// lock.
func TestPersistenceSubscriberNotifyPacketDoesNotDeadlock(t *testing.T) {
	store, err := topicstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.CreateTopic("news"))

	topic := NewTopic("news", logrus.NewEntry(logrus.New()))
	topic.Subscribe(newPersistenceSubscriber(topic, store, nil))

	topic.PostInfo(wire.PostInfo{ID: 1, PosterName: "alex", FileExtension: "txt"})

	done := make(chan struct{})
	go func() {
		topic.PostPacket(wire.Packet{PostID: 1, Final: true, Payload: []byte("hi")})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PostPacket did not return: persistence hook deadlocked on the topic lock")
	}

	persisted, err := store.ReadAllTopics()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	require.Len(t, persisted[0].Posts, 1)
	assert.Equal(t, []byte("hi"), persisted[0].Posts[0].Data)
}
