package user

import (
	"sync"
	"testing"
	"time"

	"github.com/AAAlex-123/Yamca/internal/broker"
	"github.com/AAAlex-123/Yamca/internal/profilestore"
	"github.com/AAAlex-123/Yamca/internal/topicstore"
	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/AAAlex-123/Yamca/pkg/client"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func startTestBroker(t *testing.T) wire.ConnectionInfo {
	t.Helper()

	store, err := topicstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	log := logrus.NewEntry(logrus.New())
	log.Logger.SetOutput(discardWriter{})

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

func newTestUser(t *testing.T, defaultBroker wire.ConnectionInfo) *User {
	t.Helper()

	profileRoot := t.TempDir()
	profiles, err := profilestore.Open(profileRoot)
	require.NoError(t, err)
	require.NoError(t, profiles.CreateNewProfile("me"))

	log := logrus.NewEntry(logrus.New())
	log.Logger.SetOutput(discardWriter{})

	return New(Config{
		CI:       client.NewCIManager(defaultBroker),
		Profiles: profiles,
		Log:      log,
	})
}

// eventCollector records every Event fired, in order, and lets tests wait
// for a specific tag instead of sleeping.
type eventCollector struct {
	mu     sync.Mutex
	events []Event
	wake   chan struct{}
}

func newEventCollector() *eventCollector {
	return &eventCollector{wake: make(chan struct{}, 256)}
}

func (c *eventCollector) OnEvent(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	c.wake <- struct{}{}
}

func (c *eventCollector) waitFor(t *testing.T, tag Tag) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		for _, e := range c.events {
			if e.Tag == tag {
				c.mu.Unlock()
				return e
			}
		}
		c.mu.Unlock()

		select {
		case <-c.wake:
		case <-deadline:
			t.Fatalf("timed out waiting for event tag %v", tag)
		}
	}
}

func TestCreateTopicFiresTopicCreated(t *testing.T) {
	u := newTestUser(t, startTestBroker(t))
	events := newEventCollector()
	u.AddListener(events)

	u.CreateTopic("news")

	e := events.waitFor(t, TopicCreated)
	assert.True(t, e.Success)
	assert.Equal(t, "news", e.TopicName)
}

func TestPostAndReceiveRoundTrip(t *testing.T) {
	u := newTestUser(t, startTestBroker(t))
	events := newEventCollector()
	u.AddListener(events)

	u.CreateTopic("sports")
	events.waitFor(t, TopicCreated)

	u.ListenForNewTopic("sports")
	events.waitFor(t, TopicListened)

	u.Post("sports", "alice", "txt", []byte("goal"))
	events.waitFor(t, MessageSent)

	e := events.waitFor(t, MessageReceived)
	require.NotNil(t, e.Post)
	assert.Equal(t, []byte("goal"), e.Post.Data)
	assert.Equal(t, 1, u.Unread("sports"))

	posts, err := u.Pull("sports")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, []byte("goal"), posts[0].Data)
}

func TestDeleteTopicWhileListeningFiresBothTags(t *testing.T) {
	u := newTestUser(t, startTestBroker(t))
	events := newEventCollector()
	u.AddListener(events)

	u.CreateTopic("weather")
	events.waitFor(t, TopicCreated)

	u.ListenForNewTopic("weather")
	events.waitFor(t, TopicListened)

	u.DeleteTopic("weather")
	events.waitFor(t, TopicDeleted)
	events.waitFor(t, ServerTopicDeleted)

	assert.Equal(t, 0, u.Unread("weather"))
}

func TestStopListeningFiresTopicListenStopped(t *testing.T) {
	u := newTestUser(t, startTestBroker(t))
	events := newEventCollector()
	u.AddListener(events)

	u.CreateTopic("chat")
	events.waitFor(t, TopicCreated)

	u.ListenForNewTopic("chat")
	events.waitFor(t, TopicListened)

	u.StopListeningForTopic("chat")
	events.waitFor(t, TopicListenStopped)
}

func TestTagStringIsHumanReadable(t *testing.T) {
	assert.Equal(t, "MESSAGE_SENT", MessageSent.String())
	assert.Equal(t, "TOPIC_LISTEN_STOPPED", TopicListenStopped.String())
}
