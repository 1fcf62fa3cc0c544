package user

import (
	"sync"

	"github.com/AAAlex-123/Yamca/internal/profilestore"
	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/AAAlex-123/Yamca/pkg/client"
	"github.com/sirupsen/logrus"
)

// Config holds everything needed to construct a User.
type Config struct {
	CI       *client.CIManager
	Profiles *profilestore.Store
	Log      *logrus.Entry
}

// User is the single entry point a CLI or GUI front end talks to: it wraps a
// Publisher, a Consumer and a profile store, and turns every completed
// operation into an Event delivered to registered Listeners instead of a
// return value, per spec §4.6. Every public method except Pull spawns a
// goroutine and returns immediately; Pull is synchronous because it only
// drains an in-memory buffer.
type User struct {
	pub *client.Publisher
	con *client.Consumer

	profiles *profilestore.Store
	log      *logrus.Entry

	mu        sync.Mutex
	listeners []Listener
	unread    map[string]int
	lastSeen  map[string]int64 // topic -> last-seen post id, for SwitchProfile resume
}

// New constructs a User and registers its default (local bookkeeping)
// listener first, so it always observes every event before any
// caller-supplied listener does.
func New(cfg Config) *User {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}

	u := &User{
		pub:      client.NewPublisher(cfg.CI),
		con:      client.NewConsumer(cfg.CI),
		profiles: cfg.Profiles,
		log:      log,
		unread:   make(map[string]int),
		lastSeen: make(map[string]int64),
	}
	u.listeners = append(u.listeners, ListenerFunc(u.defaultListener))
	return u
}

// AddListener registers l to receive every Event fired after this call, in
// addition to the ones already registered.
func (u *User) AddListener(l Listener) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.listeners = append(u.listeners, l)
}

func (u *User) fire(e Event) {
	u.mu.Lock()
	listeners := make([]Listener, len(u.listeners))
	copy(listeners, u.listeners)
	u.mu.Unlock()

	for _, l := range listeners {
		l.OnEvent(e)
	}
}

// Post publishes data to topicName under posterName, assigning a fresh post
// id, and fires a MessageSent event on completion.
func (u *User) Post(topicName, posterName, fileExtension string, data []byte) {
	go func() {
		info := wire.PostInfo{PosterName: posterName, FileExtension: fileExtension, ID: client.NewPostID()}
		ok, err := u.pub.Post(topicName, info, data)
		u.fire(Event{Tag: MessageSent, TopicName: topicName, Success: ok, Cause: err})
	}()
}

// CreateTopic asks the owning broker to create topicName and fires
// TopicCreated on completion.
func (u *User) CreateTopic(topicName string) {
	go func() {
		ok, err := u.pub.CreateTopic(topicName)
		u.fire(Event{Tag: TopicCreated, TopicName: topicName, Success: ok, Cause: err})
	}()
}

// DeleteTopic asks the owning broker to delete topicName and fires
// TopicDeleted on completion. This is the RPC-issuer's own outcome, distinct
// from ServerTopicDeleted (fired by a listener observing the deletion).
func (u *User) DeleteTopic(topicName string) {
	go func() {
		ok, err := u.pub.DeleteTopic(topicName)
		u.fire(Event{Tag: TopicDeleted, TopicName: topicName, Success: ok, Cause: err})
	}()
}

// ListenForNewTopic starts listening to topicName from the beginning and
// fires TopicListened on completion of the initial handshake.
func (u *User) ListenForNewTopic(topicName string) {
	u.listenFrom(topicName, wire.FetchAllPosts, TopicListened)
}

// LoadTopic resumes listening to topicName after lastSeenID (typically the
// highest id already persisted locally) and fires TopicLoaded on completion.
func (u *User) LoadTopic(topicName string, lastSeenID int64) {
	u.listenFrom(topicName, lastSeenID, TopicLoaded)
}

func (u *User) listenFrom(topicName string, lastSeenID int64, tag Tag) {
	go func() {
		err := u.con.ListenForTopic(topicName, lastSeenID, u)
		u.fire(Event{Tag: tag, TopicName: topicName, Success: err == nil, Cause: err})
	}()
}

// StopListeningForTopic stops the local subscription to topicName. The
// TopicListenStopped event fires asynchronously once the underlying
// connection actually closes (via MessageReceived's sibling callback,
// ListenStopped), not from this call itself.
func (u *User) StopListeningForTopic(topicName string) {
	go func() {
		if err := u.con.StopListeningForTopic(topicName); err != nil {
			u.fire(Event{Tag: TopicListenStopped, TopicName: topicName, Success: false, Cause: err})
		}
	}()
}

// Pull returns every post buffered for topicName since the previous Pull.
// Unlike every other method, it is synchronous: it only drains an in-memory
// buffer and needs no event to report its outcome.
func (u *User) Pull(topicName string) ([]wire.Post, error) {
	posts, err := u.con.Pull(topicName)
	if err == nil {
		u.mu.Lock()
		delete(u.unread, topicName)
		u.mu.Unlock()
	}
	return posts, err
}

// SwitchProfile loads name as the current profile, replacing all local
// bookkeeping state, then resumes listening to every topic the profile had
// already loaded, each from its highest locally-persisted post id.
func (u *User) SwitchProfile(name string) {
	go func() {
		topics, err := u.profiles.LoadProfile(name)
		if err != nil {
			u.fire(Event{Tag: TopicLoaded, TopicName: name, Success: false, Cause: err})
			return
		}

		u.mu.Lock()
		u.unread = make(map[string]int)
		u.lastSeen = make(map[string]int64)
		u.mu.Unlock()

		for _, topic := range topics {
			lastSeenID := wire.FetchAllPosts
			for _, post := range topic.Posts {
				if post.Info.ID > lastSeenID {
					lastSeenID = post.Info.ID
				}
			}
			u.mu.Lock()
			u.lastSeen[topic.Name] = lastSeenID
			u.mu.Unlock()

			u.LoadTopic(topic.Name, lastSeenID)
		}
	}()
}

// Unread returns how many posts have arrived for topicName since it was last
// marked read by a MessageReceived observation being pulled.
func (u *User) Unread(topicName string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.unread[topicName]
}

// MessageReceived implements client.Notifier. It is called by the Consumer's
// tail goroutine for every post as it arrives, independently of Pull.
func (u *User) MessageReceived(topicName string, post wire.Post) {
	u.fire(Event{Tag: MessageReceived, TopicName: topicName, Success: true, Post: &post})
}

// ServerTopicDeleted implements client.Notifier.
func (u *User) ServerTopicDeleted(topicName string) {
	u.fire(Event{Tag: ServerTopicDeleted, TopicName: topicName, Success: true})
}

// ListenStopped implements client.Notifier.
func (u *User) ListenStopped(topicName string) {
	u.fire(Event{Tag: TopicListenStopped, TopicName: topicName, Success: true})
}

// defaultListener performs the local bookkeeping every User needs
// regardless of what else is listening: persisting newly created/listened/
// loaded topics and received posts to the profile store, marking unread
// counts, and forgetting a topic's local state once it stops being tracked.
func (u *User) defaultListener(e Event) {
	switch e.Tag {
	case TopicCreated, TopicListened, TopicLoaded:
		if !e.Success {
			return
		}
		if err := u.profiles.CreateTopic(e.TopicName); err != nil {
			u.log.WithError(err).WithField("topic", e.TopicName).Debug("topic already present locally")
		}

	case MessageReceived:
		if e.Post == nil {
			return
		}
		if err := u.profiles.SavePost(*e.Post, e.TopicName); err != nil {
			u.log.WithError(err).WithField("topic", e.TopicName).Warn("failed to persist received post")
		}
		u.mu.Lock()
		u.unread[e.TopicName]++
		u.mu.Unlock()

	case TopicDeleted, ServerTopicDeleted, TopicListenStopped:
		if err := u.profiles.DeleteTopic(e.TopicName); err != nil {
			u.log.WithError(err).WithField("topic", e.TopicName).Debug("topic already absent locally")
		}
		u.mu.Lock()
		delete(u.unread, e.TopicName)
		delete(u.lastSeen, e.TopicName)
		u.mu.Unlock()
	}
}
