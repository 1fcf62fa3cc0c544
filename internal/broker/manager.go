package broker

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/AAAlex-123/Yamca/internal/topicstore"
	"github.com/sirupsen/logrus"
)

// ErrTopicExists and ErrNoSuchTopic are the domain errors the manager
// surfaces for duplicate-create and read/remove/register-on-absent,
// per spec §4.4.
var (
	ErrTopicExists = errors.New("broker: topic already exists")
	ErrNoSuchTopic = errors.New("broker: no such topic")
)

// Manager is the thread-safe registry of BrokerTopics and their attached
// consumer sockets. Lock acquisition order is fixed at topics -> consumers
// -> store, to avoid deadlock, per spec §5.
type Manager struct {
	store      topicstore.Store
	maxPayload int
	log        *logrus.Entry

	storeMu sync.Mutex

	topicsMu sync.RWMutex
	topics   map[string]*Topic

	consumersMu sync.Mutex
	consumers   map[string]map[net.Conn]struct{}

	persistMu      sync.Mutex
	persistFactory func(*Topic) Subscriber
}

// NewManager constructs a Manager and loads every persisted topic from
// store into memory.
func NewManager(store topicstore.Store, maxPayload int, log *logrus.Entry) (*Manager, error) {
	m := &Manager{
		store:      store,
		maxPayload: maxPayload,
		log:        log,
		topics:     make(map[string]*Topic),
		consumers:  make(map[string]map[net.Conn]struct{}),
	}

	persisted, err := func() ([]topicstore.Topic, error) {
		m.storeMu.Lock()
		defer m.storeMu.Unlock()
		return store.ReadAllTopics()
	}()
	if err != nil {
		return nil, fmt.Errorf("broker: loading topics: %w", err)
	}

	for _, pt := range persisted {
		topic := LoadTopic(pt, maxPayload, log.WithField("topic", pt.Name))
		m.addLoadedTopic(topic)
	}

	return m, nil
}

// SetPersistenceFactory installs the durability subscriber factory: every
// topic already registered gets subscribed immediately, and every topic
// AddTopic creates afterwards is subscribed as it's created. This is the
// single place a topic's persistence hook gets wired, whether the topic was
// loaded from the store at startup or created during a session, per spec
// §4.5's CREATE_TOPIC requirement to subscribe the persistence hook on
// success.
func (m *Manager) SetPersistenceFactory(f func(*Topic) Subscriber) {
	m.persistMu.Lock()
	m.persistFactory = f
	m.persistMu.Unlock()

	for _, topic := range m.Topics() {
		topic.Subscribe(f(topic))
	}
}

func (m *Manager) subscribePersistence(topic *Topic) {
	m.persistMu.Lock()
	f := m.persistFactory
	m.persistMu.Unlock()

	if f != nil {
		topic.Subscribe(f(topic))
	}
}

// Topics returns every currently-registered BrokerTopic. Used once at
// startup to subscribe the durability hook.
func (m *Manager) Topics() []*Topic {
	m.topicsMu.RLock()
	defer m.topicsMu.RUnlock()

	out := make([]*Topic, 0, len(m.topics))
	for _, t := range m.topics {
		out = append(out, t)
	}
	return out
}

// TopicExists reports whether a topic with the given name is registered.
func (m *Manager) TopicExists(name string) bool {
	m.topicsMu.RLock()
	defer m.topicsMu.RUnlock()
	_, ok := m.topics[name]
	return ok
}

// GetTopic returns the named BrokerTopic.
func (m *Manager) GetTopic(name string) (*Topic, error) {
	m.topicsMu.RLock()
	defer m.topicsMu.RUnlock()

	t, ok := m.topics[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchTopic, name)
	}
	return t, nil
}

// AddTopic creates a new topic in memory and in the store.
func (m *Manager) AddTopic(name string) (*Topic, error) {
	if m.TopicExists(name) {
		return nil, fmt.Errorf("%w: %q", ErrTopicExists, name)
	}

	topic := NewTopic(name, m.log.WithField("topic", name))
	m.addLoadedTopic(topic)
	m.subscribePersistence(topic)

	m.storeMu.Lock()
	err := m.store.CreateTopic(name)
	m.storeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("broker: creating topic %q: %w", name, err)
	}

	return topic, nil
}

// RemoveTopic closes every attached consumer socket, then deletes the topic
// from memory and the store. Socket close failures are logged but do not
// block removal of the remaining sockets.
func (m *Manager) RemoveTopic(name string) error {
	if !m.TopicExists(name) {
		return fmt.Errorf("%w: %q", ErrNoSuchTopic, name)
	}

	m.topicsMu.Lock()
	delete(m.topics, name)
	m.topicsMu.Unlock()

	m.consumersMu.Lock()
	for conn := range m.consumers[name] {
		if err := conn.Close(); err != nil {
			m.log.WithError(err).WithField("topic", name).Warn("closing consumer socket")
		}
	}
	delete(m.consumers, name)
	m.consumersMu.Unlock()

	m.storeMu.Lock()
	err := m.store.DeleteTopic(name)
	m.storeMu.Unlock()
	if err != nil {
		return fmt.Errorf("broker: deleting topic %q: %w", name, err)
	}
	return nil
}

// RegisterConsumer attaches a consumer socket to a topic's fan-out set.
func (m *Manager) RegisterConsumer(name string, conn net.Conn) error {
	if !m.TopicExists(name) {
		return fmt.Errorf("%w: %q", ErrNoSuchTopic, name)
	}

	m.consumersMu.Lock()
	defer m.consumersMu.Unlock()
	m.consumers[name][conn] = struct{}{}
	return nil
}

// UnregisterConsumer detaches a consumer socket, e.g. after a push worker
// observes a write failure. It is a no-op if the socket is not registered.
func (m *Manager) UnregisterConsumer(name string, conn net.Conn) {
	m.consumersMu.Lock()
	defer m.consumersMu.Unlock()
	delete(m.consumers[name], conn)
}

// Close closes every consumer socket tracked by this manager, across every
// topic. Used for orderly broker shutdown.
func (m *Manager) Close() error {
	m.consumersMu.Lock()
	defer m.consumersMu.Unlock()

	var firstErr error
	for topicName, conns := range m.consumers {
		for conn := range conns {
			if err := conn.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("broker: closing consumer for %q: %w", topicName, err)
			}
		}
	}
	return firstErr
}

func (m *Manager) addLoadedTopic(topic *Topic) {
	m.topicsMu.Lock()
	m.topics[topic.Name()] = topic
	m.topicsMu.Unlock()

	m.consumersMu.Lock()
	m.consumers[topic.Name()] = make(map[net.Conn]struct{})
	m.consumersMu.Unlock()
}
