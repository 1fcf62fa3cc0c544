package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/AAAlex-123/Yamca/internal/wire"
)

// ErrNotListening is returned by operations on a topic the Consumer was
// never told to listen to, or has already stopped listening to.
var ErrNotListening = errors.New("client: not listening to topic")

// ErrTopicDoesNotExist is returned when INITIALISE_CONSUMER reports failure.
var ErrTopicDoesNotExist = errors.New("client: topic does not exist")

// Notifier receives the outcomes of a Consumer's long-lived listening
// connections. pkg/user implements this to translate them into UserEvents,
// keeping the spec's EOF-vs-reset distinction (§9): a server-initiated topic
// deletion surfaces as ServerTopicDeleted, a locally-initiated stop as
// ListenStopped.
type Notifier interface {
	MessageReceived(topicName string, post wire.Post)
	ServerTopicDeleted(topicName string)
	ListenStopped(topicName string)
}

type subscription struct {
	conn   net.Conn
	stream *wire.Stream

	mu      sync.Mutex
	pointer int64
	buffer  []wire.Post
}

// Consumer listens to topics and buffers incoming posts until pulled. Each
// listened topic owns one long-lived connection and one background
// goroutine draining it, per spec §4.6/§5.
type Consumer struct {
	ci *CIManager

	mu   sync.Mutex
	subs map[string]*subscription
}

// NewConsumer returns a Consumer that resolves owning brokers through ci.
func NewConsumer(ci *CIManager) *Consumer {
	return &Consumer{ci: ci, subs: make(map[string]*subscription)}
}

// ListenForTopic opens a streaming connection to topicName's owning broker,
// resuming after lastSeenID, and starts the background goroutine that
// drains it. notifier is called for every subsequent record and for the
// eventual termination of the stream.
func (c *Consumer) ListenForTopic(topicName string, lastSeenID int64, notifier Notifier) error {
	owner, err := c.ci.Resolve(topicName)
	if err != nil {
		return err
	}

	conn, err := net.Dial("tcp", owner.String())
	if err != nil {
		return fmt.Errorf("client: listening to %q: %w", topicName, err)
	}

	stream := wire.NewStream(conn)
	msg := wire.Message{Type: wire.InitialiseConsumer, Value: wire.TopicToken{Name: topicName, LastSeenID: lastSeenID}}
	if err := stream.WriteMessage(msg); err != nil {
		conn.Close()
		return fmt.Errorf("client: listening to %q: %w", topicName, err)
	}

	success, err := stream.ReadBool()
	if err != nil {
		conn.Close()
		return fmt.Errorf("client: listening to %q: %w", topicName, err)
	}
	if !success {
		conn.Close()
		return fmt.Errorf("%w: %q", ErrTopicDoesNotExist, topicName)
	}

	// keep-alive header: always wire.KeepAlive once a backfill-then-tail
	// stream is opened; the value carries no information to the reader.
	if _, err := stream.ReadInt32(); err != nil {
		conn.Close()
		return fmt.Errorf("client: listening to %q: %w", topicName, err)
	}

	sub := &subscription{conn: conn, stream: stream, pointer: lastSeenID}
	c.mu.Lock()
	c.subs[topicName] = sub
	c.mu.Unlock()

	go c.tailLoop(topicName, sub, notifier)
	return nil
}

// StopListeningForTopic closes the connection backing topicName's
// subscription. The tail goroutine observes the close and calls
// notifier.ListenStopped.
func (c *Consumer) StopListeningForTopic(topicName string) error {
	c.mu.Lock()
	sub, ok := c.subs[topicName]
	delete(c.subs, topicName)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrNotListening, topicName)
	}
	return sub.conn.Close()
}

// Pull returns every post buffered for topicName since the previous Pull
// (or since ListenForTopic, for the first call), earliest first, and clears
// the buffer. It does not close or otherwise disturb the stream.
func (c *Consumer) Pull(topicName string) ([]wire.Post, error) {
	c.mu.Lock()
	sub, ok := c.subs[topicName]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotListening, topicName)
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	posts := sub.buffer
	sub.buffer = nil
	return posts, nil
}

func (c *Consumer) tailLoop(topicName string, sub *subscription, notifier Notifier) {
	for {
		pi, err := sub.stream.ReadPostInfo()
		if err != nil {
			c.endSubscription(topicName, err, notifier)
			return
		}

		var packets []wire.Packet
		for {
			pk, err := sub.stream.ReadPacket()
			if err != nil {
				c.endSubscription(topicName, err, notifier)
				return
			}
			packets = append(packets, pk)
			if pk.Final {
				break
			}
		}

		post := wire.PostFromPackets(pi, packets)

		sub.mu.Lock()
		sub.buffer = append(sub.buffer, post)
		if pi.ID > sub.pointer {
			sub.pointer = pi.ID
		}
		sub.mu.Unlock()

		notifier.MessageReceived(topicName, post)
	}
}

func (c *Consumer) endSubscription(topicName string, cause error, notifier Notifier) {
	c.mu.Lock()
	delete(c.subs, topicName)
	c.mu.Unlock()

	if errors.Is(cause, io.EOF) {
		notifier.ServerTopicDeleted(topicName)
	} else {
		notifier.ListenStopped(topicName)
	}
}
