package broker

import (
	"fmt"
	"net"
	"sync"

	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/sirupsen/logrus"
)

// runPullLoop reads a publisher's finite post stream off stream and appends
// every record to topic, per spec §4.5: read an int32 count, then for count
// posts read one PostInfo followed by its Packets up to and including the
// one marked final. A packet whose PostID doesn't match the PostInfo that
// introduced it is a protocol violation: the loop stops without appending
// that packet, and the caller closes the connection.
func runPullLoop(stream *wire.Stream, topic *Topic) error {
	count, err := stream.ReadInt32()
	if err != nil {
		return fmt.Errorf("broker: reading post count: %w", err)
	}

	for i := int32(0); i < count; i++ {
		pi, err := stream.ReadPostInfo()
		if err != nil {
			return fmt.Errorf("broker: reading post info: %w", err)
		}
		topic.PostInfo(pi)

		for {
			pk, err := stream.ReadPacket()
			if err != nil {
				return fmt.Errorf("broker: reading packet: %w", err)
			}
			if pk.PostID != pi.ID {
				return fmt.Errorf("broker: protocol violation: packet for post %d while expecting post %d",
					pk.PostID, pi.ID)
			}

			topic.PostPacket(pk)
			if pk.Final {
				break
			}
		}
	}

	return nil
}

// sendBackfill writes the keep-alive sentinel count followed by every
// already-known post after the consumer's last-seen id, per spec §4.1 and
// §4.5: an INITIALISE_CONSUMER stream always opens with postCount =
// INT32_MAX, since the connection stays open for the keep-alive tail that
// follows.
func sendBackfill(stream *wire.Stream, infos []wire.PostInfo, packets map[int64][]wire.Packet) error {
	if err := stream.WriteInt32(wire.KeepAlive); err != nil {
		return fmt.Errorf("broker: writing backfill header: %w", err)
	}

	for _, pi := range infos {
		if err := stream.WritePostInfo(pi); err != nil {
			return fmt.Errorf("broker: writing backfill post info: %w", err)
		}
		for _, pk := range packets[pi.ID] {
			if err := stream.WritePacket(pk); err != nil {
				return fmt.Errorf("broker: writing backfill packet: %w", err)
			}
		}
	}

	return nil
}

const tailBufferSize = 256

// tailSubscriber is the keep-alive push worker: it subscribes to a Topic and
// writes every subsequent record to one consumer's stream, in order. Per
// spec §9's design note, appends to the subscriber are non-blocking sends
// into a bounded channel; a dedicated goroutine drains it onto the socket so
// that a slow consumer never holds up the topic's lock. A full buffer or a
// write failure detaches the subscriber.
type tailSubscriber struct {
	mu     sync.Mutex
	ch     chan pushRecord
	closed bool
}

type pushRecord struct {
	isPacket bool
	info     wire.PostInfo
	packet   wire.Packet
}

// startTailWorker subscribes a tailSubscriber to topic and starts the
// goroutine that drains it onto conn via stream. manager is used to detach
// the consumer socket bookkeeping alongside the topic subscription.
func startTailWorker(topic *Topic, manager *Manager, conn net.Conn, stream *wire.Stream, log *logrus.Entry) {
	sub := &tailSubscriber{ch: make(chan pushRecord, tailBufferSize)}
	topic.Subscribe(sub)

	go func() {
		defer sub.detach(topic, manager, topic.Name(), conn)

		for rec := range sub.ch {
			var err error
			if rec.isPacket {
				err = stream.WritePacket(rec.packet)
			} else {
				err = stream.WritePostInfo(rec.info)
			}
			if err != nil {
				log.WithError(err).WithField("topic", topic.Name()).
					Debug("push worker write failed, detaching")
				return
			}
		}
	}()
}

func (s *tailSubscriber) NotifyPostInfo(pi wire.PostInfo, _ string) {
	s.send(pushRecord{isPacket: false, info: pi})
}

func (s *tailSubscriber) NotifyPacket(pk wire.Packet, _ string) {
	s.send(pushRecord{isPacket: true, packet: pk})
}

// send and closeCh share s.mu so a send can never race a close: without it,
// a send() that just saw the channel open could still land on it after
// closeCh closed it from another goroutine, panicking.
func (s *tailSubscriber) send(rec pushRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.ch <- rec:
	default:
		// slow consumer: bounded buffer overflow, detach rather than block
		// the topic's append path.
		s.closed = true
		close(s.ch)
	}
}

func (s *tailSubscriber) closeCh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *tailSubscriber) detach(topic *Topic, manager *Manager, topicName string, conn net.Conn) {
	s.closeCh()
	topic.Unsubscribe(s)
	manager.UnregisterConsumer(topicName, conn)
	conn.Close()
}
