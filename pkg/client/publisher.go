package client

import (
	"fmt"
	"net"

	"github.com/AAAlex-123/Yamca/internal/wire"
)

// MaxPacketPayload bounds how large a single wire Packet's payload is when a
// Publisher fragments post data. The broker keeps packets as received, so
// this need not equal the broker's own fragment size; the protocol itself
// places no constraint on it.
const MaxPacketPayload = 32 * 1024

// Publisher creates topics and pushes posts to them. Every method opens
// exactly one connection to the topic's owning broker, performs one
// request, and returns synchronously; pkg/user is what turns these into
// asynchronous, event-bus-driven operations.
type Publisher struct {
	ci *CIManager
}

// NewPublisher returns a Publisher that resolves owning brokers through ci.
func NewPublisher(ci *CIManager) *Publisher {
	return &Publisher{ci: ci}
}

func (p *Publisher) dial(topicName string) (net.Conn, *wire.Stream, error) {
	owner, err := p.ci.Resolve(topicName)
	if err != nil {
		return nil, nil, err
	}
	conn, err := net.Dial("tcp", owner.String())
	if err != nil {
		return nil, nil, fmt.Errorf("client: connecting to %s: %w", owner, err)
	}
	return conn, wire.NewStream(conn), nil
}

// CreateTopic asks the owning broker to create topicName.
func (p *Publisher) CreateTopic(topicName string) (bool, error) {
	conn, stream, err := p.dial(topicName)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if err := stream.WriteMessage(wire.Message{Type: wire.CreateTopic, Value: topicName}); err != nil {
		return false, fmt.Errorf("client: create topic %q: %w", topicName, err)
	}
	success, err := stream.ReadBool()
	if err != nil {
		return false, fmt.Errorf("client: create topic %q: %w", topicName, err)
	}
	return success, nil
}

// DeleteTopic asks the owning broker to delete topicName.
func (p *Publisher) DeleteTopic(topicName string) (bool, error) {
	conn, stream, err := p.dial(topicName)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if err := stream.WriteMessage(wire.Message{Type: wire.DeleteTopic, Value: topicName}); err != nil {
		return false, fmt.Errorf("client: delete topic %q: %w", topicName, err)
	}
	success, err := stream.ReadBool()
	if err != nil {
		return false, fmt.Errorf("client: delete topic %q: %w", topicName, err)
	}
	return success, nil
}

// Post pushes one post to topicName, fragmenting data into packets no
// larger than MaxPacketPayload. Returns success=false without a transport
// error if the broker reports the topic doesn't exist.
func (p *Publisher) Post(topicName string, info wire.PostInfo, data []byte) (bool, error) {
	conn, stream, err := p.dial(topicName)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if err := stream.WriteMessage(wire.Message{Type: wire.DataPacketSend, Value: topicName}); err != nil {
		return false, fmt.Errorf("client: post to %q: %w", topicName, err)
	}

	success, err := stream.ReadBool()
	if err != nil {
		return false, fmt.Errorf("client: post to %q: %w", topicName, err)
	}
	if !success {
		return false, nil
	}

	if err := stream.WriteInt32(1); err != nil {
		return false, fmt.Errorf("client: post to %q: %w", topicName, err)
	}
	if err := stream.WritePostInfo(info); err != nil {
		return false, fmt.Errorf("client: post to %q: %w", topicName, err)
	}
	for _, pk := range wire.PacketsFromData(info.ID, data, MaxPacketPayload) {
		if err := stream.WritePacket(pk); err != nil {
			return false, fmt.Errorf("client: post to %q: %w", topicName, err)
		}
	}

	return true, nil
}
