package broker

import (
	"errors"
	"net"

	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/sirupsen/logrus"
)

// handleClientConn dispatches one client connection's opening Message to the
// matching request handler, per spec §4.1. DataPacketSend and
// InitialiseConsumer keep the connection open for the duration of a pull
// loop or a push worker respectively; every other request is answered once
// and the connection is closed.
func (b *Broker) handleClientConn(conn net.Conn) {
	stream := wire.NewStream(conn)

	msg, err := stream.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}

	log := b.log.WithField("messageType", msg.Type)

	switch msg.Type {
	case wire.BrokerDiscovery:
		defer conn.Close()
		name, ok := msg.Value.(string)
		if !ok {
			log.Error("broker discovery: malformed topic name")
			return
		}
		owner := b.cluster.Owner(name, b.selfCI)
		if err := stream.WriteConnectionInfo(owner); err != nil {
			log.WithError(err).Warn("broker discovery: writing reply")
		}

	case wire.CreateTopic:
		defer conn.Close()
		name, ok := msg.Value.(string)
		if !ok {
			log.Error("create topic: malformed topic name")
			return
		}
		_, err := b.manager.AddTopic(name)
		if err != nil && !errors.Is(err, ErrTopicExists) {
			log.WithError(err).WithField("topic", name).Error("create topic")
		}
		if err := stream.WriteBool(err == nil); err != nil {
			log.WithError(err).Warn("create topic: writing reply")
		}

	case wire.DeleteTopic:
		defer conn.Close()
		name, ok := msg.Value.(string)
		if !ok {
			log.Error("delete topic: malformed topic name")
			return
		}
		err := b.manager.RemoveTopic(name)
		if err != nil && !errors.Is(err, ErrNoSuchTopic) {
			log.WithError(err).WithField("topic", name).Error("delete topic")
		}
		if err := stream.WriteBool(err == nil); err != nil {
			log.WithError(err).Warn("delete topic: writing reply")
		}

	case wire.DataPacketSend:
		defer conn.Close()
		name, ok := msg.Value.(string)
		if !ok {
			log.Error("data packet send: malformed topic name")
			return
		}
		topic, err := b.manager.GetTopic(name)
		success := err == nil
		if err := stream.WriteBool(success); err != nil {
			log.WithError(err).Warn("data packet send: writing success reply")
			return
		}
		if !success {
			log.WithField("topic", name).Warn("data packet send: no such topic")
			return
		}
		if err := runPullLoop(stream, topic); err != nil {
			log.WithError(err).WithField("topic", name).Warn("data packet send: pull loop ended")
		}

	case wire.InitialiseConsumer:
		b.handleInitialiseConsumer(conn, stream, msg, log)

	default:
		conn.Close()
		log.Error("unknown message type")
	}
}

// handleInitialiseConsumer answers success/failure, then — on success — sends
// the backfill records for the consumer's TopicToken and hands the
// connection off to a long-lived push worker. The connection is only closed
// here on failure; on success the push worker owns its lifetime.
func (b *Broker) handleInitialiseConsumer(conn net.Conn, stream *wire.Stream, msg wire.Message, log *logrus.Entry) {
	token, ok := msg.Value.(wire.TopicToken)
	if !ok {
		log.Error("initialise consumer: malformed topic token")
		conn.Close()
		return
	}
	log = log.WithField("topic", token.Name)

	topic, err := b.manager.GetTopic(token.Name)
	success := err == nil

	if err := stream.WriteBool(success); err != nil {
		log.WithError(err).Warn("initialise consumer: writing success reply")
		conn.Close()
		return
	}
	if !success {
		conn.Close()
		return
	}

	if err := b.manager.RegisterConsumer(token.Name, conn); err != nil {
		log.WithError(err).Warn("initialise consumer: registering consumer")
		conn.Close()
		return
	}

	infos, packets := topic.GetPostsSince(token.LastSeenID)
	if err := sendBackfill(stream, infos, packets); err != nil {
		log.WithError(err).Warn("initialise consumer: sending backfill")
		b.manager.UnregisterConsumer(token.Name, conn)
		conn.Close()
		return
	}

	startTailWorker(topic, b.manager, conn, stream, log)
}

// handlePeerConn admits a newly-joined broker into the cluster. Only the
// leader accepts peer-join connections; a follower's peer listener exists
// only so its address is symmetrical, and closes anything dialed to it.
func (b *Broker) handlePeerConn(conn net.Conn) {
	if !b.cluster.IsLeader() {
		conn.Close()
		return
	}

	stream := wire.NewStream(conn)
	ci, err := stream.ReadConnectionInfo()
	if err != nil {
		b.log.WithError(err).Warn("peer join: reading connection info")
		conn.Close()
		return
	}

	if err := b.cluster.AddPeer(conn, ci); err != nil {
		b.log.WithError(err).WithField("peer", ci).Error("peer join: admitting peer")
		conn.Close()
		return
	}

	b.log.WithField("peer", ci).Info("peer joined cluster")
}
