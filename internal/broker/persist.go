package broker

import (
	"github.com/AAAlex-123/Yamca/internal/topicstore"
	"github.com/AAAlex-123/Yamca/internal/wire"
)

// persistenceSubscriber writes every completed post to the durability store
// exactly once, at the moment its final packet is appended, per spec §4.2.
// It ignores PostInfo notifications entirely: there is nothing to persist
// until a post's packets are all in.
type persistenceSubscriber struct {
	topic *Topic
	store topicstore.Store
	host  *Broker
}

func newPersistenceSubscriber(topic *Topic, store topicstore.Store, host *Broker) *persistenceSubscriber {
	return &persistenceSubscriber{topic: topic, store: store, host: host}
}

func (p *persistenceSubscriber) NotifyPostInfo(wire.PostInfo, string) {
	// nothing to persist until the post's final packet arrives
}

func (p *persistenceSubscriber) NotifyPacket(pk wire.Packet, topicName string) {
	if !pk.Final {
		return
	}

	// Notify runs synchronously from inside Topic.PostPacket, which already
	// holds t.mu; PostAndPackets would try to re-acquire it and deadlock, so
	// this uses the lock-already-held variant instead.
	post, ok := p.topic.postAndPacketsLocked(pk.PostID)
	if !ok {
		return
	}

	if err := p.store.WritePost(post, topicName); err != nil {
		// Persistence failure: the in-memory append already succeeded, so the
		// durability guarantee for this post is lost. Per spec §7 this
		// subscriber initiates a graceful broker shutdown to signal the fault.
		p.host.log.WithError(err).WithField("topic", topicName).
			Error("failed to persist post, shutting down broker")
		go p.host.Close()
	}
}
