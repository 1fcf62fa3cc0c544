package broker

import (
	"sync"

	"github.com/AAAlex-123/Yamca/internal/topicstore"
	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/sirupsen/logrus"
)

// Subscriber receives every record appended to a Topic, in append order. A
// Subscriber that panics is logged and skipped; it never prevents other
// subscribers from being notified.
type Subscriber interface {
	NotifyPostInfo(postInfo wire.PostInfo, topicName string)
	NotifyPacket(packet wire.Packet, topicName string)
}

// Topic is the broker's in-memory append-only log for one topic: parallel
// postInfos/packetsByPostID/indexByPostID as described in spec §3, with
// synchronous, ordered subscriber fan-out.
type Topic struct {
	name string
	log  *logrus.Entry

	mu              sync.Mutex
	postInfos       []wire.PostInfo
	packetsByPostID map[int64][]wire.Packet
	indexByPostID   map[int64]int
	subscribers     []Subscriber
}

// NewTopic constructs an empty Topic with the FETCH_ALL_POSTS sentinel
// occupying position 0, so that GetPostsSince(FetchAllPosts) returns
// everything.
func NewTopic(name string, log *logrus.Entry) *Topic {
	t := &Topic{
		name:            name,
		log:             log,
		packetsByPostID: make(map[int64][]wire.Packet),
		indexByPostID:   make(map[int64]int),
	}
	sentinel := wire.PostInfo{ID: wire.FetchAllPosts}
	t.postInfos = append(t.postInfos, sentinel)
	t.indexByPostID[wire.FetchAllPosts] = 0
	return t
}

// LoadTopic reconstructs a Topic's log from a persisted topicstore.Topic on
// broker startup.
func LoadTopic(persisted topicstore.Topic, maxPayload int, log *logrus.Entry) *Topic {
	t := NewTopic(persisted.Name, log)
	for _, post := range persisted.Posts {
		t.appendPostInfo(post.Info)
		for _, pkt := range wire.PacketsFromPost(post, maxPayload) {
			t.appendPacket(pkt)
		}
	}
	return t
}

// Name returns the topic's name.
func (t *Topic) Name() string { return t.name }

// Subscribe adds a Subscriber that will be notified of every future record,
// in the order Subscribe was called.
func (t *Topic) Subscribe(sub Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, sub)
}

// Unsubscribe removes a Subscriber, e.g. after its push worker observed a
// write failure on its socket.
func (t *Topic) Unsubscribe(sub Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, s := range t.subscribers {
		if s == sub {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			return
		}
	}
}

// PostInfo appends a post header and notifies subscribers, all under the
// topic's lock.
func (t *Topic) PostInfo(pi wire.PostInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.appendPostInfo(pi)
	t.notifyPostInfo(pi)
}

// PostPacket appends a packet and notifies subscribers, all under the
// topic's lock.
func (t *Topic) PostPacket(pk wire.Packet) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.appendPacket(pk)
	t.notifyPacket(pk)
}

func (t *Topic) appendPostInfo(pi wire.PostInfo) {
	t.postInfos = append(t.postInfos, pi)
	t.indexByPostID[pi.ID] = len(t.postInfos) - 1
	if _, ok := t.packetsByPostID[pi.ID]; !ok {
		t.packetsByPostID[pi.ID] = nil
	}
}

func (t *Topic) appendPacket(pk wire.Packet) {
	t.packetsByPostID[pk.PostID] = append(t.packetsByPostID[pk.PostID], pk)
}

func (t *Topic) notifyPostInfo(pi wire.PostInfo) {
	for _, sub := range t.subscribers {
		t.notifyOne(func() { sub.NotifyPostInfo(pi, t.name) })
	}
}

func (t *Topic) notifyPacket(pk wire.Packet) {
	for _, sub := range t.subscribers {
		t.notifyOne(func() { sub.NotifyPacket(pk, t.name) })
	}
}

func (t *Topic) notifyOne(f func()) {
	defer func() {
		if r := recover(); r != nil {
			t.log.WithField("panic", r).Error("subscriber panicked, continuing")
		}
	}()
	f()
}

// GetPostsSince returns every PostInfo strictly after the one with id, and
// the packets for each, in publication order. If id is not present (the
// broker restarted since the consumer last saw it) it returns empty slices;
// this is not an error, the consumer just resumes from the current head.
func (t *Topic) GetPostsSince(id int64) ([]wire.PostInfo, map[int64][]wire.Packet) {
	t.mu.Lock()
	defer t.mu.Unlock()

	index, ok := t.indexByPostID[id]
	if !ok {
		return nil, nil
	}

	infos := make([]wire.PostInfo, len(t.postInfos)-index-1)
	copy(infos, t.postInfos[index+1:])

	packets := make(map[int64][]wire.Packet, len(infos))
	for _, pi := range infos {
		src := t.packetsByPostID[pi.ID]
		dst := make([]wire.Packet, len(src))
		copy(dst, src)
		packets[pi.ID] = dst
	}

	return infos, packets
}

// PostAndPackets returns the assembled Post for a completed post id.
func (t *Topic) PostAndPackets(postID int64) (wire.Post, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.postAndPacketsLocked(postID)
}

// postAndPacketsLocked is PostAndPackets without acquiring t.mu. Callers
// must already hold it — this exists so a Subscriber's NotifyPacket, called
// synchronously from inside notifyPacket while t.mu is held, can assemble
// the post it was just notified about without re-entering the (non-
// reentrant) lock.
func (t *Topic) postAndPacketsLocked(postID int64) (wire.Post, bool) {
	index, ok := t.indexByPostID[postID]
	if !ok {
		return wire.Post{}, false
	}
	info := t.postInfos[index]
	packets := t.packetsByPostID[postID]
	return wire.PostFromPackets(info, packets), true
}
