// Package topicstore defines the pluggable persistence boundary for topics
// (spec §6.3) and a reference file-system implementation of it.
package topicstore

import "github.com/AAAlex-123/Yamca/internal/wire"

// Topic is a named, ordered sequence of posts as read back from a Store.
type Topic struct {
	Name  string
	Posts []wire.Post
}

// Store is the contract a broker uses to durably persist topics. Any engine
// preserving these semantics (durable, per-topic, ordered, crash-consistent
// per post) is an acceptable implementation; the file-system layout in this
// package is the reference one.
type Store interface {
	CreateTopic(name string) error
	DeleteTopic(name string) error
	WritePost(post wire.Post, topicName string) error
	ReadAllTopics() ([]Topic, error)
}
