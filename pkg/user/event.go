// Package user provides the User facade: one entry point combining a
// Publisher, a Consumer and a local Profile, surfacing every outcome as a
// typed event instead of a return value or an exception.
package user

import (
	"fmt"

	"github.com/AAAlex-123/Yamca/internal/wire"
)

// Tag is one of the closed set of outcomes a User operation can fire.
type Tag int

const (
	MessageSent Tag = iota
	MessageReceived
	TopicCreated
	TopicDeleted
	ServerTopicDeleted
	TopicListened
	TopicLoaded
	TopicListenStopped
)

func (t Tag) String() string {
	switch t {
	case MessageSent:
		return "MESSAGE_SENT"
	case MessageReceived:
		return "MESSAGE_RECEIVED"
	case TopicCreated:
		return "TOPIC_CREATED"
	case TopicDeleted:
		return "TOPIC_DELETED"
	case ServerTopicDeleted:
		return "SERVER_TOPIC_DELETED"
	case TopicListened:
		return "TOPIC_LISTENED"
	case TopicLoaded:
		return "TOPIC_LOADED"
	case TopicListenStopped:
		return "TOPIC_LISTEN_STOPPED"
	default:
		return fmt.Sprintf("Tag(%d)", int(t))
	}
}

// Event is fired exactly once per completed User operation.
type Event struct {
	Tag       Tag
	TopicName string
	Success   bool
	Cause     error
	// Post carries the assembled post for a MessageReceived event, letting
	// the default listener persist it without disturbing Consumer.Pull's
	// own buffer.
	Post *wire.Post
}

// Listener receives Events in the order they complete. A User fires events
// to its listeners in registration order; the default listener (local
// bookkeeping) is always first.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a plain function to a Listener.
type ListenerFunc func(Event)

// OnEvent calls f.
func (f ListenerFunc) OnEvent(e Event) { f(e) }
