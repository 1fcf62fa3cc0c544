package wire

import (
	"encoding/gob"
	"io"
	"math"
)

func init() {
	// Message.Value carries either a string (topic name) or a TopicToken;
	// gob needs concrete types registered to encode an interface field.
	gob.Register("")
	gob.Register(TopicToken{})
}

// KeepAlive is the post-count sentinel a push worker sends to tell its peer
// to keep reading indefinitely instead of stopping after a fixed count.
const KeepAlive int32 = math.MaxInt32

// Stream is a bidirectional gob record stream over one persistent
// connection. A Stream is not safe for concurrent writes from multiple
// goroutines; callers serialise writes themselves (on the broker, a
// consumer's stream is written by its request handler during backfill and
// afterwards only by its push-worker goroutine).
type Stream struct {
	enc *gob.Encoder
	dec *gob.Decoder
}

// NewStream wraps a connection's reader and writer in a gob codec.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{
		enc: gob.NewEncoder(rw),
		dec: gob.NewDecoder(rw),
	}
}

func (s *Stream) WriteMessage(m Message) error { return s.enc.Encode(m) }
func (s *Stream) ReadMessage() (Message, error) {
	var m Message
	err := s.dec.Decode(&m)
	return m, err
}

func (s *Stream) WriteBool(b bool) error { return s.enc.Encode(b) }
func (s *Stream) ReadBool() (bool, error) {
	var b bool
	err := s.dec.Decode(&b)
	return b, err
}

func (s *Stream) WriteInt32(v int32) error { return s.enc.Encode(v) }
func (s *Stream) ReadInt32() (int32, error) {
	var v int32
	err := s.dec.Decode(&v)
	return v, err
}

func (s *Stream) WritePostInfo(pi PostInfo) error { return s.enc.Encode(pi) }
func (s *Stream) ReadPostInfo() (PostInfo, error) {
	var pi PostInfo
	err := s.dec.Decode(&pi)
	return pi, err
}

func (s *Stream) WritePacket(p Packet) error { return s.enc.Encode(p) }
func (s *Stream) ReadPacket() (Packet, error) {
	var p Packet
	err := s.dec.Decode(&p)
	return p, err
}

func (s *Stream) WriteConnectionInfo(ci ConnectionInfo) error { return s.enc.Encode(ci) }
func (s *Stream) ReadConnectionInfo() (ConnectionInfo, error) {
	var ci ConnectionInfo
	err := s.dec.Decode(&ci)
	return ci, err
}
