// Package wire defines the framed records exchanged on every client-broker
// and broker-broker connection, and the codec used to move them over a
// net.Conn.
package wire

import (
	"crypto/md5"
	"fmt"
	"math/big"
)

// MessageType is the kind of request carried by a Message.
type MessageType int

const (
	DataPacketSend MessageType = iota
	InitialiseConsumer
	BrokerDiscovery
	CreateTopic
	DeleteTopic
)

func (t MessageType) String() string {
	switch t {
	case DataPacketSend:
		return "DATA_PACKET_SEND"
	case InitialiseConsumer:
		return "INITIALISE_CONSUMER"
	case BrokerDiscovery:
		return "BROKER_DISCOVERY"
	case CreateTopic:
		return "CREATE_TOPIC"
	case DeleteTopic:
		return "DELETE_TOPIC"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// FetchAllPosts is the sentinel PostInfo id meaning "everything published so
// far". No real post may use it.
const FetchAllPosts int64 = -1

// Message is the request header every client sends to open an exchange.
// Value holds a string topic name for every type except InitialiseConsumer,
// which carries a TopicToken.
type Message struct {
	Type  MessageType
	Value any
}

// TopicToken lets a consumer resume streaming a topic after a known post id.
type TopicToken struct {
	Name       string
	LastSeenID int64
}

// PostInfo is the immutable header of a post.
type PostInfo struct {
	PosterName    string
	FileExtension string
	ID            int64
}

// Packet is one fragment of a post's payload.
type Packet struct {
	PostID  int64
	Index   uint32
	Final   bool
	Payload []byte
}

// ConnectionInfo is a client-facing endpoint, serialised as host + port.
type ConnectionInfo struct {
	Address string
	Port    int
}

func (ci ConnectionInfo) String() string {
	return fmt.Sprintf("%s:%d", ci.Address, ci.Port)
}

// PacketsFromData splits post data into packets no larger than maxPayload
// bytes, the last of which has Final set. A zero-length post still yields one
// (empty) final packet, since every post must end in exactly one final
// packet.
func PacketsFromData(postID int64, data []byte, maxPayload int) []Packet {
	if maxPayload <= 0 {
		maxPayload = 4096
	}

	if len(data) == 0 {
		return []Packet{{PostID: postID, Index: 0, Final: true, Payload: nil}}
	}

	var packets []Packet
	for i := 0; i < len(data); i += maxPayload {
		end := i + maxPayload
		if end > len(data) {
			end = len(data)
		}
		packets = append(packets, Packet{
			PostID:  postID,
			Index:   uint32(len(packets)),
			Final:   end == len(data),
			Payload: data[i:end],
		})
	}
	return packets
}

// DataFromPackets concatenates packet payloads in index order. Callers are
// expected to have already validated that packets share a PostID, are in
// index order and end in exactly one final packet.
func DataFromPackets(packets []Packet) []byte {
	var total int
	for _, p := range packets {
		total += len(p.Payload)
	}
	data := make([]byte, 0, total)
	for _, p := range packets {
		data = append(data, p.Payload...)
	}
	return data
}

// HashTopic computes the MD5-XOR-stripe hash of a topic name: MD5 of the
// UTF-8 bytes folded to 4 bytes by XOR-striping four groups of four bytes
// each, then interpreted as a signed big-endian integer. This exact function
// must be reused by every broker and client so that topic ownership is
// computed identically everywhere.
func HashTopic(name string) int32 {
	sum := md5.Sum([]byte(name))

	const groups = 4
	groupSize := len(sum) / groups
	folded := make([]byte, groups)
	for i := 0; i < groups; i++ {
		for j := 0; j < groupSize; j++ {
			folded[i] ^= sum[i*groupSize+j]
		}
	}

	v := new(big.Int).SetBytes(folded)
	// folded[0] is the sign-carrying byte of a two's-complement big-endian
	// integer; if its top bit is set, the value is negative.
	if folded[0]&0x80 != 0 {
		modulus := new(big.Int).Lsh(big.NewInt(1), uint(len(folded)*8))
		v.Sub(v, modulus)
	}
	return int32(v.Int64())
}
