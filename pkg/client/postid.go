package client

import (
	"encoding/binary"
	"time"

	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// NewPostID generates a practically-collision-free post id by hashing a
// random UUID and the current time together, addressing spec §9's open
// question that the publisher — not the broker — is responsible for
// generating ids that don't collide within a topic. The broker still never
// enforces uniqueness.
func NewPostID() int64 {
	id := uuid.New()
	buf := make([]byte, 0, len(id)+8)
	buf = append(buf, id[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(time.Now().UnixNano()))

	postID := int64(xxhash.Sum64(buf))
	if postID == wire.FetchAllPosts {
		postID++
	}
	return postID
}
