// Package client implements the publisher/consumer client nodes and the
// connection-info cache they share to discover a topic's owning broker.
package client

import (
	"fmt"
	"net"
	"sync"

	"github.com/AAAlex-123/Yamca/internal/wire"
)

// CIManager caches topic -> owning-broker ConnectionInfo for the lifetime of
// a client process. Per spec §4.6 the cache is never invalidated: once a
// topic's owner is learned it is trusted for the rest of the session.
type CIManager struct {
	defaultBroker wire.ConnectionInfo

	mu    sync.Mutex
	cache map[string]wire.ConnectionInfo
}

// NewCIManager returns a CIManager that queries defaultBroker on cache miss.
func NewCIManager(defaultBroker wire.ConnectionInfo) *CIManager {
	return &CIManager{defaultBroker: defaultBroker, cache: make(map[string]wire.ConnectionInfo)}
}

// Resolve returns the ConnectionInfo of the broker that owns topicName,
// querying the default broker with a BROKER_DISCOVERY request on cache miss.
func (m *CIManager) Resolve(topicName string) (wire.ConnectionInfo, error) {
	m.mu.Lock()
	ci, ok := m.cache[topicName]
	m.mu.Unlock()
	if ok {
		return ci, nil
	}

	conn, err := net.Dial("tcp", m.defaultBroker.String())
	if err != nil {
		return wire.ConnectionInfo{}, fmt.Errorf("client: discovering owner of %q: %w", topicName, err)
	}
	defer conn.Close()

	stream := wire.NewStream(conn)
	if err := stream.WriteMessage(wire.Message{Type: wire.BrokerDiscovery, Value: topicName}); err != nil {
		return wire.ConnectionInfo{}, fmt.Errorf("client: discovering owner of %q: %w", topicName, err)
	}

	ci, err = stream.ReadConnectionInfo()
	if err != nil {
		return wire.ConnectionInfo{}, fmt.Errorf("client: discovering owner of %q: %w", topicName, err)
	}

	m.mu.Lock()
	m.cache[topicName] = ci
	m.mu.Unlock()
	return ci, nil
}
