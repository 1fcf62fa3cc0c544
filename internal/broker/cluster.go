package broker

import (
	"fmt"
	"net"
	"sync"

	"github.com/AAAlex-123/Yamca/internal/registry"
	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/sirupsen/logrus"
)

// Cluster tracks a broker's peer list. For a leader it grows as followers
// join; for a follower it holds only the single connection to the leader.
// Ownership routing (spec §3) always indexes into the leader's peerCIs, with
// index len(peerCIs) meaning "the leader itself owns it".
type Cluster struct {
	log      *logrus.Entry
	reg      *registry.Store // nil if no registry configured
	isLeader bool

	mu        sync.Mutex
	peerConns []net.Conn
	peerCIs   []wire.ConnectionInfo
}

// NewLeaderCluster constructs the cluster view for a leader broker,
// restoring any previously-admitted peers from reg if provided.
func NewLeaderCluster(reg *registry.Store, log *logrus.Entry) (*Cluster, error) {
	c := &Cluster{log: log, reg: reg, isLeader: true}

	if reg != nil {
		peers, err := reg.Peers()
		if err != nil {
			return nil, fmt.Errorf("broker: restoring cluster membership: %w", err)
		}
		c.peerCIs = peers
	}

	return c, nil
}

// NewFollowerCluster constructs the cluster view for a follower broker: a
// single connection to the leader.
func NewFollowerCluster(leaderConn net.Conn, log *logrus.Entry) *Cluster {
	return &Cluster{
		log:       log,
		isLeader:  false,
		peerConns: []net.Conn{leaderConn},
	}
}

// IsLeader reports whether this cluster view belongs to the leader broker,
// i.e. whether it accepts peer-join connections.
func (c *Cluster) IsLeader() bool { return c.isLeader }

// AddPeer appends a newly-joined peer's connection and client-facing
// endpoint. Called by the leader's peer accept handler.
func (c *Cluster) AddPeer(conn net.Conn, ci wire.ConnectionInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.peerConns = append(c.peerConns, conn)
	c.peerCIs = append(c.peerCIs, ci)

	if c.reg != nil {
		if err := c.reg.AppendPeer(ci); err != nil {
			return err
		}
	}
	return nil
}

// Owner returns the ConnectionInfo of the broker responsible for topicName,
// per spec §3's ownership function: index abs(hash mod (len(peers)+1)) into
// the peer list, with the last index meaning "this (leader) broker".
func (c *Cluster) Owner(topicName string, self wire.ConnectionInfo) wire.ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.peerCIs)
	hash := int(wire.HashTopic(topicName))
	idx := hash % (n + 1)
	if idx < 0 {
		idx = -idx
	}

	if idx == n {
		return self
	}
	return c.peerCIs[idx]
}

// Close closes every peer connection this cluster view holds.
func (c *Cluster) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, conn := range c.peerConns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
