// Package broker implements the broker-side messaging engine: topic logs,
// their manager, cluster membership, and the request handlers and fan-out
// workers that speak the wire protocol to clients and peers.
package broker

import (
	"errors"
	"fmt"
	"net"

	"github.com/AAAlex-123/Yamca/internal/registry"
	"github.com/AAAlex-123/Yamca/internal/topicstore"
	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultClientPort and DefaultPeerPort are the reference broker's ports
// (spec §6.2). Port numbers are not part of the protocol; brokers exchange
// ConnectionInfo values instead of assuming these.
const (
	DefaultClientPort = 29621
	DefaultPeerPort   = 29622
)

// MaxPacketPayload bounds how large a single wire Packet's payload is when
// the broker itself splits post data (e.g. when reassembling for storage is
// not needed, this only affects LoadTopic's re-fragmentation).
const MaxPacketPayload = 32 * 1024

// Config holds everything needed to construct a Broker.
type Config struct {
	ID         string
	ClientAddr string // address:port to listen on for client requests
	PeerAddr   string // address:port to listen on for peer requests
	Store      topicstore.Store
	Registry   *registry.Store // optional
	Log        *logrus.Entry
}

// Broker accepts client and peer connections, dispatches requests to
// handlers, and maintains the peer list used for topic-ownership routing.
type Broker struct {
	id  string
	log *logrus.Entry

	manager *Manager
	cluster *Cluster

	clientLn net.Listener
	peerLn   net.Listener
	selfCI   wire.ConnectionInfo
}

// NewLeader starts a leader broker: it opens both listeners, and its
// peerCIs list starts empty or holds the peers restored from cfg.Registry.
func NewLeader(cfg Config) (*Broker, error) {
	b, err := newBroker(cfg)
	if err != nil {
		return nil, err
	}

	cluster, err := NewLeaderCluster(cfg.Registry, cfg.Log)
	if err != nil {
		b.closeListeners()
		return nil, err
	}
	b.cluster = cluster

	b.log.WithField("clientCI", b.selfCI).Info("broker started as leader")
	return b, nil
}

// NewFollower starts a follower broker: it opens both listeners, then dials
// the leader's peer port once and registers its own client-facing endpoint.
func NewFollower(cfg Config, leaderIP string, leaderPort int) (*Broker, error) {
	b, err := newBroker(cfg)
	if err != nil {
		return nil, err
	}

	leaderConn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", leaderIP, leaderPort))
	if err != nil {
		b.closeListeners()
		return nil, fmt.Errorf("broker: connecting to leader %s:%d: %w", leaderIP, leaderPort, err)
	}

	stream := wire.NewStream(leaderConn)
	if err := stream.WriteConnectionInfo(b.selfCI); err != nil {
		leaderConn.Close()
		b.closeListeners()
		return nil, fmt.Errorf("broker: announcing self to leader: %w", err)
	}

	b.cluster = NewFollowerCluster(leaderConn, cfg.Log)

	b.log.WithField("leader", fmt.Sprintf("%s:%d", leaderIP, leaderPort)).
		Info("broker started as follower")
	return b, nil
}

func newBroker(cfg Config) (*Broker, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}

	manager, err := NewManager(cfg.Store, MaxPacketPayload, log.WithField("component", "manager"))
	if err != nil {
		return nil, err
	}

	clientLn, err := net.Listen("tcp", cfg.ClientAddr)
	if err != nil {
		return nil, fmt.Errorf("broker: listening for clients on %s: %w", cfg.ClientAddr, err)
	}

	peerLn, err := net.Listen("tcp", cfg.PeerAddr)
	if err != nil {
		clientLn.Close()
		return nil, fmt.Errorf("broker: listening for peers on %s: %w", cfg.PeerAddr, err)
	}

	selfCI, err := connectionInfoOf(clientLn)
	if err != nil {
		clientLn.Close()
		peerLn.Close()
		return nil, err
	}

	b := &Broker{
		id:       cfg.ID,
		log:      log.WithField("brokerID", cfg.ID),
		manager:  manager,
		clientLn: clientLn,
		peerLn:   peerLn,
		selfCI:   selfCI,
	}

	manager.SetPersistenceFactory(func(topic *Topic) Subscriber {
		return newPersistenceSubscriber(topic, cfg.Store, b)
	})

	return b, nil
}

func connectionInfoOf(ln net.Listener) (wire.ConnectionInfo, error) {
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return wire.ConnectionInfo{}, fmt.Errorf("broker: listener address is not TCP: %v", ln.Addr())
	}

	host := addr.IP.String()
	if addr.IP.IsUnspecified() {
		if local, err := localOutboundIP(); err == nil {
			host = local
		}
	}
	return wire.ConnectionInfo{Address: host, Port: addr.Port}, nil
}

// localOutboundIP finds this host's IP as seen for outbound traffic, used so
// that a listener bound to 0.0.0.0 still advertises a routable address.
func localOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

// ClientCI returns the ConnectionInfo this broker advertises to clients and
// peers as its own client-facing endpoint.
func (b *Broker) ClientCI() wire.ConnectionInfo { return b.selfCI }

func (b *Broker) closeListeners() {
	if b.clientLn != nil {
		b.clientLn.Close()
	}
	if b.peerLn != nil {
		b.peerLn.Close()
	}
}

// Run starts both accept loops and blocks until one returns a fatal error or
// the listeners are closed by Close. The first accept loop to stop closes
// both listeners, unblocking the other's Accept so Wait can return.
func (b *Broker) Run() error {
	var g errgroup.Group

	g.Go(func() error {
		err := b.acceptLoop(b.clientLn, b.handleClientConn)
		b.closeListeners()
		return err
	})
	g.Go(func() error {
		err := b.acceptLoop(b.peerLn, b.handlePeerConn)
		b.closeListeners()
		return err
	})

	return g.Wait()
}

func (b *Broker) acceptLoop(ln net.Listener, handle func(net.Conn)) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("broker: accept: %w", err)
		}
		go handle(conn)
	}
}

// Close performs an orderly shutdown: closes every manager-tracked consumer
// socket, every peer connection, and both listeners.
func (b *Broker) Close() error {
	b.closeListeners()

	var firstErr error
	if err := b.manager.Close(); err != nil {
		firstErr = err
	}
	if err := b.cluster.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
