package client

import (
	"net"
	"sync/atomic"
	"testing"

	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDiscoveryStub(t *testing.T, reply wire.ConnectionInfo) (wire.ConnectionInfo, *int32) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	var calls int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(&calls, 1)
			go func() {
				defer conn.Close()
				stream := wire.NewStream(conn)
				if _, err := stream.ReadMessage(); err != nil {
					return
				}
				stream.WriteConnectionInfo(reply)
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return wire.ConnectionInfo{Address: "127.0.0.1", Port: addr.Port}, &calls
}

func TestCIManagerCachesResultAcrossCalls(t *testing.T) {
	owner := wire.ConnectionInfo{Address: "10.0.0.9", Port: 1234}
	defaultBroker, calls := startDiscoveryStub(t, owner)

	ci := NewCIManager(defaultBroker)

	got, err := ci.Resolve("t")
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	got, err = ci.Resolve("t")
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestCIManagerQueriesOncePerDistinctTopic(t *testing.T) {
	owner := wire.ConnectionInfo{Address: "10.0.0.9", Port: 1234}
	defaultBroker, calls := startDiscoveryStub(t, owner)

	ci := NewCIManager(defaultBroker)
	_, err := ci.Resolve("a")
	require.NoError(t, err)
	_, err = ci.Resolve("b")
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}
