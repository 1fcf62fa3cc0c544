package broker

import (
	"net"
	"testing"

	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderClusterIsLeader(t *testing.T) {
	c, err := NewLeaderCluster(nil, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	assert.True(t, c.IsLeader())
}

func TestFollowerClusterIsNotLeader(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	c := NewFollowerCluster(client, logrus.NewEntry(logrus.New()))
	assert.False(t, c.IsLeader())
}

func TestClusterOwnerMatchesHashRouting(t *testing.T) {
	c, err := NewLeaderCluster(nil, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)

	self := wire.ConnectionInfo{Address: "10.0.0.1", Port: 29621}
	peers := []wire.ConnectionInfo{
		{Address: "10.0.0.2", Port: 29621},
		{Address: "10.0.0.3", Port: 29621},
	}
	for _, p := range peers {
		server, _ := net.Pipe()
		require.NoError(t, c.AddPeer(server, p))
	}

	for _, topicName := range []string{"news", "sports", "weather", ""} {
		n := len(peers)
		hash := int(wire.HashTopic(topicName))
		idx := hash % (n + 1)
		if idx < 0 {
			idx = -idx
		}

		want := self
		if idx < n {
			want = peers[idx]
		}

		assert.Equal(t, want, c.Owner(topicName, self), "topic %q", topicName)
	}
}

func TestClusterOwnerWithNoPeersIsAlwaysSelf(t *testing.T) {
	c, err := NewLeaderCluster(nil, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)

	self := wire.ConnectionInfo{Address: "10.0.0.1", Port: 29621}
	assert.Equal(t, self, c.Owner("anything", self))
}
