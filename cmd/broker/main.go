// Command broker runs a single node of a broker mesh: either the leader, or
// a follower joining an existing leader by peer address.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AAAlex-123/Yamca/internal/broker"
	"github.com/AAAlex-123/Yamca/internal/logging"
	"github.com/AAAlex-123/Yamca/internal/registry"
	"github.com/AAAlex-123/Yamca/internal/topicstore"
)

const usage = `Usage:
	   broker <broker_dir>
	or broker <broker_dir> <ip> <port>
	or broker <broker_dir> -f <path>

Options:
	-f	read connection configuration from file
Where:
	<broker_dir>	the directory where topics are persisted for this broker
	<ip>		the ip of the leader broker's peer port
	<port>		the leader broker's peer port
	<path>		a key=value file with "ip" and "port" entries`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 1 && len(args) != 3 {
		fmt.Fprintln(os.Stderr, usage)
		return 1
	}

	brokerDir := args[0]
	leader := len(args) == 1

	var leaderIP string
	var leaderPort int

	if !leader {
		var ip, portStr string
		var err error
		if args[1] == "-f" {
			ip, portStr, err = readConnConfig(args[2])
		} else {
			ip, portStr = args[1], args[2]
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		leaderPort, err = parsePort(portStr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		leaderIP = ip
	}

	info, err := os.Stat(brokerDir)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "broker directory %q does not exist\n", brokerDir)
		return 1
	}

	log := logging.New(logging.Config{})

	store, err := topicstore.NewFileStore(brokerDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var reg *registry.Store
	if leader {
		reg, err = registry.Open(filepath.Join(brokerDir, "registry.db"))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer reg.Close()
	}

	cfg := broker.Config{
		ID:         brokerID(leader),
		ClientAddr: fmt.Sprintf(":%d", broker.DefaultClientPort),
		PeerAddr:   fmt.Sprintf(":%d", broker.DefaultPeerPort),
		Store:      store,
		Registry:   reg,
		Log:        log,
	}

	var b *broker.Broker
	if leader {
		b, err = broker.NewLeader(cfg)
	} else {
		b, err = broker.NewFollower(cfg, leaderIP, leaderPort)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer b.Close()

	if err := b.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func brokerID(leader bool) string {
	if leader {
		return "leader"
	}
	return fmt.Sprintf("follower-%d", os.Getpid())
}

// readConnConfig reads "ip" and "port" entries out of a key=value properties
// file, mirroring the reference client/server's use of java.util.Properties.
func readConnConfig(path string) (ip, port string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("could not find configuration file: %s", path)
	}
	defer f.Close()

	props := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("unexpected error while reading configuration from file: %s", path)
	}

	return props["ip"], props["port"], nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port number: %s", s)
	}
	return port, nil
}
