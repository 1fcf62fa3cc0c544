// Command client runs a single user session against a broker mesh: it opens
// (or creates) a local profile, connects to a broker, and drives posting,
// topic management and listening from a line-oriented command loop.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AAAlex-123/Yamca/internal/logging"
	"github.com/AAAlex-123/Yamca/internal/profilestore"
	"github.com/AAAlex-123/Yamca/internal/wire"
	"github.com/AAAlex-123/Yamca/pkg/client"
	"github.com/AAAlex-123/Yamca/pkg/user"
)

const usage = `Usage:
	   client -c|-l <name> <ip> <port> <user_dir>
	or client -c|-l <name> -f <path> <user_dir>

Options:
	-c	create new user with <name>
	-l	load existing user with <name>
	-f	read connection configuration from file

Where:
	<ip>		the ip of the broker
	<port>		the broker's client port
	<path>		a key=value file with "ip" and "port" entries
	<user_dir>	the directory to store this user's data in`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, in *os.File, out *os.File) int {
	if len(args) != 5 {
		fmt.Fprintln(os.Stderr, usage)
		return 1
	}

	create, ok := parseCreateFlag(args[0])
	if !ok {
		fmt.Fprintln(os.Stderr, usage)
		return 1
	}
	name := args[1]

	var ip, portStr string
	var err error
	if args[2] == "-f" {
		ip, portStr, err = readConnConfig(args[3])
	} else {
		ip, portStr = args[2], args[3]
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	port, err := parsePort(portStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	userDir := args[4]
	info, err := os.Stat(userDir)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "path %q does not exist\n", userDir)
		return 1
	}

	log := logging.New(logging.Config{})

	profiles, err := profilestore.Open(userDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if create {
		if err := profiles.CreateNewProfile(name); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	} else if _, err := profiles.LoadProfile(name); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ci := client.NewCIManager(wire.ConnectionInfo{Address: ip, Port: port})
	u := user.New(user.Config{CI: ci, Profiles: profiles, Log: log})
	u.AddListener(user.ListenerFunc(func(e user.Event) {
		if e.Cause != nil {
			fmt.Fprintf(out, "%s %s: error: %v\n", e.Tag, e.TopicName, e.Cause)
		} else {
			fmt.Fprintf(out, "%s %s: success=%v\n", e.Tag, e.TopicName, e.Success)
		}
	}))

	runCommandLoop(in, out, u)
	return 0
}

func parseCreateFlag(flag string) (create bool, ok bool) {
	switch flag {
	case "-c":
		return true, true
	case "-l":
		return false, true
	default:
		return false, false
	}
}

// runCommandLoop reads line-oriented commands from in until EOF or "quit":
//
//	create <topic>
//	delete <topic>
//	listen <topic>
//	load <topic> <lastSeenID>
//	stop <topic>
//	post <topic> <posterName> <text...>	(posted with extension "txt")
//	pull <topic>
func runCommandLoop(in *os.File, out *os.File, u *user.User) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit":
			return
		case "create":
			if len(fields) == 2 {
				u.CreateTopic(fields[1])
			}
		case "delete":
			if len(fields) == 2 {
				u.DeleteTopic(fields[1])
			}
		case "listen":
			if len(fields) == 2 {
				u.ListenForNewTopic(fields[1])
			}
		case "load":
			if len(fields) == 3 {
				lastSeenID, err := strconv.ParseInt(fields[2], 10, 64)
				if err == nil {
					u.LoadTopic(fields[1], lastSeenID)
				}
			}
		case "stop":
			if len(fields) == 2 {
				u.StopListeningForTopic(fields[1])
			}
		case "post":
			if len(fields) >= 4 {
				text := strings.Join(fields[3:], " ")
				u.Post(fields[1], fields[2], "txt", []byte(text))
			}
		case "pull":
			if len(fields) == 2 {
				posts, err := u.Pull(fields[1])
				if err != nil {
					fmt.Fprintf(out, "pull %s: %v\n", fields[1], err)
					continue
				}
				for _, p := range posts {
					fmt.Fprintf(out, "%s [%s]: %s\n", p.Info.PosterName, fields[1], p.Data)
				}
			}
		default:
			fmt.Fprintf(out, "unknown command: %s\n", fields[0])
		}
	}
}

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
