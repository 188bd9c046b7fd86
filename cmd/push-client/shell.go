package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/doopush/doopush-go/pkg/push"
	"github.com/doopush/doopush-go/pkg/registration"
	"github.com/doopush/doopush-go/pkg/session"
)

// shell is the interactive command loop.
type shell struct {
	manager *push.Manager
	token   string
	rl      *readline.Instance
}

func newShell(manager *push.Manager, token string) (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "push> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := &shell{manager: manager, token: token, rl: rl}

	// Event output goes through the readline writer so it doesn't trash
	// the prompt.
	manager.SetCallbacks(push.Callbacks{
		OnStateChanged: func(oldState, newState session.State) {
			fmt.Fprintf(rl.Stdout(), "state: %s -> %s\n", oldState, newState)
		},
		OnRegistered: func(deviceID string) {
			fmt.Fprintf(rl.Stdout(), "registered (device %s)\n", deviceID)
		},
		OnPushReceived: func(n push.Notification) {
			if n.Title != "" || n.Body != "" {
				fmt.Fprintf(rl.Stdout(), "push: %s - %s\n", n.Title, n.Body)
			} else {
				fmt.Fprintf(rl.Stdout(), "push: %d raw bytes\n", len(n.Raw))
			}
		},
		OnBadgeChanged: func(count int) {
			fmt.Fprintf(rl.Stdout(), "badge: %d\n", count)
		},
		OnError: func(kind session.ErrorKind, err error) {
			fmt.Fprintf(rl.Stdout(), "error [%s]: %v\n", kind, err)
		},
	})

	return s, nil
}

func (s *shell) run() {
	defer s.rl.Close()
	s.printHelp()

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			s.manager.Terminate()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "connect", "c":
			s.cmdConnect()

		case "disconnect", "d":
			s.manager.Disconnect()

		case "status", "s":
			s.cmdStatus()

		case "ping", "p":
			if err := s.manager.SendPing(); err != nil {
				fmt.Fprintf(s.rl.Stdout(), "ping failed: %v\n", err)
			}

		case "fg":
			s.manager.EnterForeground()

		case "bg":
			s.manager.EnterBackground()

		case "badge", "b":
			s.cmdBadge(args)

		case "track", "t":
			s.cmdTrack(args)

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			s.manager.Terminate()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *shell) cmdConnect() {
	if s.manager.DeviceID() == "" && s.token != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.manager.RegisterDevice(ctx, s.token); err != nil {
			fmt.Fprintf(s.rl.Stdout(), "register failed: %v\n", err)
		}
		return
	}
	if err := s.manager.Connect(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "connect failed: %v\n", err)
	}
}

func (s *shell) cmdStatus() {
	out := s.rl.Stdout()
	fmt.Fprintf(out, "state:     %s\n", s.manager.State())
	if deviceID := s.manager.DeviceID(); deviceID != "" {
		fmt.Fprintf(out, "device:    %s\n", deviceID)
	}
	fmt.Fprintf(out, "badge:     %d\n", s.manager.Badge())

	stats := s.manager.HeartbeatStats()
	fmt.Fprintf(out, "heartbeat: %d pings, %d pongs\n", stats.PingsSent, stats.PongsSeen)
	if !stats.LastPongTime.IsZero() {
		fmt.Fprintf(out, "last pong: %s ago\n", time.Since(stats.LastPongTime).Round(time.Second))
	}
}

func (s *shell) cmdBadge(args []string) {
	out := s.rl.Stdout()
	if len(args) == 0 {
		fmt.Fprintf(out, "badge: %d\n", s.manager.Badge())
		return
	}

	switch args[0] {
	case "+":
		s.manager.IncrementBadge()
	case "-":
		s.manager.DecrementBadge()
	case "clear":
		s.manager.ClearBadge()
	default:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(out, "usage: badge [n|+|-|clear]\n")
			return
		}
		s.manager.SetBadge(n)
	}
	fmt.Fprintf(out, "badge: %d\n", s.manager.Badge())
}

func (s *shell) cmdTrack(args []string) {
	out := s.rl.Stdout()
	if len(args) != 2 {
		fmt.Fprintln(out, "usage: track <push-id> <receive|open|click>")
		return
	}

	kind := args[1]
	switch kind {
	case registration.EventReceive, registration.EventOpen, registration.EventClick:
		s.manager.TrackEvent(args[0], kind)
		fmt.Fprintf(out, "tracked %s for %s\n", kind, args[0])
	default:
		fmt.Fprintln(out, "usage: track <push-id> <receive|open|click>")
	}
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
Push Client Commands:
  connect     (c) - Register (if needed) and connect to the gateway
  disconnect  (d) - Close the gateway connection
  status      (s) - Show connection state, device ID, badge, heartbeats
  ping        (p) - Send an immediate heartbeat ping
  fg              - Simulate app entering the foreground
  bg              - Simulate app entering the background
  badge [n|+|-|clear] - Show or change the badge count
  track <id> <kind>   - Queue a statistics event
  quit        (q) - Exit`)
}
