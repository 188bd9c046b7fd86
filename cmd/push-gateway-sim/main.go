// Command push-gateway-sim is a local gateway simulator for development
// and manual testing of the push client.
//
// It speaks the gateway wire protocol: registrations are acknowledged,
// pings answered with pongs, and stdin commands push payloads or inject
// faults into connected clients.
//
// Usage:
//
//	push-gateway-sim [flags]
//
// Flags:
//
//	-listen string       Listen address (default ":9001")
//	-tls-cert string     TLS certificate file (TLS enabled when set)
//	-tls-key string      TLS key file
//	-advertise           Advertise the simulator via mDNS
//	-instance string     mDNS instance name (default "push-gateway-sim")
//	-push-interval duration  Push a demo payload periodically (0 disables)
//
// Commands (stdin):
//
//	push <json>   - Push a payload to all registered clients
//	error <text>  - Send an error frame to all clients
//	junk          - Send a frame with an unknown tag
//	drop          - Close all client connections
//	list          - List connected clients
//	quit          - Exit
package main

import (
	"bufio"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/doopush/doopush-go/pkg/discovery"
)

func main() {
	var (
		listen       = flag.String("listen", ":9001", "Listen address")
		tlsCert      = flag.String("tls-cert", "", "TLS certificate file (TLS enabled when set)")
		tlsKey       = flag.String("tls-key", "", "TLS key file")
		advertise    = flag.Bool("advertise", false, "Advertise the simulator via mDNS")
		instance     = flag.String("instance", "push-gateway-sim", "mDNS instance name")
		pushInterval = flag.Duration("push-interval", 0, "Push a demo payload periodically (0 disables)")
	)
	flag.Parse()

	listener, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("listen failed: %v", err)
	}

	useTLS := *tlsCert != ""
	if useTLS {
		cert, err := tls.LoadX509KeyPair(*tlsCert, *tlsKey)
		if err != nil {
			log.Fatalf("failed to load TLS keypair: %v", err)
		}
		listener = tls.NewListener(listener, &tls.Config{Certificates: []tls.Certificate{cert}})
	}

	sim := newSimulator()
	log.Printf("gateway simulator listening on %s (tls=%v)", listener.Addr(), useTLS)

	if *advertise {
		port := listener.Addr().(*net.TCPAddr).Port
		adv := discovery.NewAdvertiser()
		if err := adv.Advertise(*instance, port, useTLS); err != nil {
			log.Fatalf("mdns advertise failed: %v", err)
		}
		defer adv.Stop()
		log.Printf("advertising %q as %s", *instance, discovery.ServiceType)
	}

	go acceptLoop(listener, sim)

	if *pushInterval > 0 {
		go func() {
			ticker := time.NewTicker(*pushInterval)
			defer ticker.Stop()
			seq := 0
			for range ticker.C {
				seq++
				payload := fmt.Sprintf(`{"push_id":"demo-%d","title":"demo","body":"push %d"}`, seq, seq)
				sim.pushAll([]byte(payload))
			}
		}()
	}

	runConsole(sim)
	listener.Close()
	sim.dropAll()
}

func acceptLoop(listener net.Listener, sim *simulator) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go sim.handle(conn)
	}
}

func runConsole(sim *simulator) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: push <json> | error <text> | junk | drop | list | quit")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")

		switch strings.ToLower(cmd) {
		case "push":
			if rest == "" {
				rest = `{"push_id":"manual","title":"test","body":"hello"}`
			}
			sim.pushAll([]byte(rest))

		case "error":
			if rest == "" {
				rest = "simulated gateway error"
			}
			sim.errorAll(rest)

		case "junk":
			sim.junkAll()

		case "drop":
			sim.dropAll()

		case "list":
			for _, desc := range sim.list() {
				fmt.Println(desc)
			}

		case "quit", "exit", "q":
			return

		default:
			fmt.Printf("unknown command: %s\n", cmd)
		}
	}
}
