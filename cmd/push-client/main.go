// Command push-client is an interactive push SDK client for development
// and manual testing.
//
// It drives a push.Manager against the real DooPush API or a local
// gateway simulator, with an interactive shell for exercising lifecycle
// transitions, heartbeats, and badge bookkeeping.
//
// Usage:
//
//	push-client [flags]
//
// Flags:
//
//	-config string    YAML configuration file
//	-api string       API base URL
//	-key string       API key
//	-app int          Application ID
//	-token string     Device push token
//	-gateway string   Gateway host:port (bypasses the registration API)
//	-gateway-tls      Use TLS for the direct gateway connection
//	-insecure         Skip TLS certificate verification (self-signed simulators)
//	-state string     State file path
//	-protocol-log string  Write protocol events to this file
//	-verbose          Print protocol events to stderr
//	-discover         List gateway simulators on the local network and exit
//
// Interactive Commands:
//
//	connect     - Register (if needed) and connect to the gateway
//	disconnect  - Close the gateway connection
//	status      - Show connection state, device ID, badge, heartbeat stats
//	ping        - Send an immediate heartbeat ping
//	fg          - Simulate app entering the foreground
//	bg          - Simulate app entering the background
//	badge [n|+|-|clear] - Show or change the badge count
//	track <push-id> <receive|open|click> - Queue a statistics event
//	quit        - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/doopush/doopush-go/pkg/discovery"
	plog "github.com/doopush/doopush-go/pkg/log"
	"github.com/doopush/doopush-go/pkg/push"
	"github.com/doopush/doopush-go/pkg/session"
	"github.com/doopush/doopush-go/pkg/transport"
)

// fileConfig is the YAML configuration file schema.
type fileConfig struct {
	API        string `yaml:"api"`
	Key        string `yaml:"key"`
	App        int    `yaml:"app"`
	Token      string `yaml:"token"`
	Gateway    string `yaml:"gateway"`
	GatewayTLS bool   `yaml:"gateway_tls"`
	State      string `yaml:"state"`
}

func main() {
	var (
		configPath  = flag.String("config", "", "YAML configuration file")
		apiURL      = flag.String("api", "", "API base URL")
		apiKey      = flag.String("key", "", "API key")
		appID       = flag.Int("app", 0, "Application ID")
		token       = flag.String("token", "", "Device push token")
		gateway     = flag.String("gateway", "", "Gateway host:port (bypasses the registration API)")
		gatewayTLS  = flag.Bool("gateway-tls", false, "Use TLS for the direct gateway connection")
		insecure    = flag.Bool("insecure", false, "Skip TLS certificate verification (self-signed simulators)")
		statePath   = flag.String("state", "", "State file path")
		protocolLog = flag.String("protocol-log", "", "Write protocol events to this file")
		verbose     = flag.Bool("verbose", false, "Print protocol events to stderr")
		discover    = flag.Bool("discover", false, "List gateway simulators on the local network and exit")
	)
	flag.Parse()

	if *discover {
		runDiscover()
		return
	}

	cfg := fileConfig{}
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("failed to read config: %v", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("failed to parse config: %v", err)
		}
	}

	// Flags override the config file.
	if *apiURL != "" {
		cfg.API = *apiURL
	}
	if *apiKey != "" {
		cfg.Key = *apiKey
	}
	if *appID != 0 {
		cfg.App = *appID
	}
	if *token != "" {
		cfg.Token = *token
	}
	if *gateway != "" {
		cfg.Gateway = *gateway
		cfg.GatewayTLS = *gatewayTLS
	}
	if *statePath != "" {
		cfg.State = *statePath
	}

	var loggers []plog.Logger
	if *protocolLog != "" {
		fileLogger, err := plog.NewFileLogger(*protocolLog)
		if err != nil {
			log.Fatalf("failed to open protocol log: %v", err)
		}
		defer fileLogger.Close()
		loggers = append(loggers, fileLogger)
	}
	if *verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, plog.NewSlogAdapter(slog.New(handler)))
	}

	var logger plog.Logger
	switch len(loggers) {
	case 0:
	case 1:
		logger = loggers[0]
	default:
		logger = plog.NewMultiLogger(loggers...)
	}

	sessionConfig := session.Config{}
	if *insecure {
		dialer := transport.NewDialer(transport.DialerConfig{
			TLSConfig: transport.NewInsecureTLSConfig(),
		})
		sessionConfig.Dial = dialer.Dial
	}

	manager := push.NewManager(push.Config{
		StatePath: cfg.State,
		Session:   sessionConfig,
		Logger:    logger,
	})
	defer manager.Close()

	if cfg.API != "" {
		if err := manager.Configure(cfg.App, cfg.Key, cfg.API); err != nil {
			log.Fatalf("configure failed: %v", err)
		}
	} else if cfg.Gateway != "" {
		gw, err := parseGateway(cfg.Gateway, cfg.GatewayTLS)
		if err != nil {
			log.Fatalf("invalid gateway: %v", err)
		}
		appID := cfg.App
		if appID == 0 {
			appID = 1
		}
		manager.UseGateway(appID, gw, cfg.Token)
	}

	shell, err := newShell(manager, cfg.Token)
	if err != nil {
		log.Fatalf("failed to start shell: %v", err)
	}
	shell.run()
}

// parseGateway converts host:port into gateway coordinates.
func parseGateway(addr string, useTLS bool) (transport.GatewayConfig, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return transport.GatewayConfig{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return transport.GatewayConfig{}, err
	}

	gw := transport.GatewayConfig{Host: host, Port: port, UseTLS: useTLS}
	return gw, gw.Validate()
}

// runDiscover lists gateway simulators found via mDNS.
func runDiscover() {
	fmt.Println("browsing for gateway simulators...")
	gateways, err := discovery.Browse(context.Background())
	if err != nil {
		log.Fatalf("discovery failed: %v", err)
	}
	if len(gateways) == 0 {
		fmt.Println("no simulators found")
		return
	}
	for _, gw := range gateways {
		fmt.Printf("%-24s %s (tls=%v)\n", gw.Instance, gw.Addr(), gw.TLS)
	}
}
