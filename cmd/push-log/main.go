// Command push-log views and analyzes push protocol log files.
//
// Log files are created with the -protocol-log flag of push-client; they
// contain a CBOR stream of protocol events from every layer (raw frames,
// decoded messages, state changes, heartbeats, errors).
//
// Usage:
//
//	push-log <command> [flags] <file.plog>
//
// Commands:
//
//	view     View log file in human-readable format
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	push-log view client.plog
//
//	# View only session-layer events
//	push-log view -layer session client.plog
//
//	# View only outgoing messages
//	push-log view -direction out client.plog
//
//	# Show statistics
//	push-log stats client.plog
package main

import (
	"fmt"
	"os"

	"github.com/doopush/doopush-go/cmd/push-log/commands"
)

const usage = `push-log - Push Protocol Log Analyzer

Usage:
  push-log <command> [flags] <file.plog>

Commands:
  view     View log file in human-readable format
  stats    Show statistics about the log file

Use "push-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "view":
		err = commands.RunView(args, os.Stdout)
	case "stats":
		err = commands.RunStats(args, os.Stdout)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", cmd, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "push-log: %v\n", err)
		os.Exit(1)
	}
}
