// Package commands implements the push-log CLI commands.
package commands

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/doopush/doopush-go/pkg/log"
)

// RunView implements the view command.
func RunView(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	layerFlag := fs.String("layer", "", "Filter by layer: transport, wire, session")
	directionFlag := fs.String("direction", "", "Filter by direction: in, out")
	categoryFlag := fs.String("category", "", "Filter by category: message, control, state, error")
	connFlag := fs.String("conn-id", "", "Filter by connection ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("view requires exactly one log file")
	}

	filter, err := buildFilter(*layerFlag, *directionFlag, *categoryFlag, *connFlag)
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(fs.Arg(0), filter)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// buildFilter converts flag strings into a log filter.
func buildFilter(layerStr, directionStr, categoryStr, connID string) (log.Filter, error) {
	filter := log.Filter{ConnectionID: connID}

	if layerStr != "" {
		var layer log.Layer
		switch strings.ToLower(layerStr) {
		case "transport":
			layer = log.LayerTransport
		case "wire":
			layer = log.LayerWire
		case "session":
			layer = log.LayerSession
		default:
			return filter, fmt.Errorf("unknown layer: %s", layerStr)
		}
		filter.Layer = &layer
	}

	if directionStr != "" {
		var direction log.Direction
		switch strings.ToLower(directionStr) {
		case "in":
			direction = log.DirectionIn
		case "out":
			direction = log.DirectionOut
		default:
			return filter, fmt.Errorf("unknown direction: %s", directionStr)
		}
		filter.Direction = &direction
	}

	if categoryStr != "" {
		var category log.Category
		switch strings.ToLower(categoryStr) {
		case "message":
			category = log.CategoryMessage
		case "control":
			category = log.CategoryControl
		case "state":
			category = log.CategoryState
		case "error":
			category = log.CategoryError
		default:
			return filter, fmt.Errorf("unknown category: %s", categoryStr)
		}
		filter.Category = &category
	}

	return filter, nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Message != nil:
		typeLabel = event.Message.TagName
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Heartbeat != nil:
		typeLabel = event.Heartbeat.Kind.String()
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, connID, event.Direction, event.Layer, typeLabel)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  Tag: 0x%02X  Payload: %d bytes", msg.Tag, msg.PayloadSize)
	if msg.Dropped {
		fmt.Fprintf(w, "  (dropped)")
	}
	fmt.Fprintln(w)
}

func formatStateChangeDetails(w io.Writer, change *log.StateChangeEvent) {
	if change.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s", change.OldState, change.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s", change.NewState)
	}
	if change.Reason != "" {
		fmt.Fprintf(w, "  (%s)", change.Reason)
	}
	fmt.Fprintln(w)
}

func formatErrorDetails(w io.Writer, errEvent *log.ErrorEventData) {
	fmt.Fprintf(w, "  %s\n", errEvent.Message)
	if errEvent.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", errEvent.Context)
	}
}
