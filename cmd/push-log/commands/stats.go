package commands

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/doopush/doopush-go/pkg/log"
)

// fileStats aggregates counters over one log file.
type fileStats struct {
	total      int
	byLayer    map[log.Layer]int
	byCategory map[log.Category]int
	frameBytes int
	dropped    int
	errors     int
	first      time.Time
	last       time.Time
}

// RunStats implements the stats command.
func RunStats(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("stats requires exactly one log file")
	}

	reader, err := log.NewReader(fs.Arg(0))
	if err != nil {
		return err
	}
	defer reader.Close()

	stats := fileStats{
		byLayer:    make(map[log.Layer]int),
		byCategory: make(map[log.Category]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	stats.write(w)
	return nil
}

func (s *fileStats) add(event log.Event) {
	s.total++
	s.byLayer[event.Layer]++
	s.byCategory[event.Category]++

	if event.Frame != nil {
		s.frameBytes += event.Frame.Size
	}
	if event.Message != nil && event.Message.Dropped {
		s.dropped++
	}
	if event.Error != nil {
		s.errors++
	}

	if s.first.IsZero() || event.Timestamp.Before(s.first) {
		s.first = event.Timestamp
	}
	if event.Timestamp.After(s.last) {
		s.last = event.Timestamp
	}
}

func (s *fileStats) write(w io.Writer) {
	fmt.Fprintf(w, "Events:       %d\n", s.total)
	if s.total == 0 {
		return
	}

	fmt.Fprintf(w, "Time range:   %s - %s (%s)\n",
		s.first.UTC().Format(time.RFC3339),
		s.last.UTC().Format(time.RFC3339),
		s.last.Sub(s.first).Round(time.Millisecond))

	fmt.Fprintln(w, "\nBy layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerSession} {
		if count := s.byLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", layer, count)
		}
	}

	fmt.Fprintln(w, "\nBy category:")
	for _, category := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := s.byCategory[category]; count > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", category, count)
		}
	}

	fmt.Fprintf(w, "\nFrame bytes:  %d\n", s.frameBytes)
	if s.dropped > 0 {
		fmt.Fprintf(w, "Dropped:      %d\n", s.dropped)
	}
	if s.errors > 0 {
		fmt.Fprintf(w, "Errors:       %d\n", s.errors)
	}
}
