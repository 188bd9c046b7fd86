package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/doopush/doopush-go/pkg/log"
)

// Chunk constants.
const (
	// DefaultMaxChunkSize is the read buffer size (64 KB). A frame larger
	// than this arrives split and will be mis-framed; the deployed gateway
	// never sends frames near this size.
	DefaultMaxChunkSize = 65536

	// MaxLogChunkDataSize is the maximum chunk data size to include in log
	// events (4 KB). Larger chunks are truncated in the log.
	MaxLogChunkDataSize = 4096
)

// Chunk errors.
var (
	// ErrChunkEmpty indicates a write of zero bytes was requested.
	ErrChunkEmpty = errors.New("chunk is empty")
)

// ChunkReader reads gateway frames from a socket.
//
// The gateway format has no length field, so one successful Read on the
// socket is treated as exactly one frame. This is the deployed gateway's
// delimiting contract; see the package comment for the risk discussion.
type ChunkReader struct {
	r   io.Reader
	buf []byte

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewChunkReader creates a chunk reader with the default buffer size.
func NewChunkReader(r io.Reader) *ChunkReader {
	return &ChunkReader{
		r:   r,
		buf: make([]byte, DefaultMaxChunkSize),
	}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (cr *ChunkReader) SetLogger(logger log.Logger, connID string) {
	cr.logger = logger
	cr.connID = connID
}

// ReadChunk reads one frame. The returned slice is only valid until the
// next call.
func (cr *ChunkReader) ReadChunk() ([]byte, error) {
	n, err := cr.r.Read(cr.buf)
	if err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read chunk: %w", err)
	}
	chunk := cr.buf[:n]

	if cr.logger != nil {
		cr.logger.Log(makeChunkEvent(cr.connID, chunk, log.DirectionIn))
	}

	return chunk, nil
}

// ChunkWriter writes gateway frames to a socket.
// One Write call emits one frame.
type ChunkWriter struct {
	w  io.Writer
	mu sync.Mutex

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewChunkWriter creates a chunk writer.
func NewChunkWriter(w io.Writer) *ChunkWriter {
	return &ChunkWriter{w: w}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (cw *ChunkWriter) SetLogger(logger log.Logger, connID string) {
	cw.logger = logger
	cw.connID = connID
}

// WriteChunk writes one frame in a single Write call.
// Thread-safe: can be called from multiple goroutines.
func (cw *ChunkWriter) WriteChunk(data []byte) error {
	if len(data) == 0 {
		return ErrChunkEmpty
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()

	if _, err := cw.w.Write(data); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}

	if cw.logger != nil {
		cw.logger.Log(makeChunkEvent(cw.connID, data, log.DirectionOut))
	}

	return nil
}

// makeChunkEvent creates a log event for a raw frame.
func makeChunkEvent(connID string, data []byte, direction log.Direction) log.Event {
	chunkData := data
	truncated := false
	if len(data) > MaxLogChunkDataSize {
		chunkData = data[:MaxLogChunkDataSize]
		truncated = true
	}

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      chunkData,
			Truncated: truncated,
		},
	}
}
