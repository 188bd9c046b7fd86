package main

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/doopush/doopush-go/pkg/transport"
	"github.com/doopush/doopush-go/pkg/wire"
)

// client is one connected push client.
type client struct {
	id     string
	conn   net.Conn
	writer *transport.ChunkWriter

	mu         sync.Mutex
	registered bool
	reg        *wire.Registration
}

// simulator tracks connected clients and broadcasts frames to them.
type simulator struct {
	mu      sync.Mutex
	clients map[string]*client
}

func newSimulator() *simulator {
	return &simulator{clients: make(map[string]*client)}
}

// handle runs the protocol for one client connection.
func (s *simulator) handle(conn net.Conn) {
	c := &client{
		id:     uuid.NewString()[:8],
		conn:   conn,
		writer: transport.NewChunkWriter(conn),
	}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	log.Printf("[%s] connected from %s", c.id, conn.RemoteAddr())
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		log.Printf("[%s] disconnected", c.id)
	}()

	reader := transport.NewChunkReader(conn)
	for {
		chunk, err := reader.ReadChunk()
		if err != nil {
			return
		}
		msg := wire.Decode(chunk)
		if msg == nil {
			continue
		}

		switch msg.Tag {
		case wire.TagRegister:
			reg, err := wire.DecodeRegistration(msg.Payload)
			if err != nil {
				log.Printf("[%s] bad registration: %v", c.id, err)
				c.writer.WriteChunk(wire.Encode(wire.TagError, []byte("invalid registration")))
				return
			}
			c.mu.Lock()
			c.registered = true
			c.reg = reg
			c.mu.Unlock()
			log.Printf("[%s] registered app=%d token=%s", c.id, reg.AppID, reg.Token)
			c.writer.WriteChunk([]byte{byte(wire.TagAck)})

		case wire.TagPing:
			c.writer.WriteChunk([]byte{byte(wire.TagPong)})

		default:
			log.Printf("[%s] unexpected tag 0x%02X, ignoring", c.id, byte(msg.Tag))
		}
	}
}

// registeredClients snapshots the clients that completed registration.
func (s *simulator) registeredClients() []*client {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*client
	for _, c := range s.clients {
		c.mu.Lock()
		ok := c.registered
		c.mu.Unlock()
		if ok {
			out = append(out, c)
		}
	}
	return out
}

// pushAll sends a push frame to all registered clients.
func (s *simulator) pushAll(payload []byte) {
	for _, c := range s.registeredClients() {
		if err := c.writer.WriteChunk(wire.Encode(wire.TagPush, payload)); err != nil {
			log.Printf("[%s] push failed: %v", c.id, err)
		}
	}
}

// errorAll sends an error frame to all clients.
func (s *simulator) errorAll(message string) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.writer.WriteChunk(wire.Encode(wire.TagError, []byte(message)))
	}
}

// junkAll sends a frame with an unknown tag. Clients must drop it.
func (s *simulator) junkAll() {
	for _, c := range s.registeredClients() {
		c.writer.WriteChunk([]byte{0x7F, 0xDE, 0xAD})
	}
}

// dropAll closes all client connections.
func (s *simulator) dropAll() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

// list describes connected clients.
func (s *simulator) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) == 0 {
		return []string{"no clients connected"}
	}

	out := make([]string, 0, len(s.clients))
	for _, c := range s.clients {
		c.mu.Lock()
		desc := fmt.Sprintf("%s  %s  registered=%v", c.id, c.conn.RemoteAddr(), c.registered)
		if c.reg != nil {
			desc += fmt.Sprintf("  app=%d", c.reg.AppID)
		}
		c.mu.Unlock()
		out = append(out, desc)
	}
	return out
}
