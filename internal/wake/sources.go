package wake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSocketPath is where the trigger socket lives unless configured
// otherwise.
const DefaultSocketPath = "/tmp/parvis.sock"

// MockSource fires on a fixed interval, standing in for a hotword
// detector during simulated operation.
type MockSource struct {
	Interval time.Duration
}

// NewMockSource creates an interval source. Non-positive intervals get a
// usable default.
func NewMockSource(interval time.Duration) *MockSource {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &MockSource{Interval: interval}
}

func (s *MockSource) Name() string { return "mock" }

// Start fires once per interval until the context is cancelled.
func (s *MockSource) Start(ctx context.Context, fire func()) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.Interval).Msg("mock wake source started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fire()
		}
	}
}

// controlMessage is the wire format on the trigger socket.
type controlMessage struct {
	Cmd string `json:"cmd"`
}

// SocketSource fires when an external process, typically a hotword
// daemon or a shell keybinding, sends {"cmd":"trigger"} over a unix
// socket.
type SocketSource struct {
	Path string
}

// NewSocketSource creates a socket source at path.
func NewSocketSource(path string) *SocketSource {
	if path == "" {
		path = DefaultSocketPath
	}
	return &SocketSource{Path: path}
}

func (s *SocketSource) Name() string { return "socket" }

// Start listens on the socket until the context is cancelled. A stale
// socket file from a previous run is removed first.
func (s *SocketSource) Start(ctx context.Context, fire func()) error {
	os.Remove(s.Path)

	ln, err := net.Listen("unix", s.Path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Path, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
		os.Remove(s.Path)
	}()

	log.Info().Str("path", s.Path).Msg("trigger socket listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Warn().Err(err).Msg("trigger socket accept failed")
			continue
		}
		go s.handleConn(conn, fire)
	}
}

func (s *SocketSource) handleConn(conn net.Conn, fire func()) {
	defer conn.Close()

	var msg controlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Warn().Err(err).Msg("malformed trigger message")
		return
	}
	if msg.Cmd == "trigger" {
		fire()
	}
}

// SendTrigger connects to the socket and requests an activation. Used by
// the CLI trigger command.
func SendTrigger(path string) error {
	if path == "" {
		path = DefaultSocketPath
	}
	conn, err := net.Dial("unix", path)
	if err != nil {
		return fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()
	return json.NewEncoder(conn).Encode(controlMessage{Cmd: "trigger"})
}
