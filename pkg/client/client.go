// Package client is the synchronous client library for the daemon's socket
// protocol. One Client owns one connection; concurrent callers serialize on
// a connection-level lock spanning each request round-trip.
//
// Event frames arriving while a caller waits for its response are stashed
// in the client's event buffer and surfaced by PollEvent / WaitEvent.
package client

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	log "github.com/sirupsen/logrus"

	"github.com/streamduck-org/streamduck/pkg/core"
	"github.com/streamduck-org/streamduck/pkg/socket"
)

// requesterAlphabet and requesterLength shape correlation ids: 20
// alphanumeric characters chosen per request.
const (
	requesterAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	requesterLength   = 20
)

// RequestError is a tagged failure returned by the daemon.
type RequestError struct {
	Ty      string
	Tag     string
	Message string
}

// Error implements the error interface for RequestError.
func (e *RequestError) Error() string {
	return fmt.Sprintf("request %q failed: %s: %s", e.Ty, e.Tag, e.Message)
}

// Client is a synchronous daemon client.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader

	eventsMu sync.Mutex
	events   []core.SDGlobalEvent
}

// Connect wraps an established connection and performs the version
// handshake, warning when the daemon speaks a different socket API version.
func Connect(conn net.Conn) (*Client, error) {
	c := &Client{conn: conn, reader: bufio.NewReader(conn)}

	version, err := c.Version()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if version != socket.SocketAPIVersion {
		log.Warnf("client library socket API version %s does not match daemon version %s",
			socket.SocketAPIVersion, version)
	}
	return c, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Request performs one correlated round-trip: frame the request, then read
// frames, buffering events, until the response with the matching requester
// arrives. out may be nil when the success payload is irrelevant.
func (c *Client) Request(ty string, payload interface{}, out interface{}) error {
	requester, err := gonanoid.Generate(requesterAlphabet, requesterLength)
	if err != nil {
		return err
	}

	packet := socket.SocketPacket{Ty: ty, Requester: requester}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("request %q: %w: %v", ty, core.ErrDecode, err)
		}
		packet.Data = data
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := socket.WritePacket(c.conn, packet); err != nil {
		return err
	}

	for {
		frame, err := socket.ReadPacket(c.reader)
		if err != nil {
			return err
		}
		if frame.Ty == socket.EventType {
			c.bufferEvent(frame)
			continue
		}
		if frame.Requester != requester {
			continue
		}
		return decodeResponse(ty, frame, out)
	}
}

func decodeResponse(ty string, frame socket.SocketPacket, out interface{}) error {
	var failure socket.ResultError
	if err := json.Unmarshal(frame.Data, &failure); err == nil && failure.Error != "" {
		return &RequestError{Ty: ty, Tag: failure.Error, Message: failure.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(frame.Data, out); err != nil {
		return fmt.Errorf("response %q: %w: %v", ty, core.ErrDecode, err)
	}
	return nil
}

func (c *Client) bufferEvent(frame socket.SocketPacket) {
	var ev core.SDGlobalEvent
	if err := json.Unmarshal(frame.Data, &ev); err != nil {
		log.Debugf("discarding undecodable event frame: %v", err)
		return
	}
	c.eventsMu.Lock()
	c.events = append(c.events, ev)
	c.eventsMu.Unlock()
}

// PollEvent pops the oldest buffered event without touching the wire.
func (c *Client) PollEvent() (core.SDGlobalEvent, bool) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	if len(c.events) == 0 {
		return core.SDGlobalEvent{}, false
	}
	ev := c.events[0]
	c.events = c.events[1:]
	return ev, true
}

// WaitEvent returns the oldest buffered event, reading frames from the
// connection until one arrives when the buffer is empty.
func (c *Client) WaitEvent() (core.SDGlobalEvent, error) {
	if ev, ok := c.PollEvent(); ok {
		return ev, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if ev, ok := c.PollEvent(); ok {
			return ev, nil
		}
		frame, err := socket.ReadPacket(c.reader)
		if err != nil {
			return core.SDGlobalEvent{}, err
		}
		if frame.Ty == socket.EventType {
			c.bufferEvent(frame)
		}
		// Responses with no waiting requester are dropped; their caller
		// is gone.
	}
}
