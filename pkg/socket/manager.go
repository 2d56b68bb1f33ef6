package socket

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"

	"github.com/streamduck-org/streamduck/pkg/core"
	"github.com/streamduck-org/streamduck/pkg/monitoring"
)

// eventQueueSize bounds each connection's outgoing event queue. A
// connection that cannot keep up loses its oldest events rather than
// blocking the bus.
const eventQueueSize = 128

// HandlerFunc handles one request kind: decode data, act, return the
// response payload. A returned error becomes a tagged failure payload on
// the response frame; the connection stays up.
type HandlerFunc func(data jsoniter.RawMessage) (interface{}, error)

// SocketManager owns the handler registry and every open client
// connection. It implements core.GlobalEventSink: emitted events fan out as
// event frames to all connections.
type SocketManager struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	conns    map[*connection]struct{}
}

// NewSocketManager returns a manager with an empty registry.
func NewSocketManager() *SocketManager {
	return &SocketManager{
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[*connection]struct{}),
	}
}

// Register installs the handler for a message type, replacing any previous
// one.
func (m *SocketManager) Register(ty string, handler HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[ty] = handler
}

func (m *SocketManager) handler(ty string) (HandlerFunc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[ty]
	return h, ok
}

// Emit fans an event out to every open connection. Never blocks: full
// queues drop their oldest event with a logged warning.
func (m *SocketManager) Emit(ev core.SDGlobalEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("failed to encode global event %q: %v", ev.Type, err)
		return
	}
	packet := SocketPacket{Ty: EventType, Data: data}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for conn := range m.conns {
		conn.pushEvent(packet)
	}
}

// Serve runs one client connection until it closes. Requests are handled in
// arrival order; event frames from the bus interleave between response
// frames, each frame written atomically.
func (m *SocketManager) Serve(conn net.Conn) {
	c := &connection{
		conn:   conn,
		events: make(chan SocketPacket, eventQueueSize),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.conns[c] = struct{}{}
	m.mu.Unlock()
	monitoring.GetGlobalMetrics().ClientConnected()

	defer func() {
		m.mu.Lock()
		delete(m.conns, c)
		m.mu.Unlock()
		close(c.done)
		conn.Close()
		monitoring.GetGlobalMetrics().ClientDisconnected()
	}()

	go c.eventWriter()

	reader := bufio.NewReader(conn)
	for {
		packet, err := ReadPacket(reader)
		if errors.Is(err, core.ErrDecode) {
			// Malformed JSON still gets a tagged reply; only transport
			// failures tear the connection down.
			data, _ := json.Marshal(ResultError{Error: TagDecodeError, Message: err.Error()})
			if err := c.write(SocketPacket{Ty: "error", Data: data}); err != nil {
				return
			}
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debugf("connection read failed: %v", err)
			}
			return
		}
		if err := m.dispatch(c, packet); err != nil {
			log.Debugf("connection write failed: %v", err)
			return
		}
	}
}

// dispatch handles one request frame and writes its response. Unknown
// types and handler failures produce tagged error payloads; only transport
// failures tear the connection down.
func (m *SocketManager) dispatch(c *connection, packet SocketPacket) error {
	start := time.Now()

	var payload interface{}
	handler, ok := m.handler(packet.Ty)
	if !ok {
		payload = ResultError{Error: TagNotFound, Message: "unknown message type"}
	} else {
		result, err := handler(packet.Data)
		if err != nil {
			payload = ResultError{Error: ErrorToTag(err), Message: err.Error()}
		} else {
			payload = result
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(ResultError{Error: TagInternal, Message: "unencodable response"})
	}

	monitoring.GetGlobalMetrics().RequestHandled(packet.Ty, time.Since(start))
	return c.write(SocketPacket{
		Ty:        packet.Ty,
		Requester: packet.Requester,
		Data:      data,
	})
}

// connection is one served client.
type connection struct {
	conn    net.Conn
	writeMu sync.Mutex
	events  chan SocketPacket
	done    chan struct{}
}

// write frames one packet under the write lock, keeping response and event
// frames atomic with respect to each other.
func (c *connection) write(p SocketPacket) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WritePacket(c.conn, p)
}

// pushEvent enqueues an event frame, evicting the oldest when full.
func (c *connection) pushEvent(p SocketPacket) {
	for {
		select {
		case c.events <- p:
			return
		default:
		}
		select {
		case dropped := <-c.events:
			_ = dropped
			monitoring.GetGlobalMetrics().EventDropped()
			log.Warnf("client event queue full, dropping oldest event")
		default:
		}
	}
}

// eventWriter drains the event queue onto the wire until the connection
// closes.
func (c *connection) eventWriter() {
	for {
		select {
		case <-c.done:
			return
		case p := <-c.events:
			if err := c.write(p); err != nil {
				return
			}
		}
	}
}
