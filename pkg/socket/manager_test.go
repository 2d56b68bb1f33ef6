package socket

import (
	"bufio"
	"fmt"
	"image"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamduck-org/streamduck/pkg/core"
)

// fakeProvider manages virtual devices with no HID behind them.
type fakeProvider struct {
	mm     *core.ModuleManager
	store  *memoryStore
	events core.GlobalEventSink

	mu        sync.Mutex
	cores     map[string]*core.SDCore
	clipboard core.Clipboard
}

func newFakeProvider(events core.GlobalEventSink) *fakeProvider {
	return &fakeProvider{
		mm:     core.NewModuleManager(),
		store:  newMemoryStore(),
		events: events,
		cores:  make(map[string]*core.SDCore),
	}
}

func (p *fakeProvider) CoreFor(serial string) (*core.SDCore, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cores[serial]
	return c, ok
}

func (p *fakeProvider) Devices() []DeviceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []DeviceEntry
	for serial, c := range p.cores {
		out = append(out, DeviceEntry{SerialNumber: serial, Online: true, Kind: c.Kind()})
	}
	return out
}

func (p *fakeProvider) AddDevice(serial string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.cores[serial]; ok {
		return fmt.Errorf("device %q: %w", serial, core.ErrAlreadyExists)
	}
	c := core.NewSDCore(serial, core.DeviceKind{Rows: 3, Cols: 5, ImageSize: image.Pt(72, 72)}, p.mm, p.store)
	c.Attach(nil, nil, p.events)
	c.InitializeStack()
	p.cores[serial] = c
	if p.events != nil {
		p.events.Emit(core.SDGlobalEvent{Type: core.GlobalDeviceConnected, SerialNumber: serial})
	}
	return nil
}

func (p *fakeProvider) RemoveDevice(serial string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.cores[serial]; !ok {
		return fmt.Errorf("device %q: %w", serial, core.ErrNotFound)
	}
	delete(p.cores, serial)
	if p.events != nil {
		p.events.Emit(core.SDGlobalEvent{Type: core.GlobalDeviceDisconnected, SerialNumber: serial})
	}
	return nil
}

func (p *fakeProvider) Clipboard() *core.Clipboard       { return &p.clipboard }
func (p *fakeProvider) ConfigStore() core.ConfigStore    { return p.store }

func (p *fakeProvider) ModuleHandle() *core.CoreHandle {
	return core.WrapCore(core.NewSDCore("", core.DeviceKind{}, p.mm, p.store))
}

type memoryStore struct {
	mu      sync.Mutex
	configs map[string]core.DeviceConfig
}

func newMemoryStore() *memoryStore {
	return &memoryStore{configs: make(map[string]core.DeviceConfig)}
}

func (s *memoryStore) DeviceConfig(serial string) (core.DeviceConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[serial]
	return cfg, ok
}

func (s *memoryStore) SetDeviceConfig(cfg core.DeviceConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.SerialNumber] = cfg
}

func (s *memoryStore) SaveDeviceConfig(string) error { return nil }
func (s *memoryStore) SaveDeviceConfigs() error      { return nil }
func (s *memoryStore) ReloadDeviceConfigs() error    { return nil }

func (s *memoryStore) ReloadDeviceConfig(serial string) (core.DeviceConfig, error) {
	cfg, ok := s.DeviceConfig(serial)
	if !ok {
		return core.DeviceConfig{}, fmt.Errorf("device %q config: %w", serial, core.ErrNotFound)
	}
	return cfg, nil
}

func (s *memoryStore) ExportDeviceConfig(serial string) (string, error) {
	cfg, ok := s.DeviceConfig(serial)
	if !ok {
		return "", fmt.Errorf("device %q config: %w", serial, core.ErrNotFound)
	}
	data, err := json.Marshal(cfg)
	return string(data), err
}

func (s *memoryStore) ImportDeviceConfig(serial string, data string) (core.DeviceConfig, error) {
	var cfg core.DeviceConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return core.DeviceConfig{}, fmt.Errorf("%w: %v", core.ErrDecode, err)
	}
	cfg.SerialNumber = serial
	s.SetDeviceConfig(cfg)
	return cfg, nil
}

// newServedManager wires a full manager and serves one or more pipes.
func newServedManager(t *testing.T) (*SocketManager, *fakeProvider) {
	t.Helper()
	m := NewSocketManager()
	provider := newFakeProvider(m)
	RegisterAll(m, provider)
	return m, provider
}

func serveClient(t *testing.T, m *SocketManager) (net.Conn, *bufio.Reader) {
	t.Helper()
	server, clientConn := net.Pipe()
	go m.Serve(server)
	t.Cleanup(func() { clientConn.Close() })
	return clientConn, bufio.NewReader(clientConn)
}

func readFrame(t *testing.T, r *bufio.Reader) SocketPacket {
	t.Helper()
	done := make(chan SocketPacket, 1)
	fail := make(chan error, 1)
	go func() {
		p, err := ReadPacket(r)
		if err != nil {
			fail <- err
			return
		}
		done <- p
	}()
	select {
	case p := <-done:
		return p
	case err := <-fail:
		t.Fatalf("reading frame: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out reading frame")
	}
	return SocketPacket{}
}

// TestVersionFrame is the canonical framing exchange: one EOT-terminated
// request, one EOT-terminated response echoing ty and requester.
func TestVersionFrame(t *testing.T) {
	m, _ := newServedManager(t)
	conn, reader := serveClient(t, m)

	_, err := conn.Write(append([]byte(`{"ty":"socket_api_version","requester":"abc"}`), EOT))
	require.NoError(t, err)

	frame := readFrame(t, reader)
	assert.Equal(t, "socket_api_version", frame.Ty)
	assert.Equal(t, "abc", frame.Requester)

	var data struct {
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, SocketAPIVersion, data.Version)
}

// TestUnknownType tests that unknown message types answer with a tagged
// error and keep the connection alive.
func TestUnknownType(t *testing.T) {
	m, _ := newServedManager(t)
	conn, reader := serveClient(t, m)

	_, err := conn.Write(append([]byte(`{"ty":"launch_missiles","requester":"r1"}`), EOT))
	require.NoError(t, err)

	frame := readFrame(t, reader)
	assert.Equal(t, "launch_missiles", frame.Ty)
	assert.Equal(t, "r1", frame.Requester)

	var failure ResultError
	require.NoError(t, json.Unmarshal(frame.Data, &failure))
	assert.Equal(t, TagNotFound, failure.Error)

	// Connection survives: a normal request still answers.
	_, err = conn.Write(append([]byte(`{"ty":"socket_api_version","requester":"r2"}`), EOT))
	require.NoError(t, err)
	frame = readFrame(t, reader)
	assert.Equal(t, "r2", frame.Requester)
}

// TestMalformedJSON tests that undecodable frames answer with a decode
// error instead of dropping the connection.
func TestMalformedJSON(t *testing.T) {
	m, _ := newServedManager(t)
	conn, reader := serveClient(t, m)

	_, err := conn.Write(append([]byte(`{"ty": broken`), EOT))
	require.NoError(t, err)

	frame := readFrame(t, reader)
	var failure ResultError
	require.NoError(t, json.Unmarshal(frame.Data, &failure))
	assert.Equal(t, TagDecodeError, failure.Error)
}

// TestEventInterleave covers the subscription scenario: a second client's
// add_device surfaces as a device_connected event frame on the first
// client's connection, and the first client's own request is still answered
// exactly once with its requester.
func TestEventInterleave(t *testing.T) {
	m, _ := newServedManager(t)

	watcher, watcherReader := serveClient(t, m)
	actor, actorReader := serveClient(t, m)
	_ = watcher

	_, err := actor.Write(append([]byte(`{"ty":"add_device","requester":"add1","data":{"serial_number":"X"}}`), EOT))
	require.NoError(t, err)
	actorFrame := readFrame(t, actorReader)
	for actorFrame.Ty == EventType {
		actorFrame = readFrame(t, actorReader)
	}
	assert.Equal(t, "add1", actorFrame.Requester)

	frame := readFrame(t, watcherReader)
	require.Equal(t, EventType, frame.Ty)
	assert.Empty(t, frame.Requester, "events carry no requester")

	var ev core.SDGlobalEvent
	require.NoError(t, json.Unmarshal(frame.Data, &ev))
	assert.Equal(t, core.GlobalDeviceConnected, ev.Type)
	assert.Equal(t, "X", ev.SerialNumber)
}

// TestResponseCorrelation tests that every request is answered exactly once
// with its requester echoed, with event frames freely interleaved.
func TestResponseCorrelation(t *testing.T) {
	m, _ := newServedManager(t)
	conn, reader := serveClient(t, m)

	requesters := []string{"r-one", "r-two", "r-three"}
	// net.Pipe is unbuffered, so the requests are written from their own
	// goroutine while this one drains frames. add_device generates an
	// event frame between responses.
	go func() {
		conn.Write(append([]byte(`{"ty":"socket_api_version","requester":"r-one"}`), EOT))
		conn.Write(append([]byte(`{"ty":"add_device","requester":"r-two","data":{"serial_number":"Y"}}`), EOT))
		conn.Write(append([]byte(`{"ty":"list_devices","requester":"r-three"}`), EOT))
	}()

	responses := make(map[string]int)
	var eventFrames int
	for len(responses) < len(requesters) || eventFrames == 0 {
		frame := readFrame(t, reader)
		if frame.Ty == EventType {
			eventFrames++
			continue
		}
		responses[frame.Requester]++
	}

	for _, r := range requesters {
		assert.Equal(t, 1, responses[r], "requester %s answered exactly once", r)
	}
	assert.Positive(t, eventFrames)
}

// TestDeviceRequests drives a representative slice of the taxonomy through
// real frames: buttons, components, clipboard and stack.
func TestDeviceRequests(t *testing.T) {
	m, provider := newServedManager(t)
	require.NoError(t, provider.AddDevice("DEV"))
	conn, reader := serveClient(t, m)

	roundTrip := func(req string) SocketPacket {
		t.Helper()
		_, err := conn.Write(append([]byte(req), EOT))
		require.NoError(t, err)
		for {
			frame := readFrame(t, reader)
			if frame.Ty != EventType {
				return frame
			}
		}
	}

	t.Run("new button and get button", func(t *testing.T) {
		frame := roundTrip(`{"ty":"new_button","requester":"a","data":{"serial_number":"DEV","key":2}}`)
		var failure ResultError
		require.NoError(t, json.Unmarshal(frame.Data, &failure))
		assert.Empty(t, failure.Error)

		frame = roundTrip(`{"ty":"get_button","requester":"b","data":{"serial_number":"DEV","key":2}}`)
		var resp struct {
			Button core.RawButton `json:"button"`
		}
		require.NoError(t, json.Unmarshal(frame.Data, &resp))
		assert.NotNil(t, resp.Button)
	})

	t.Run("copy paste clipboard", func(t *testing.T) {
		frame := roundTrip(`{"ty":"clipboard_status","requester":"c"}`)
		var status struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(frame.Data, &status))
		assert.Equal(t, "empty", status.Status)

		roundTrip(`{"ty":"copy_button","requester":"d","data":{"serial_number":"DEV","key":2}}`)

		frame = roundTrip(`{"ty":"clipboard_status","requester":"e"}`)
		require.NoError(t, json.Unmarshal(frame.Data, &status))
		assert.Equal(t, "full", status.Status)

		frame = roundTrip(`{"ty":"paste_button","requester":"f","data":{"serial_number":"DEV","key":3}}`)
		var failure ResultError
		require.NoError(t, json.Unmarshal(frame.Data, &failure))
		assert.Empty(t, failure.Error)
	})

	t.Run("stack requests", func(t *testing.T) {
		frame := roundTrip(`{"ty":"get_stack_names","requester":"g","data":{"serial_number":"DEV"}}`)
		var resp struct {
			Names []string `json:"names"`
		}
		require.NoError(t, json.Unmarshal(frame.Data, &resp))
		assert.Equal(t, []string{"root"}, resp.Names)
	})

	t.Run("missing device tags not_found", func(t *testing.T) {
		frame := roundTrip(`{"ty":"get_stack","requester":"h","data":{"serial_number":"GHOST"}}`)
		var failure ResultError
		require.NoError(t, json.Unmarshal(frame.Data, &failure))
		assert.Equal(t, TagNotFound, failure.Error)
	})

	t.Run("brightness validation tags invalid_argument", func(t *testing.T) {
		frame := roundTrip(`{"ty":"set_brightness","requester":"i","data":{"serial_number":"DEV","brightness":250}}`)
		var failure ResultError
		require.NoError(t, json.Unmarshal(frame.Data, &failure))
		assert.Equal(t, TagInvalidArgument, failure.Error)
	})
}
