package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"

	"github.com/streamduck-org/streamduck/pkg/streamdeck"
	"github.com/streamduck-org/streamduck/pkg/values"
)

// Shared test fixtures: an in-memory config store, a recording command
// sink, a recording event sink and a scriptable module.

type memoryConfigStore struct {
	mu      sync.Mutex
	configs map[string]DeviceConfig
}

func newMemoryConfigStore() *memoryConfigStore {
	return &memoryConfigStore{configs: make(map[string]DeviceConfig)}
}

func (s *memoryConfigStore) DeviceConfig(serial string) (DeviceConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[serial]
	return cfg, ok
}

func (s *memoryConfigStore) SetDeviceConfig(cfg DeviceConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.SerialNumber] = cfg
}

func (s *memoryConfigStore) SaveDeviceConfig(string) error  { return nil }
func (s *memoryConfigStore) SaveDeviceConfigs() error       { return nil }
func (s *memoryConfigStore) ReloadDeviceConfigs() error     { return nil }

func (s *memoryConfigStore) ReloadDeviceConfig(serial string) (DeviceConfig, error) {
	cfg, ok := s.DeviceConfig(serial)
	if !ok {
		return DeviceConfig{}, fmt.Errorf("device %q config: %w", serial, ErrNotFound)
	}
	return cfg, nil
}

func (s *memoryConfigStore) ExportDeviceConfig(serial string) (string, error) {
	cfg, ok := s.DeviceConfig(serial)
	if !ok {
		return "", fmt.Errorf("device %q config: %w", serial, ErrNotFound)
	}
	data, err := json.Marshal(cfg)
	return string(data), err
}

func (s *memoryConfigStore) ImportDeviceConfig(serial string, data string) (DeviceConfig, error) {
	var cfg DeviceConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return DeviceConfig{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	cfg.SerialNumber = serial
	s.SetDeviceConfig(cfg)
	return cfg, nil
}

type recordingSink struct {
	mu       sync.Mutex
	commands [][]streamdeck.Command
}

func (r *recordingSink) SendCommands(cmds []streamdeck.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmds)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []SDGlobalEvent
}

func (r *recordingEvents) Emit(ev SDGlobalEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEvents) all() []SDGlobalEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SDGlobalEvent(nil), r.events...)
}

// testModule is a scriptable module. Component state is a JSON object with
// a single "value" field; the value tree exposes it as one text value.
type testModule struct {
	name       string
	features   []Feature
	components []string

	mu             sync.Mutex
	received       []SDCoreEvent
	pasteCalls     int
	settings       []values.UIValue
	eventDelivered chan SDCoreEvent
}

func newTestModule(name string, features []Feature, components ...string) *testModule {
	return &testModule{
		name:           name,
		features:       features,
		components:     components,
		eventDelivered: make(chan SDCoreEvent, 64),
	}
}

func (m *testModule) Name() string { return m.name }

func (m *testModule) Metadata() PluginMetadata {
	return PluginMetadata{
		Name:         m.name,
		Version:      "1.0",
		Description:  "test module",
		Author:       "tests",
		UsedFeatures: m.features,
	}
}

func (m *testModule) Components() map[string]ComponentDefinition {
	defs := make(map[string]ComponentDefinition, len(m.components))
	for _, name := range m.components {
		defs[name] = ComponentDefinition{DisplayName: name}
	}
	return defs
}

type testComponentState struct {
	Value string `json:"value"`
}

func (m *testModule) AddComponent(_ *CoreHandle, b *Button, name string) error {
	return StoreButtonComponent(b, name, testComponentState{Value: "default"})
}

func (m *testModule) RemoveComponent(_ *CoreHandle, b *Button, name string) error {
	b.RemoveComponent(name)
	return nil
}

func (m *testModule) PasteComponent(_ *CoreHandle, reference, next *Button) error {
	m.mu.Lock()
	m.pasteCalls++
	m.mu.Unlock()
	for _, name := range m.components {
		if blob, ok := reference.Component(name); ok {
			next.SetComponent(name, append([]byte(nil), blob...))
		}
	}
	return nil
}

func (m *testModule) ComponentValues(_ *CoreHandle, b *Button, name string) []values.UIValue {
	state, err := ParseButtonComponent[testComponentState](b, name)
	if err != nil {
		return nil
	}
	return []values.UIValue{
		{Name: "value", DisplayName: "Value", Value: values.Text{Value: state.Value}},
		{Name: "tags", DisplayName: "Tags", Value: values.Array{
			Template: []values.UIValue{{Name: "tag", DisplayName: "Tag", Value: values.Text{}}},
		}},
	}
}

func (m *testModule) SetComponentValue(_ *CoreHandle, b *Button, name string, vals []values.UIValue) error {
	v, err := values.GetByPath(vals, "value")
	if err != nil {
		return err
	}
	text, ok := v.Value.(values.Text)
	if !ok {
		return fmt.Errorf("value: %w", ErrInvalidArgument)
	}
	return StoreButtonComponent(b, name, testComponentState{Value: text.Value})
}

func (m *testModule) GlobalSettings(*CoreHandle) []values.UIValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return []values.UIValue{
			{Name: "greeting", DisplayName: "Greeting", Value: values.Text{Value: "hello"}},
		}
	}
	return values.CloneValues(m.settings)
}

func (m *testModule) SetGlobalSettings(_ *CoreHandle, vals []values.UIValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = values.CloneValues(vals)
	return nil
}

func (m *testModule) Event(_ *CoreHandle, ev SDCoreEvent) {
	m.mu.Lock()
	m.received = append(m.received, ev)
	m.mu.Unlock()
	select {
	case m.eventDelivered <- ev:
	default:
	}
}

func (m *testModule) receivedEvents() []SDCoreEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SDCoreEvent(nil), m.received...)
}

func (m *testModule) pasteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pasteCalls
}

// tinyPNGBase64 returns a valid 1x1 PNG as base64, for image upload tests.
func tinyPNGBase64(t testing.TB) string {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding fixture png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// newTestCore builds an initialized core with the given modules registered.
func newTestCore(serial string, modules ...SDModule) (*SDCore, *recordingSink, *recordingEvents) {
	mm := NewModuleManager()
	for _, m := range modules {
		if err := mm.RegisterModule(m); err != nil {
			panic(err)
		}
	}
	store := newMemoryConfigStore()
	c := NewSDCore(serial, DeviceKind{Rows: 3, Cols: 5, ImageSize: image.Pt(72, 72)}, mm, store)
	sink := &recordingSink{}
	events := &recordingEvents{}
	c.Attach(sink, nil, events)
	c.InitializeStack()
	c.ConsumeDirty()
	return c, sink, events
}
