// Package daemon assembles the pieces into a running service: the device
// manager owning one core + render pipeline + HID writer per connected
// panel, and the listener loop serving socket clients.
package daemon

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/streamduck-org/streamduck/pkg/core"
	"github.com/streamduck-org/streamduck/pkg/render"
	"github.com/streamduck-org/streamduck/pkg/socket"
	"github.com/streamduck-org/streamduck/pkg/streamdeck"
)

// managedDevice bundles everything alive for one panel.
type managedDevice struct {
	core     *core.SDCore
	deck     streamdeck.Deck
	writer   *streamdeck.Writer
	pipeline *render.Pipeline
}

// DeviceManager tracks managed panels and implements the socket layer's
// DeviceProvider. Devices appear via AddDevice and disappear via
// RemoveDevice; connected panels that are not managed list as offline.
type DeviceManager struct {
	moduleManager *core.ModuleManager
	configStore   core.ConfigStore
	coreModule    *render.CoreModule
	events        core.GlobalEventSink
	clipboard     core.Clipboard

	// moduleCore is a zero-key core carrying the registry for
	// device-independent module operations.
	moduleCore *core.SDCore

	// openDeck and enumerate are swapped for fakes in tests.
	openDeck  func(serial string) (streamdeck.Deck, error)
	enumerate func() ([]streamdeck.DeviceInfo, error)

	mu      sync.RWMutex
	devices map[string]*managedDevice
}

// NewDeviceManager builds a manager over the shared registry and config
// store. events receives device lifecycle and core events for client
// fan-out.
func NewDeviceManager(mm *core.ModuleManager, cfg core.ConfigStore, coreModule *render.CoreModule, events core.GlobalEventSink) *DeviceManager {
	return &DeviceManager{
		moduleManager: mm,
		configStore:   cfg,
		coreModule:    coreModule,
		events:        events,
		moduleCore:    core.NewSDCore("", core.DeviceKind{}, mm, cfg),
		openDeck:      streamdeck.Open,
		enumerate:     streamdeck.Enumerate,
		devices:       make(map[string]*managedDevice),
	}
}

// CoreFor returns the core of a managed device.
func (m *DeviceManager) CoreFor(serial string) (*core.SDCore, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dev, ok := m.devices[serial]
	if !ok {
		return nil, false
	}
	return dev.core, true
}

// Devices lists managed devices as online plus enumerated panels that are
// not managed as offline. Stored configs are not consulted.
func (m *DeviceManager) Devices() []socket.DeviceEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]socket.DeviceEntry, 0, len(m.devices))
	seen := make(map[string]bool, len(m.devices))
	for serial, dev := range m.devices {
		entries = append(entries, socket.DeviceEntry{
			SerialNumber: serial,
			Online:       true,
			Kind:         dev.core.Kind(),
		})
		seen[serial] = true
	}

	if infos, err := m.enumerate(); err == nil {
		for _, info := range infos {
			if seen[info.Serial] {
				continue
			}
			entries = append(entries, socket.DeviceEntry{
				SerialNumber: info.Serial,
				Online:       false,
				Kind: core.DeviceKind{
					Rows: info.Rows, Cols: info.Cols, ImageSize: info.ImageSize,
				},
			})
		}
	}
	return entries
}

// AddDevice brings a panel under management: open the HID device, spawn its
// writer and render worker, seed its stack from config and start listening
// for key events.
func (m *DeviceManager) AddDevice(serial string) error {
	m.mu.Lock()
	if _, ok := m.devices[serial]; ok {
		m.mu.Unlock()
		return fmt.Errorf("device %q: %w", serial, core.ErrAlreadyExists)
	}
	m.mu.Unlock()

	deck, err := m.openDeck(serial)
	if err != nil {
		return fmt.Errorf("device %q: %w: %v", serial, core.ErrNotFound, err)
	}
	info := deck.Info()
	kind := core.DeviceKind{Rows: info.Rows, Cols: info.Cols, ImageSize: info.ImageSize}

	c := core.NewSDCore(serial, kind, m.moduleManager, m.configStore)
	writer := streamdeck.NewWriter(deck)
	pipeline := render.NewPipeline(c, m.coreModule)
	c.Attach(writer, pipeline, m.events)

	dev := &managedDevice{core: c, deck: deck, writer: writer, pipeline: pipeline}
	m.mu.Lock()
	m.devices[serial] = dev
	m.mu.Unlock()

	writer.Start()
	c.InitializeStack()
	pipeline.Start()

	if brightness := c.Brightness(); brightness > 0 {
		if err := core.WrapCore(c).SetBrightness(brightness); err != nil {
			log.Warnf("device %s: restoring brightness: %v", serial, err)
		}
	}

	go m.readKeys(dev)

	if m.events != nil {
		m.events.Emit(core.SDGlobalEvent{
			Type:         core.GlobalDeviceConnected,
			SerialNumber: serial,
		})
	}
	log.Infof("device %s connected (%dx%d keys)", serial, kind.Rows, kind.Cols)
	return nil
}

// readKeys pumps physical key transitions into the core until the deck
// closes.
func (m *DeviceManager) readKeys(dev *managedDevice) {
	h := core.WrapCore(dev.core)
	err := dev.deck.ReadKeys(func(ev streamdeck.KeyEvent) {
		if ev.Pressed {
			h.ButtonDown(ev.Key)
		} else {
			h.ButtonUp(ev.Key)
		}
	})
	if err != nil && !dev.core.IsClosed() {
		log.Warnf("device %s: key reader stopped: %v", dev.core.Serial(), err)
	}
}

// RemoveDevice tears a panel down: stop the workers, close the device and
// announce the disconnect.
func (m *DeviceManager) RemoveDevice(serial string) error {
	m.mu.Lock()
	dev, ok := m.devices[serial]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("device %q: %w", serial, core.ErrNotFound)
	}
	delete(m.devices, serial)
	m.mu.Unlock()

	dev.core.Close()
	dev.writer.Close()
	if err := dev.deck.Close(); err != nil {
		log.Debugf("device %s: close: %v", serial, err)
	}

	if m.events != nil {
		m.events.Emit(core.SDGlobalEvent{
			Type:         core.GlobalDeviceDisconnected,
			SerialNumber: serial,
		})
	}
	log.Infof("device %s disconnected", serial)
	return nil
}

// Clipboard returns the daemon-wide button clipboard.
func (m *DeviceManager) Clipboard() *core.Clipboard { return &m.clipboard }

// ConfigStore returns the device config collaborator.
func (m *DeviceManager) ConfigStore() core.ConfigStore { return m.configStore }

// ModuleHandle returns a system handle not bound to any physical device.
func (m *DeviceManager) ModuleHandle() *core.CoreHandle {
	return core.WrapCore(m.moduleCore)
}

// Serials returns the managed serial numbers.
func (m *DeviceManager) Serials() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.devices))
	for serial := range m.devices {
		out = append(out, serial)
	}
	return out
}

// Close tears down every managed device.
func (m *DeviceManager) Close() {
	for _, serial := range m.Serials() {
		if err := m.RemoveDevice(serial); err != nil {
			log.Debugf("close: %v", err)
		}
	}
}
