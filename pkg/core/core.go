package core

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamduck-org/streamduck/pkg/streamdeck"
)

// DeviceKind is the concrete shape of a connected panel.
type DeviceKind struct {
	// Rows and Cols give the key grid; key count is their product.
	Rows int `json:"rows"`
	Cols int `json:"cols"`

	// ImageSize is the pixel size of one key's display.
	ImageSize image.Point `json:"image_size"`
}

// KeyCount returns the number of keys on the grid.
func (k DeviceKind) KeyCount() uint8 {
	return uint8(k.Rows * k.Cols)
}

// CommandSink receives batched device commands. The HID writer worker
// implements it.
type CommandSink interface {
	SendCommands([]streamdeck.Command)
}

// Renderer is the render pipeline attached to a device. Redraw is the
// edge-triggered production path; the Render methods produce images on
// demand for the get_button_images requests without touching the device.
type Renderer interface {
	Redraw()
	RenderScreen(h *CoreHandle) map[uint8]image.Image
	RenderKey(h *CoreHandle, key uint8) (image.Image, error)
}

// SDCore is the state machine of a single device: its panel stack,
// brightness, dirty flag and the attachments wired in by the daemon.
type SDCore struct {
	serial string
	kind   DeviceKind

	moduleManager *ModuleManager
	configStore   ConfigStore

	// Attachments, set once during device bring-up.
	commands     CommandSink
	renderer     Renderer
	globalEvents GlobalEventSink

	stackMu sync.Mutex
	stack   []*ButtonPanel

	stateMu    sync.Mutex
	brightness uint8
	lastCommit time.Time

	renderersMu     sync.RWMutex
	customRenderers map[string]CustomRenderer

	dirty  atomic.Bool
	redraw chan struct{}
	closed atomic.Bool
}

// NewSDCore creates a core for the device with the given serial and shape.
func NewSDCore(serial string, kind DeviceKind, mm *ModuleManager, cfg ConfigStore) *SDCore {
	return &SDCore{
		serial:          serial,
		kind:            kind,
		moduleManager:   mm,
		configStore:     cfg,
		customRenderers: make(map[string]CustomRenderer),
		redraw:          make(chan struct{}, 1),
	}
}

// Attach wires the device-side workers into the core. Must be called before
// the first mutation; attachments are not hot-swappable.
func (c *SDCore) Attach(commands CommandSink, renderer Renderer, events GlobalEventSink) {
	c.commands = commands
	c.renderer = renderer
	c.globalEvents = events
}

// Serial returns the device serial number.
func (c *SDCore) Serial() string { return c.serial }

// Kind returns the device shape.
func (c *SDCore) Kind() DeviceKind { return c.kind }

// KeyCount returns the number of keys on the device.
func (c *SDCore) KeyCount() uint8 { return c.kind.KeyCount() }

// ImageSize returns the pixel size of one key.
func (c *SDCore) ImageSize() image.Point { return c.kind.ImageSize }

// ModuleManager returns the registry shared by all devices.
func (c *SDCore) ModuleManager() *ModuleManager { return c.moduleManager }

// InitializeStack seeds the stack with the root panel from the device
// config, or an empty root when the config has none. The root panel is
// pinned: the stack never drops below one element after this call.
func (c *SDCore) InitializeStack() {
	root := NewButtonPanel("root")
	if cfg, ok := c.configStore.DeviceConfig(c.serial); ok {
		if cfg.RootPanel.Buttons != nil {
			root = MakePanelUnique(cfg.RootPanel)
		}
		c.stateMu.Lock()
		c.brightness = cfg.Brightness
		c.stateMu.Unlock()
	}
	c.stackMu.Lock()
	c.stack = []*ButtonPanel{root}
	c.stackMu.Unlock()
	c.MarkForRedraw()
}

// MarkForRedraw sets the dirty flag and signals the render worker. The
// signal is edge-triggered: any number of marks between two render passes
// coalesce into one.
func (c *SDCore) MarkForRedraw() {
	c.dirty.Store(true)
	select {
	case c.redraw <- struct{}{}:
	default:
	}
}

// RedrawSignal is the channel the render worker blocks on.
func (c *SDCore) RedrawSignal() <-chan struct{} { return c.redraw }

// ConsumeDirty clears the dirty flag, returning whether it was set. The
// render worker calls it at the top of each pass.
func (c *SDCore) ConsumeDirty() bool { return c.dirty.Swap(false) }

// IsDirty reports whether a redraw is pending.
func (c *SDCore) IsDirty() bool { return c.dirty.Load() }

// SendCommands forwards a command batch to the device writer. Safe to call
// before Attach; commands are dropped when no sink is wired (tests, teardown).
func (c *SDCore) SendCommands(cmds []streamdeck.Command) {
	if c.commands != nil {
		c.commands.SendCommands(cmds)
	}
}

// EmitGlobalEvent forwards an event to the client fan-out, if attached.
func (c *SDCore) EmitGlobalEvent(ev SDGlobalEvent) {
	if c.globalEvents != nil {
		c.globalEvents.Emit(ev)
	}
}

// Brightness returns the last set brightness.
func (c *SDCore) Brightness() uint8 {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.brightness
}

// LastCommit returns the time of the last commit_changes, zero if never.
func (c *SDCore) LastCommit() time.Time {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.lastCommit
}

// RegisterCustomRenderer installs a named custom renderer on this device.
// The name replaces any previous renderer under the same name.
func (c *SDCore) RegisterCustomRenderer(r CustomRenderer) {
	c.renderersMu.Lock()
	defer c.renderersMu.Unlock()
	c.customRenderers[r.Name()] = r
}

// LookupCustomRenderer returns the named custom renderer.
func (c *SDCore) LookupCustomRenderer(name string) (CustomRenderer, bool) {
	c.renderersMu.RLock()
	defer c.renderersMu.RUnlock()
	r, ok := c.customRenderers[name]
	return r, ok
}

// Close marks the core closed. The render worker observes the flag at the
// top of its loop and exits; the signal wakes it if it is blocked.
func (c *SDCore) Close() {
	if c.closed.CompareAndSwap(false, true) {
		select {
		case c.redraw <- struct{}{}:
		default:
		}
	}
}

// IsClosed reports whether the core is shut down.
func (c *SDCore) IsClosed() bool { return c.closed.Load() }
