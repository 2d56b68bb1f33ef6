package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/streamduck-org/streamduck/pkg/monitoring"
	"github.com/streamduck-org/streamduck/pkg/observability"
	"github.com/streamduck-org/streamduck/pkg/streamdeck"
	"github.com/streamduck-org/streamduck/pkg/values"
)

// CoreHandle is the capability-checked façade handed to modules and to the
// socket layer. It carries the calling module's identity, which drives the
// advisory feature gate and keeps events from echoing back to their
// originator.
//
// Handles are cheap; CloneFor derives one per module at dispatch time.
type CoreHandle struct {
	core           *SDCore
	moduleName     string
	moduleFeatures []Feature

	warnedMu sync.Mutex
	warned   map[string]bool
}

// WrapCore wraps a core with the synthetic system identity, which declares
// every feature. Core-internal and socket-originated calls use this.
func WrapCore(core *SDCore) *CoreHandle {
	return &CoreHandle{
		core:           core,
		moduleName:     SystemModuleName,
		moduleFeatures: SupportedFeatures,
	}
}

// CloneFor derives a handle carrying the given module's identity.
func (h *CoreHandle) CloneFor(module SDModule) *CoreHandle {
	return &CoreHandle{
		core:           h.core,
		moduleName:     module.Name(),
		moduleFeatures: module.Metadata().UsedFeatures,
	}
}

// ModuleName returns the identity the handle was built for.
func (h *CoreHandle) ModuleName() string { return h.moduleName }

// CheckFeature reports whether the handle's module declared the feature.
func (h *CoreHandle) CheckFeature(name string) bool {
	return featureListContains(h.moduleFeatures, name)
}

// requireFeature is the advisory gate: one warning line when the module did
// not declare the feature, then the call proceeds. Nested gated calls under
// the same handle share the warning, so one operation logs once.
func (h *CoreHandle) requireFeature(feature Feature) {
	if featureListContains(h.moduleFeatures, feature.Name) {
		return
	}
	h.warnedMu.Lock()
	if h.warned == nil {
		h.warned = make(map[string]bool)
	}
	already := h.warned[feature.Name]
	h.warned[feature.Name] = true
	h.warnedMu.Unlock()
	if !already {
		warnForFeature(h.moduleName, h.moduleFeatures, feature.Name)
	}
}

// Core returns the underlying device core.
func (h *CoreHandle) Core() *SDCore {
	h.requireFeature(FeatureCore)
	return h.core
}

// ModuleManager returns the shared module registry.
func (h *CoreHandle) ModuleManager() *ModuleManager {
	h.requireFeature(FeatureModuleManager)
	return h.core.moduleManager
}

// ConfigStore returns the device config collaborator.
func (h *CoreHandle) ConfigStore() ConfigStore {
	h.requireFeature(FeatureConfig)
	return h.core.configStore
}

// SendCoreEventToModules fans ev out to modules, skipping the handle's own
// module. Each dispatch runs on its own goroutine with panic isolation, so
// one slow or broken module cannot stall the rest.
func (h *CoreHandle) SendCoreEventToModules(ev SDCoreEvent, modules []SDModule) {
	for _, module := range modules {
		if module.Name() == h.moduleName {
			continue
		}
		module := module
		handle := h.CloneFor(module)
		go func() {
			defer RecoverModulePanic(module.Name(), "event")
			monitoring.GetGlobalMetrics().EventDispatched(module.Name())
			module.Event(handle, ev)
		}()
	}
}

// RecoverModulePanic contains a module callback panic: log, report, carry on.
// The offending module stays loaded.
func RecoverModulePanic(moduleName, callback string) {
	r := recover()
	if r == nil {
		return
	}
	err := &ModulePanicError{ModuleName: moduleName, Callback: callback, PanicValue: r}
	log.Errorf("%v", err)
	if reporter := observability.GetErrorReporter(); reporter != nil {
		reporter.ReportError(err, &observability.ErrorContext{
			ModuleName: moduleName,
			Callback:   callback,
			Timestamp:  time.Now(),
			StackTrace: debug.Stack(),
		})
	}
}

// emit sends ev to every registered module (minus the originator) and
// mirrors it onto the global event stream.
func (h *CoreHandle) emit(ev SDCoreEvent) {
	h.SendCoreEventToModules(ev, h.core.moduleManager.GetModuleList())
	h.core.EmitGlobalEvent(CoreEventToGlobal(ev, h.core.serial))
}

// --- Panel stack ---

// GetStack returns the panel stack, bottom first.
func (h *CoreHandle) GetStack() []*ButtonPanel {
	h.requireFeature(FeatureCoreMethods)
	h.core.stackMu.Lock()
	defer h.core.stackMu.Unlock()
	return append([]*ButtonPanel(nil), h.core.stack...)
}

// GetStackNames returns the display names of the stack, bottom first.
func (h *CoreHandle) GetStackNames() []string {
	names := make([]string, 0)
	for _, p := range h.GetStack() {
		names = append(names, p.DisplayName())
	}
	return names
}

// GetCurrentScreen returns the panel on top of the stack.
func (h *CoreHandle) GetCurrentScreen() (*ButtonPanel, bool) {
	h.requireFeature(FeatureCoreMethods)
	h.core.stackMu.Lock()
	defer h.core.stackMu.Unlock()
	if len(h.core.stack) == 0 {
		return nil, false
	}
	return h.core.stack[len(h.core.stack)-1], true
}

// GetRootScreen returns the pinned bottom panel.
func (h *CoreHandle) GetRootScreen() (*ButtonPanel, bool) {
	h.requireFeature(FeatureCoreMethods)
	h.core.stackMu.Lock()
	defer h.core.stackMu.Unlock()
	if len(h.core.stack) == 0 {
		return nil, false
	}
	return h.core.stack[0], true
}

// PushScreen pushes a panel onto the stack and makes it visible.
func (h *CoreHandle) PushScreen(screen *ButtonPanel) {
	h.requireFeature(FeatureCoreMethods)
	h.core.stackMu.Lock()
	h.core.stack = append(h.core.stack, screen)
	h.core.stackMu.Unlock()

	h.emit(PanelPushedEvent{NewPanel: screen})
	h.core.MarkForRedraw()
}

// PopScreen pops the visible panel. The root panel is pinned: popping a
// single-element stack is a no-op that returns false.
func (h *CoreHandle) PopScreen() bool {
	h.requireFeature(FeatureCoreMethods)
	h.core.stackMu.Lock()
	if len(h.core.stack) <= 1 {
		h.core.stackMu.Unlock()
		return false
	}
	old := h.core.stack[len(h.core.stack)-1]
	h.core.stack = h.core.stack[:len(h.core.stack)-1]
	h.core.stackMu.Unlock()

	h.emit(PanelPoppedEvent{PoppedPanel: old})
	h.core.MarkForRedraw()
	return true
}

// ForciblyPopScreen pops the visible panel even when it is the last one,
// permitting an empty stack.
func (h *CoreHandle) ForciblyPopScreen() bool {
	h.requireFeature(FeatureCoreMethods)
	h.core.stackMu.Lock()
	if len(h.core.stack) == 0 {
		h.core.stackMu.Unlock()
		return false
	}
	old := h.core.stack[len(h.core.stack)-1]
	h.core.stack = h.core.stack[:len(h.core.stack)-1]
	h.core.stackMu.Unlock()

	h.emit(PanelPoppedEvent{PoppedPanel: old})
	h.core.MarkForRedraw()
	return true
}

// ReplaceScreen swaps the visible panel for another.
func (h *CoreHandle) ReplaceScreen(screen *ButtonPanel) {
	h.requireFeature(FeatureCoreMethods)
	h.core.stackMu.Lock()
	var old *ButtonPanel
	if len(h.core.stack) > 0 {
		old = h.core.stack[len(h.core.stack)-1]
		h.core.stack = h.core.stack[:len(h.core.stack)-1]
	}
	h.core.stack = append(h.core.stack, screen)
	h.core.stackMu.Unlock()

	h.emit(PanelReplacedEvent{OldPanel: old, NewPanel: screen})
	h.core.MarkForRedraw()
}

// ResetStack clears the stack and seeds it with the given panel.
func (h *CoreHandle) ResetStack(panel *ButtonPanel) {
	h.requireFeature(FeatureCoreMethods)
	h.core.stackMu.Lock()
	h.core.stack = []*ButtonPanel{panel}
	h.core.stackMu.Unlock()

	h.emit(StackResetEvent{NewPanel: panel})
	h.core.MarkForRedraw()
}

// DropStackToRoot pops panels until only the root remains.
func (h *CoreHandle) DropStackToRoot() {
	h.requireFeature(FeatureCoreMethods)
	for h.PopScreen() {
	}
}

// SavePanelsToValue serializes the root panel. An empty stack serializes to
// an empty raw panel rather than an error; clients cannot tell the cases
// apart.
func (h *CoreHandle) SavePanelsToValue() RawPanel {
	h.requireFeature(FeatureCoreMethods)
	root, ok := h.GetRootScreen()
	if !ok {
		return RawPanel{}
	}
	return SerializePanel(root)
}

// LoadPanelsFromValue deserializes a panel document and resets the stack to
// it.
func (h *CoreHandle) LoadPanelsFromValue(data []byte) error {
	h.requireFeature(FeatureCoreMethods)
	panel, err := DeserializePanel(data)
	if err != nil {
		return err
	}
	h.ResetStack(panel)
	return nil
}

// --- Buttons ---

func (h *CoreHandle) checkKey(key uint8) error {
	if key >= h.core.KeyCount() {
		return fmt.Errorf("key %d out of range for %d keys: %w", key, h.core.KeyCount(), ErrInvalidArgument)
	}
	return nil
}

// GetButton returns the shared button at key on the visible panel.
func (h *CoreHandle) GetButton(key uint8) (*UniqueButton, bool) {
	h.requireFeature(FeatureCoreMethods)
	screen, ok := h.GetCurrentScreen()
	if !ok {
		return nil, false
	}
	return screen.Button(key)
}

// SetButton places a button at key on the visible panel, replacing any
// previous occupant. Emits ButtonUpdated with old and new snapshots when the
// slot was taken, ButtonAdded otherwise.
func (h *CoreHandle) SetButton(key uint8, button *UniqueButton) error {
	h.requireFeature(FeatureCoreMethods)
	if err := h.checkKey(key); err != nil {
		return err
	}
	screen, ok := h.GetCurrentScreen()
	if !ok {
		return fmt.Errorf("no current screen: %w", ErrNotFound)
	}

	var previous *UniqueButton
	screen.Write(func(p *Panel) {
		previous = p.Buttons[key]
		p.Buttons[key] = button
	})

	if previous != nil {
		h.emit(ButtonUpdatedEvent{Key: key, Panel: screen, NewButton: button, OldButton: MakeButtonUnique(previous.ToRaw())})
	} else {
		h.emit(ButtonAddedEvent{Key: key, Panel: screen, AddedButton: button})
	}
	h.core.MarkForRedraw()
	return nil
}

// ClearButton removes the button at key on the visible panel.
func (h *CoreHandle) ClearButton(key uint8) error {
	h.requireFeature(FeatureCoreMethods)
	if err := h.checkKey(key); err != nil {
		return err
	}
	screen, ok := h.GetCurrentScreen()
	if !ok {
		return fmt.Errorf("no current screen: %w", ErrNotFound)
	}

	var removed *UniqueButton
	screen.Write(func(p *Panel) {
		removed = p.Buttons[key]
		delete(p.Buttons, key)
	})
	if removed == nil {
		return fmt.Errorf("no button at key %d: %w", key, ErrNotFound)
	}

	h.emit(ButtonDeletedEvent{Key: key, Panel: screen, DeletedButton: removed})
	h.core.MarkForRedraw()
	return nil
}

// NewButton places an empty button at key.
func (h *CoreHandle) NewButton(key uint8) error {
	return h.SetButton(key, MakeButtonUnique(nil))
}

// NewButtonFromComponent places an empty button at key and immediately adds
// the named component to it.
func (h *CoreHandle) NewButtonFromComponent(key uint8, componentName string) error {
	if _, ok := h.core.moduleManager.GetComponent(componentName); !ok {
		return fmt.Errorf("component %q: %w", componentName, ErrNotFound)
	}
	if err := h.SetButton(key, MakeButtonUnique(nil)); err != nil {
		return err
	}
	return h.AddComponent(key, componentName)
}

// AddComponent adds the named component to the button at key, delegating
// state initialization to the owning module.
func (h *CoreHandle) AddComponent(key uint8, componentName string) error {
	h.requireFeature(FeatureCoreMethods)
	screen, ok := h.GetCurrentScreen()
	if !ok {
		return fmt.Errorf("no current screen: %w", ErrNotFound)
	}
	button, ok := screen.Button(key)
	if !ok {
		return fmt.Errorf("no button at key %d: %w", key, ErrNotFound)
	}
	previous := MakeButtonUnique(button.ToRaw())

	entry, ok := h.core.moduleManager.GetComponent(componentName)
	if !ok {
		return fmt.Errorf("component %q: %w", componentName, ErrNotFound)
	}

	var callbackErr error
	alreadyExists := false
	button.Write(func(b *Button) {
		if b.HasComponent(componentName) {
			alreadyExists = true
			return
		}
		defer RecoverModulePanic(entry.Module.Name(), "add_component")
		callbackErr = entry.Module.AddComponent(h.CloneFor(entry.Module), b, componentName)
	})
	if alreadyExists {
		return fmt.Errorf("component %q: %w", componentName, ErrAlreadyExists)
	}
	if callbackErr != nil {
		return callbackErr
	}

	h.emit(ButtonUpdatedEvent{Key: key, Panel: screen, NewButton: button, OldButton: previous})
	h.core.MarkForRedraw()
	return nil
}

// RemoveComponent removes the named component from the button at key via
// the owning module.
func (h *CoreHandle) RemoveComponent(key uint8, componentName string) error {
	h.requireFeature(FeatureCoreMethods)
	screen, ok := h.GetCurrentScreen()
	if !ok {
		return fmt.Errorf("no current screen: %w", ErrNotFound)
	}
	button, ok := screen.Button(key)
	if !ok {
		return fmt.Errorf("no button at key %d: %w", key, ErrNotFound)
	}
	previous := MakeButtonUnique(button.ToRaw())

	entry, ok := h.core.moduleManager.GetComponent(componentName)
	if !ok {
		return fmt.Errorf("component %q: %w", componentName, ErrNotFound)
	}

	var callbackErr error
	missing := false
	button.Write(func(b *Button) {
		if !b.HasComponent(componentName) {
			missing = true
			return
		}
		defer RecoverModulePanic(entry.Module.Name(), "remove_component")
		callbackErr = entry.Module.RemoveComponent(h.CloneFor(entry.Module), b, componentName)
	})
	if missing {
		return fmt.Errorf("component %q: %w", componentName, ErrNotFound)
	}
	if callbackErr != nil {
		return callbackErr
	}

	h.emit(ButtonUpdatedEvent{Key: key, Panel: screen, NewButton: button, OldButton: previous})
	h.core.MarkForRedraw()
	return nil
}

// GetComponentValues returns the named component's value tree via the
// owning module.
func (h *CoreHandle) GetComponentValues(key uint8, componentName string) ([]values.UIValue, error) {
	h.requireFeature(FeatureCoreMethods)
	screen, ok := h.GetCurrentScreen()
	if !ok {
		return nil, fmt.Errorf("no current screen: %w", ErrNotFound)
	}
	button, ok := screen.Button(key)
	if !ok {
		return nil, fmt.Errorf("no button at key %d: %w", key, ErrNotFound)
	}
	entry, ok := h.core.moduleManager.GetComponent(componentName)
	if !ok {
		return nil, fmt.Errorf("component %q: %w", componentName, ErrNotFound)
	}

	var vals []values.UIValue
	missing := false
	button.Write(func(b *Button) {
		if !b.HasComponent(componentName) {
			missing = true
			return
		}
		defer RecoverModulePanic(entry.Module.Name(), "component_values")
		vals = entry.Module.ComponentValues(h.CloneFor(entry.Module), b, componentName)
	})
	if missing {
		return nil, fmt.Errorf("component %q: %w", componentName, ErrNotFound)
	}
	return vals, nil
}

// GetComponentValuesWithPaths returns the component's value tree flattened
// into path-annotated entries.
func (h *CoreHandle) GetComponentValuesWithPaths(key uint8, componentName string) ([]values.UIPathValue, error) {
	vals, err := h.GetComponentValues(key, componentName)
	if err != nil {
		return nil, err
	}
	return values.ToPathValues(vals), nil
}

// SetComponentValues writes a full value tree back through the owning
// module.
func (h *CoreHandle) SetComponentValues(key uint8, componentName string, vals []values.UIValue) error {
	h.requireFeature(FeatureCoreMethods)
	screen, ok := h.GetCurrentScreen()
	if !ok {
		return fmt.Errorf("no current screen: %w", ErrNotFound)
	}
	button, ok := screen.Button(key)
	if !ok {
		return fmt.Errorf("no button at key %d: %w", key, ErrNotFound)
	}
	previous := MakeButtonUnique(button.ToRaw())

	entry, ok := h.core.moduleManager.GetComponent(componentName)
	if !ok {
		return fmt.Errorf("component %q: %w", componentName, ErrNotFound)
	}

	var callbackErr error
	missing := false
	button.Write(func(b *Button) {
		if !b.HasComponent(componentName) {
			missing = true
			return
		}
		defer RecoverModulePanic(entry.Module.Name(), "set_component_value")
		callbackErr = entry.Module.SetComponentValue(h.CloneFor(entry.Module), b, componentName, vals)
	})
	if missing {
		return fmt.Errorf("component %q: %w", componentName, ErrNotFound)
	}
	if callbackErr != nil {
		return callbackErr
	}

	h.emit(ButtonUpdatedEvent{Key: key, Panel: screen, NewButton: button, OldButton: previous})
	h.core.MarkForRedraw()
	return nil
}

// SetComponentValueByPath applies one path-addressed edit: read the full
// tree from the module, edit it, write the full tree back. The module never
// sees deltas.
func (h *CoreHandle) SetComponentValueByPath(key uint8, componentName string, value values.UIPathValue) error {
	current, err := h.GetComponentValues(key, componentName)
	if err != nil {
		return err
	}
	edited, ok := values.SetByPath(current, value)
	if !ok {
		return fmt.Errorf("set %q on %q: %w", value.Path, componentName, ErrInvalidArgument)
	}
	return h.SetComponentValues(key, componentName, edited)
}

// AddElementComponentValue appends a template element to the array at path
// inside the component's value tree.
func (h *CoreHandle) AddElementComponentValue(key uint8, componentName, path string) error {
	current, err := h.GetComponentValues(key, componentName)
	if err != nil {
		return err
	}
	edited, ok := values.AddArrayElement(current, path)
	if !ok {
		return fmt.Errorf("add at %q on %q: %w", path, componentName, ErrInvalidArgument)
	}
	return h.SetComponentValues(key, componentName, edited)
}

// RemoveElementComponentValue removes element index from the array at path
// inside the component's value tree.
func (h *CoreHandle) RemoveElementComponentValue(key uint8, componentName, path string, index int) error {
	current, err := h.GetComponentValues(key, componentName)
	if err != nil {
		return err
	}
	edited, ok := values.RemoveArrayElement(current, path, index)
	if !ok {
		return fmt.Errorf("remove %d at %q on %q: %w", index, path, componentName, ErrInvalidArgument)
	}
	return h.SetComponentValues(key, componentName, edited)
}

// PasteButton builds a fresh button from a reference snapshot: every module
// owning any component declared on the reference gets one PasteComponent
// call to translate its own state into the new button. Modules owning none
// of the reference's components are not consulted.
func (h *CoreHandle) PasteButton(key uint8, reference RawButton) error {
	h.requireFeature(FeatureCoreMethods)
	refButton := NewButton()
	refButton.FromRaw(reference)

	next := NewButton()
	responsible := h.core.moduleManager.GetModulesForDeclaredComponents(refButton.ComponentNames())
	for _, module := range responsible {
		func() {
			defer RecoverModulePanic(module.Name(), "paste_component")
			if err := module.PasteComponent(h.CloneFor(module), refButton, next); err != nil {
				log.Warnf("module '%s' failed to paste: %v", module.Name(), err)
			}
		}()
	}

	return h.SetButton(key, MakeButtonUnique(next.ToRaw()))
}

// --- Input ---

// ButtonDown broadcasts a key press to all modules.
func (h *CoreHandle) ButtonDown(key uint8) {
	h.requireFeature(FeatureCoreMethods)
	h.emit(ButtonDownEvent{Key: key})
}

// ButtonUp broadcasts a key release to all modules, then triggers the
// button action.
func (h *CoreHandle) ButtonUp(key uint8) {
	h.requireFeature(FeatureCoreMethods)
	h.emit(ButtonUpEvent{Key: key})
	h.ButtonAction(key)
}

// ButtonAction dispatches an action event to the modules owning components
// on the pressed button, then marks the device dirty so reactive modules
// repaint promptly.
func (h *CoreHandle) ButtonAction(key uint8) {
	h.requireFeature(FeatureCoreMethods)
	screen, ok := h.GetCurrentScreen()
	if !ok {
		return
	}
	button, ok := screen.Button(key)
	if !ok {
		return
	}

	ev := ButtonActionEvent{Key: key, Panel: screen, PressedButton: button}
	h.SendCoreEventToModules(ev, h.core.moduleManager.GetModulesForComponents(button.ComponentNames()))
	h.core.EmitGlobalEvent(CoreEventToGlobal(ev, h.core.serial))
	h.core.MarkForRedraw()
}

// --- Rendering façade ---

// GetButtonImages renders the visible panel off-device and returns the
// images by key.
func (h *CoreHandle) GetButtonImages() map[uint8]image.Image {
	if h.core.renderer == nil {
		return nil
	}
	return h.core.renderer.RenderScreen(h)
}

// GetButtonImage renders a single key off-device.
func (h *CoreHandle) GetButtonImage(key uint8) (image.Image, error) {
	if h.core.renderer == nil {
		return nil, fmt.Errorf("no renderer attached: %w", ErrUnsupported)
	}
	if err := h.checkKey(key); err != nil {
		return nil, err
	}
	return h.core.renderer.RenderKey(h, key)
}

// --- Device state ---

// SetBrightness sets the backlight, persists the level into the device
// config and announces the change.
func (h *CoreHandle) SetBrightness(brightness uint8) error {
	h.requireFeature(FeatureCoreMethods)
	if brightness > 100 {
		return fmt.Errorf("brightness %d out of range: %w", brightness, ErrInvalidArgument)
	}
	h.core.SendCommands([]streamdeck.Command{streamdeck.SetBrightness{Brightness: brightness}})

	h.core.stateMu.Lock()
	h.core.brightness = brightness
	h.core.stateMu.Unlock()

	if cfg, ok := h.core.configStore.DeviceConfig(h.core.serial); ok {
		cfg.Brightness = brightness
		h.core.configStore.SetDeviceConfig(cfg)
	}

	b := brightness
	h.core.EmitGlobalEvent(SDGlobalEvent{
		Type:         GlobalBrightnessChanged,
		SerialNumber: h.core.serial,
		Brightness:   &b,
	})
	return nil
}

// CommitChanges folds the live root panel and brightness back into the
// device config and stamps the commit time. Persisting the config is a
// separate save request.
func (h *CoreHandle) CommitChanges() {
	h.requireFeature(FeatureCoreMethods)
	cfg, ok := h.core.configStore.DeviceConfig(h.core.serial)
	if !ok {
		cfg = DeviceConfig{SerialNumber: h.core.serial}
	}
	cfg.RootPanel = h.SavePanelsToValue()
	cfg.Brightness = h.core.Brightness()
	h.core.configStore.SetDeviceConfig(cfg)

	h.core.stateMu.Lock()
	h.core.lastCommit = time.Now()
	h.core.stateMu.Unlock()

	monitoring.GetGlobalMetrics().ConfigCommitted(h.core.serial)
}

// --- Device images ---

// ListImages returns the uploaded device images, identifier to base64 PNG.
func (h *CoreHandle) ListImages() map[string]string {
	h.requireFeature(FeatureConfig)
	cfg, ok := h.core.configStore.DeviceConfig(h.core.serial)
	if !ok || cfg.Images == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(cfg.Images))
	for id, data := range cfg.Images {
		out[id] = data
	}
	return out
}

// AddImage validates and stores a base64 PNG, returning its new identifier.
func (h *CoreHandle) AddImage(imageData string) (string, error) {
	h.requireFeature(FeatureConfig)
	decoded, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		return "", fmt.Errorf("image data: %w: %v", ErrDecode, err)
	}
	if _, err := png.Decode(bytes.NewReader(decoded)); err != nil {
		return "", fmt.Errorf("image data: %w: %v", ErrDecode, err)
	}

	cfg, ok := h.core.configStore.DeviceConfig(h.core.serial)
	if !ok {
		cfg = DeviceConfig{SerialNumber: h.core.serial}
	}
	if cfg.Images == nil {
		cfg.Images = make(map[string]string)
	}
	id := uuid.NewString()
	cfg.Images[id] = imageData
	h.core.configStore.SetDeviceConfig(cfg)
	return id, nil
}

// RemoveImage drops an uploaded image by identifier.
func (h *CoreHandle) RemoveImage(id string) error {
	h.requireFeature(FeatureConfig)
	cfg, ok := h.core.configStore.DeviceConfig(h.core.serial)
	if !ok {
		return fmt.Errorf("device %q config: %w", h.core.serial, ErrNotFound)
	}
	if _, ok := cfg.Images[id]; !ok {
		return fmt.Errorf("image %q: %w", id, ErrNotFound)
	}
	delete(cfg.Images, id)
	h.core.configStore.SetDeviceConfig(cfg)
	return nil
}

// --- Module settings ---

// GetModuleValues returns a module's daemon-wide settings, path-annotated.
func (h *CoreHandle) GetModuleValues(moduleName string) ([]values.UIPathValue, error) {
	h.requireFeature(FeatureModuleManager)
	module, ok := h.core.moduleManager.GetModule(moduleName)
	if !ok {
		return nil, fmt.Errorf("module %q: %w", moduleName, ErrNotFound)
	}
	return values.ToPathValues(module.GlobalSettings(h.CloneFor(module))), nil
}

// SetModuleValue applies one path-addressed edit to a module's settings.
func (h *CoreHandle) SetModuleValue(moduleName string, value values.UIPathValue) error {
	return h.editModuleValues(moduleName, func(current []values.UIValue) ([]values.UIValue, bool) {
		return values.SetByPath(current, value)
	})
}

// AddModuleValue appends a template element to an array in a module's
// settings.
func (h *CoreHandle) AddModuleValue(moduleName, path string) error {
	return h.editModuleValues(moduleName, func(current []values.UIValue) ([]values.UIValue, bool) {
		return values.AddArrayElement(current, path)
	})
}

// RemoveModuleValue removes an array element from a module's settings.
func (h *CoreHandle) RemoveModuleValue(moduleName, path string, index int) error {
	return h.editModuleValues(moduleName, func(current []values.UIValue) ([]values.UIValue, bool) {
		return values.RemoveArrayElement(current, path, index)
	})
}

func (h *CoreHandle) editModuleValues(moduleName string, edit func([]values.UIValue) ([]values.UIValue, bool)) error {
	h.requireFeature(FeatureModuleManager)
	module, ok := h.core.moduleManager.GetModule(moduleName)
	if !ok {
		return fmt.Errorf("module %q: %w", moduleName, ErrNotFound)
	}
	handle := h.CloneFor(module)
	edited, ok := edit(module.GlobalSettings(handle))
	if !ok {
		return fmt.Errorf("module %q settings: %w", moduleName, ErrInvalidArgument)
	}
	return module.SetGlobalSettings(handle, edited)
}
