package core

import (
	"image"
	"image/draw"

	"github.com/streamduck-org/streamduck/pkg/values"
)

// Feature is a named, versioned capability of the host API. Modules declare
// the features they use; versions are carried in metadata but not compared,
// the feature gate checks names only.
type Feature struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PluginMetadata describes a module to the registry and to clients.
type PluginMetadata struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Homepage    string    `json:"homepage,omitempty"`
	UsedFeatures []Feature `json:"used_features"`
}

// ComponentDefinition describes one component a module offers: how editors
// should present it and the default values it starts from.
type ComponentDefinition struct {
	DisplayName   string            `json:"display_name"`
	Description   string            `json:"description"`
	DefaultLooks  []values.UIValue  `json:"default_looks,omitempty"`
	ExposedFields []values.UIValue  `json:"exposed_fields,omitempty"`
}

// SDModule is the contract every module implements. A module contributes one
// or more components, interprets their state, and participates in events.
//
// All callbacks receive a CoreHandle carrying the module's own identity, so
// calls the module makes back into the core are feature-checked against its
// declared feature list. Callbacks that receive a *Button run under that
// button's write lock; they must not take the same button's lock again.
//
// Embed BaseModule to implement only the callbacks a module cares about.
type SDModule interface {
	// Name returns the module's unique name.
	Name() string

	// Metadata returns the module's registration metadata, including its
	// declared feature list.
	Metadata() PluginMetadata

	// Components returns the component definitions this module owns,
	// keyed by component name.
	Components() map[string]ComponentDefinition

	// AddComponent initializes the named component's state on the button.
	AddComponent(h *CoreHandle, b *Button, name string) error

	// RemoveComponent tears the named component off the button.
	RemoveComponent(h *CoreHandle, b *Button, name string) error

	// PasteComponent translates this module's components from reference
	// into next. Modules owning state with internal references rewrite
	// them here instead of being byte-copied.
	PasteComponent(h *CoreHandle, reference *Button, next *Button) error

	// ComponentValues renders the named component's state as a UI value
	// tree for editors.
	ComponentValues(h *CoreHandle, b *Button, name string) []values.UIValue

	// SetComponentValue applies an edited value tree back onto the named
	// component's state. The core always sends the full list; deltas are
	// not exposed.
	SetComponentValue(h *CoreHandle, b *Button, name string, vals []values.UIValue) error

	// GlobalSettings returns the module's daemon-wide settings tree.
	GlobalSettings(h *CoreHandle) []values.UIValue

	// SetGlobalSettings applies an edited settings tree.
	SetGlobalSettings(h *CoreHandle, vals []values.UIValue) error

	// Event delivers a core event. Dispatch is concurrent per module and
	// panics are isolated, but a module should still return promptly.
	Event(h *CoreHandle, ev SDCoreEvent)
}

// RenderingModule is implemented by modules that declare the rendering
// feature and want to decorate button foregrounds during a render pass.
type RenderingModule interface {
	SDModule

	// RenderButton draws the module's overlay onto img, already holding
	// the composited background and text for key.
	RenderButton(h *CoreHandle, key uint8, b *UniqueButton, img draw.Image)
}

// CustomRenderer replaces the whole composition for buttons whose renderer
// component names it. Returning ok=false substitutes the placeholder
// texture.
type CustomRenderer interface {
	Name() string
	Representation(h *CoreHandle, key uint8, b *UniqueButton) (img image.Image, ok bool)
}

// BaseModule provides no-op implementations of the optional SDModule
// callbacks. Embed it and override what the module needs.
type BaseModule struct{}

func (BaseModule) Components() map[string]ComponentDefinition { return nil }

func (BaseModule) AddComponent(*CoreHandle, *Button, string) error { return nil }

func (BaseModule) RemoveComponent(*CoreHandle, *Button, string) error { return nil }

func (BaseModule) PasteComponent(*CoreHandle, *Button, *Button) error { return nil }

func (BaseModule) ComponentValues(*CoreHandle, *Button, string) []values.UIValue { return nil }

func (BaseModule) SetComponentValue(*CoreHandle, *Button, string, []values.UIValue) error {
	return nil
}

func (BaseModule) GlobalSettings(*CoreHandle) []values.UIValue { return nil }

func (BaseModule) SetGlobalSettings(*CoreHandle, []values.UIValue) error { return nil }

func (BaseModule) Event(*CoreHandle, SDCoreEvent) {}
