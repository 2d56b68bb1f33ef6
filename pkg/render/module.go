package render

import (
	"fmt"
	"sync"

	"github.com/streamduck-org/streamduck/pkg/core"
	"github.com/streamduck-org/streamduck/pkg/values"
)

// CoreModuleName is the registry name of the built-in module.
const CoreModuleName = "core"

// CoreModule is the built-in module that owns the "renderer" component. It
// also carries the device-wide renderer plugin blacklist as its global
// settings, which the pipeline consults on every pass.
type CoreModule struct {
	core.BaseModule

	mu              sync.RWMutex
	pluginBlacklist []string
}

// NewCoreModule returns the built-in module, ready to register.
func NewCoreModule() *CoreModule {
	return &CoreModule{}
}

func (m *CoreModule) Name() string { return CoreModuleName }

func (m *CoreModule) Metadata() core.PluginMetadata {
	return core.PluginMetadata{
		Name:         CoreModuleName,
		Version:      "0.2",
		Description:  "Built-in module providing the renderer component",
		Author:       "streamduck",
		UsedFeatures: core.SupportedFeatures,
	}
}

func (m *CoreModule) Components() map[string]core.ComponentDefinition {
	return map[string]core.ComponentDefinition{
		RendererComponentName: {
			DisplayName: "Renderer",
			Description: "Controls how the button looks",
		},
	}
}

func (m *CoreModule) AddComponent(_ *core.CoreHandle, b *core.Button, name string) error {
	if name != RendererComponentName {
		return fmt.Errorf("component %q: %w", name, core.ErrNotFound)
	}
	return core.StoreButtonComponent(b, name, DefaultRendererComponent())
}

func (m *CoreModule) RemoveComponent(_ *core.CoreHandle, b *core.Button, name string) error {
	if name != RendererComponentName {
		return fmt.Errorf("component %q: %w", name, core.ErrNotFound)
	}
	b.RemoveComponent(name)
	return nil
}

// PasteComponent copies the renderer state verbatim; it holds no pointers
// that need rewriting on paste.
func (m *CoreModule) PasteComponent(_ *core.CoreHandle, reference, next *core.Button) error {
	blob, ok := reference.Component(RendererComponentName)
	if !ok {
		return nil
	}
	next.SetComponent(RendererComponentName, append([]byte(nil), blob...))
	return nil
}

func (m *CoreModule) ComponentValues(_ *core.CoreHandle, b *core.Button, name string) []values.UIValue {
	component, err := core.ParseButtonComponent[RendererComponent](b, name)
	if err != nil {
		component = DefaultRendererComponent()
	}
	return componentToValues(&component)
}

func (m *CoreModule) SetComponentValue(_ *core.CoreHandle, b *core.Button, name string, vals []values.UIValue) error {
	component, err := valuesToComponent(vals)
	if err != nil {
		return err
	}
	return core.StoreButtonComponent(b, name, component)
}

// GlobalSettings exposes the device-wide renderer blacklist.
func (m *CoreModule) GlobalSettings(_ *core.CoreHandle) []values.UIValue {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elements := make([][]values.UIValue, 0, len(m.pluginBlacklist))
	for _, name := range m.pluginBlacklist {
		elements = append(elements, []values.UIValue{{
			Name: "module", DisplayName: "Module", Value: values.Text{Value: name},
		}})
	}
	var elems [][]values.UIValue
	if len(elements) > 0 {
		elems = elements
	}
	return []values.UIValue{
		{
			Name:        "plugin_blacklist",
			DisplayName: "Renderer plugin blacklist",
			Description: "Modules that must not decorate buttons on this daemon",
			Value: values.Array{
				Template: []values.UIValue{{
					Name: "module", DisplayName: "Module", Value: values.Text{},
				}},
				Elements: elems,
			},
		},
	}
}

func (m *CoreModule) SetGlobalSettings(_ *core.CoreHandle, vals []values.UIValue) error {
	v, err := values.GetByPath(vals, "plugin_blacklist")
	if err != nil {
		return fmt.Errorf("settings: %w", core.ErrInvalidArgument)
	}
	arr, ok := v.Value.(values.Array)
	if !ok {
		return fmt.Errorf("settings: %w", core.ErrInvalidArgument)
	}

	var blacklist []string
	for _, elem := range arr.Elements {
		for _, field := range elem {
			if text, ok := field.Value.(values.Text); ok && text.Value != "" {
				blacklist = append(blacklist, text.Value)
			}
		}
	}

	m.mu.Lock()
	m.pluginBlacklist = blacklist
	m.mu.Unlock()
	return nil
}

// PluginBlacklist returns the device-wide renderer blacklist.
func (m *CoreModule) PluginBlacklist() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.pluginBlacklist...)
}
