package core

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ComponentEntry pairs a component definition with its owning module.
type ComponentEntry struct {
	Definition ComponentDefinition
	Module     SDModule
}

// ModuleManager is the registry of modules and the components they own. A
// module may own multiple component names; each component name is owned by
// exactly one module. Registrations live for the process lifetime.
type ModuleManager struct {
	mu         sync.RWMutex
	modules    map[string]SDModule
	components map[string]ComponentEntry
}

// NewModuleManager returns an empty registry.
func NewModuleManager() *ModuleManager {
	return &ModuleManager{
		modules:    make(map[string]SDModule),
		components: make(map[string]ComponentEntry),
	}
}

// RegisterModule adds a module and claims its component names.
//
// Re-registering the same module name with identical metadata is a no-op.
// Conflicting metadata for an existing name, or a component name already
// owned by a different module, is an error and leaves the registry
// unchanged.
func (m *ModuleManager) RegisterModule(module SDModule) error {
	name := module.Name()

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.modules[name]; ok {
		if reflect.DeepEqual(existing.Metadata(), module.Metadata()) {
			return nil
		}
		return fmt.Errorf("module %q: %w", name, ErrAlreadyExists)
	}

	comps := module.Components()
	for comp := range comps {
		if entry, ok := m.components[comp]; ok {
			return fmt.Errorf("component %q claimed by both %q and %q: %w",
				comp, entry.Module.Name(), name, ErrConflictingOwnership)
		}
	}

	m.modules[name] = module
	for comp, def := range comps {
		m.components[comp] = ComponentEntry{Definition: def, Module: module}
	}
	return nil
}

// GetModule returns the named module.
func (m *ModuleManager) GetModule(name string) (SDModule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mod, ok := m.modules[name]
	return mod, ok
}

// GetModuleList returns every registered module, sorted by name.
func (m *ModuleManager) GetModuleList() []SDModule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.modules))
	for name := range m.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]SDModule, len(names))
	for i, name := range names {
		out[i] = m.modules[name]
	}
	return out
}

// ReadComponentMap returns a snapshot of component name to owner.
func (m *ModuleManager) ReadComponentMap() map[string]ComponentEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ComponentEntry, len(m.components))
	for name, entry := range m.components {
		out[name] = entry
	}
	return out
}

// GetComponent returns the entry for a single component name.
func (m *ModuleManager) GetComponent(name string) (ComponentEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.components[name]
	return entry, ok
}

// ListComponents returns the namespaced component listing: module name to
// the component definitions it owns.
func (m *ModuleManager) ListComponents() map[string]map[string]ComponentDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]ComponentDefinition, len(m.modules))
	for name, mod := range m.modules {
		out[name] = mod.Components()
	}
	return out
}

// GetModulesForComponents returns the deduplicated set of modules whose
// owned component names intersect names. Used to dispatch per-button
// actions.
func (m *ModuleManager) GetModulesForComponents(names []string) []SDModule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]SDModule)
	for _, name := range names {
		if entry, ok := m.components[name]; ok {
			seen[entry.Module.Name()] = entry.Module
		}
	}
	return sortedModules(seen)
}

// GetModulesForRendering returns the subset of GetModulesForComponents that
// declares the rendering feature and implements RenderingModule.
func (m *ModuleManager) GetModulesForRendering(names []string) []RenderingModule {
	var out []RenderingModule
	for _, mod := range m.GetModulesForComponents(names) {
		rm, ok := mod.(RenderingModule)
		if !ok {
			continue
		}
		if featureListContains(mod.Metadata().UsedFeatures, FeatureRendering.Name) {
			out = append(out, rm)
		}
	}
	return out
}

// GetModulesForDeclaredComponents returns modules that declare ownership of
// any of names, whether or not a button currently carries them. Paste
// iterates the source button's components with this.
func (m *ModuleManager) GetModulesForDeclaredComponents(names []string) []SDModule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]SDModule)
	for _, mod := range m.modules {
		comps := mod.Components()
		for _, name := range names {
			if _, ok := comps[name]; ok {
				seen[mod.Name()] = mod
				break
			}
		}
	}
	return sortedModules(seen)
}

func sortedModules(set map[string]SDModule) []SDModule {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]SDModule, len(names))
	for i, name := range names {
		out[i] = set[name]
	}
	return out
}
