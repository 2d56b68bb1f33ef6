package core

import (
	"fmt"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RawButton is the serialized form of a button: component name to the
// component's opaque JSON state. It is the shape that travels over the
// socket, into configs and inside event payloads.
type RawButton map[string]jsoniter.RawMessage

// Clone deep-copies the raw button.
func (r RawButton) Clone() RawButton {
	if r == nil {
		return nil
	}
	out := make(RawButton, len(r))
	for name, blob := range r {
		out[name] = append(jsoniter.RawMessage(nil), blob...)
	}
	return out
}

// Button is a collection of components occupying one key slot. The core
// never interprets component state; it stores the opaque blob and routes all
// interpretation to the owning module.
type Button struct {
	components RawButton
}

// NewButton returns an empty button.
func NewButton() *Button {
	return &Button{components: make(RawButton)}
}

// ComponentNames returns the names of all components on the button, sorted
// for deterministic iteration.
func (b *Button) ComponentNames() []string {
	names := make([]string, 0, len(b.components))
	for name := range b.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasComponent reports whether the button carries the named component.
func (b *Button) HasComponent(name string) bool {
	_, ok := b.components[name]
	return ok
}

// Component returns the raw state of the named component.
func (b *Button) Component(name string) (jsoniter.RawMessage, bool) {
	blob, ok := b.components[name]
	return blob, ok
}

// SetComponent stores raw state under the component name, creating or
// replacing it.
func (b *Button) SetComponent(name string, state jsoniter.RawMessage) {
	if b.components == nil {
		b.components = make(RawButton)
	}
	b.components[name] = state
}

// RemoveComponent drops the named component. Removing a component the button
// does not have is a no-op.
func (b *Button) RemoveComponent(name string) {
	delete(b.components, name)
}

// ToRaw snapshots the button to its serialized form. The result shares no
// memory with the button.
func (b *Button) ToRaw() RawButton {
	return b.components.Clone()
}

// FromRaw replaces the button's contents with a copy of raw.
func (b *Button) FromRaw(raw RawButton) {
	b.components = raw.Clone()
	if b.components == nil {
		b.components = make(RawButton)
	}
}

// ParseButtonComponent decodes the named component's state into T.
// Returns ErrNotFound if the button does not carry the component.
func ParseButtonComponent[T any](b *Button, name string) (T, error) {
	var out T
	blob, ok := b.Component(name)
	if !ok {
		return out, fmt.Errorf("component %q: %w", name, ErrNotFound)
	}
	if err := json.Unmarshal(blob, &out); err != nil {
		return out, fmt.Errorf("component %q: %w: %v", name, ErrDecode, err)
	}
	return out, nil
}

// StoreButtonComponent encodes v and stores it as the named component's state.
func StoreButtonComponent[T any](b *Button, name string, v T) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("component %q: %w: %v", name, ErrDecode, err)
	}
	b.SetComponent(name, blob)
	return nil
}

// UniqueButton is a button with shared ownership and a reader-writer lock,
// so the render worker can read concurrently while a single editor writes.
type UniqueButton struct {
	mu sync.RWMutex
	b  Button
}

// MakeButtonUnique wraps a raw snapshot in a fresh shared button.
func MakeButtonUnique(raw RawButton) *UniqueButton {
	u := &UniqueButton{}
	u.b.FromRaw(raw)
	return u
}

// Read runs fn with the button read-locked. fn must not retain the button
// pointer past its return.
func (u *UniqueButton) Read(fn func(b *Button)) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	fn(&u.b)
}

// Write runs fn with the button write-locked. Module callbacks that edit the
// button run under this lock; a callback must not take the same button's
// lock again.
func (u *UniqueButton) Write(fn func(b *Button)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fn(&u.b)
}

// ToRaw snapshots the button under its read lock.
func (u *UniqueButton) ToRaw() RawButton {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.b.ToRaw()
}

// ComponentNames returns the component names under the read lock.
func (u *UniqueButton) ComponentNames() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.b.ComponentNames()
}

// ParseUniqueButtonComponent decodes the named component of a shared button
// under its read lock.
func ParseUniqueButtonComponent[T any](u *UniqueButton, name string) (T, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return ParseButtonComponent[T](&u.b, name)
}
