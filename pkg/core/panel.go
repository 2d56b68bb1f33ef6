package core

import (
	"fmt"
	"sync"
)

// Panel is a single screen of buttons: a mapping from key index to button
// plus display metadata. One panel is visible per device at a time.
type Panel struct {
	// DisplayName labels the panel in stack listings.
	DisplayName string

	// Renderers lists custom renderer names this panel permits, in order.
	Renderers []string

	// Buttons maps key index to the button occupying that slot. Keys with
	// no entry render as cleared.
	Buttons map[uint8]*UniqueButton
}

// RawPanel is the serialized form of a panel.
type RawPanel struct {
	DisplayName string             `json:"display_name"`
	Renderers   []string           `json:"renderers,omitempty"`
	Buttons     map[uint8]RawButton `json:"buttons"`
}

// Clone deep-copies the raw panel.
func (r RawPanel) Clone() RawPanel {
	out := RawPanel{DisplayName: r.DisplayName}
	if len(r.Renderers) > 0 {
		out.Renderers = append([]string(nil), r.Renderers...)
	}
	if r.Buttons != nil {
		out.Buttons = make(map[uint8]RawButton, len(r.Buttons))
		for key, b := range r.Buttons {
			out.Buttons[key] = b.Clone()
		}
	}
	return out
}

// ButtonPanel is a panel with shared ownership and a reader-writer lock.
type ButtonPanel struct {
	mu sync.RWMutex
	p  Panel
}

// NewButtonPanel returns an empty shared panel with the given display name.
func NewButtonPanel(displayName string) *ButtonPanel {
	return &ButtonPanel{p: Panel{
		DisplayName: displayName,
		Buttons:     make(map[uint8]*UniqueButton),
	}}
}

// Read runs fn with the panel read-locked.
func (bp *ButtonPanel) Read(fn func(p *Panel)) {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	fn(&bp.p)
}

// Write runs fn with the panel write-locked.
func (bp *ButtonPanel) Write(fn func(p *Panel)) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	fn(&bp.p)
}

// DisplayName returns the panel's display name under the read lock.
func (bp *ButtonPanel) DisplayName() string {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	return bp.p.DisplayName
}

// Button returns the shared button at key, if any.
func (bp *ButtonPanel) Button(key uint8) (*UniqueButton, bool) {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	b, ok := bp.p.Buttons[key]
	return b, ok
}

// Snapshot returns the current key to button mapping. The map is a copy;
// the buttons are the live shared handles.
func (bp *ButtonPanel) Snapshot() map[uint8]*UniqueButton {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	out := make(map[uint8]*UniqueButton, len(bp.p.Buttons))
	for key, b := range bp.p.Buttons {
		out[key] = b
	}
	return out
}

// SerializePanel snapshots the panel and all of its buttons to raw form.
func SerializePanel(bp *ButtonPanel) RawPanel {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	raw := RawPanel{
		DisplayName: bp.p.DisplayName,
		Buttons:     make(map[uint8]RawButton, len(bp.p.Buttons)),
	}
	if len(bp.p.Renderers) > 0 {
		raw.Renderers = append([]string(nil), bp.p.Renderers...)
	}
	for key, b := range bp.p.Buttons {
		raw.Buttons[key] = b.ToRaw()
	}
	return raw
}

// MakePanelUnique builds a live shared panel from its raw form.
func MakePanelUnique(raw RawPanel) *ButtonPanel {
	bp := NewButtonPanel(raw.DisplayName)
	if len(raw.Renderers) > 0 {
		bp.p.Renderers = append([]string(nil), raw.Renderers...)
	}
	for key, b := range raw.Buttons {
		bp.p.Buttons[key] = MakeButtonUnique(b)
	}
	return bp
}

// DeserializePanel parses a JSON document into a live shared panel.
func DeserializePanel(data []byte) (*ButtonPanel, error) {
	var raw RawPanel
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("panel: %w: %v", ErrDecode, err)
	}
	return MakePanelUnique(raw), nil
}
