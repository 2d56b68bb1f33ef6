// Package streamdeck provides the HID transport edge of the daemon: the
// command set the render pipeline emits, the writer worker that batches
// commands onto a device, and enumeration of connected panels.
//
// The physical device sits behind the Deck interface so the daemon core and
// its tests never touch USB directly; the hid-backed implementation lives in
// deck.go.
package streamdeck

import "image"

// Command is one unit of work for a device writer. Commands are produced by
// the render pipeline and flushed to the device in batches.
type Command interface {
	deviceCommand()
}

// SetButtonImage displays an image on a key. The image must already be at
// the device's advertised key size, in RGBA.
type SetButtonImage struct {
	Key   uint8
	Image image.Image
}

// ClearButtonImage blanks a key.
type ClearButtonImage struct {
	Key uint8
}

// SetBrightness sets the panel backlight, 0..100.
type SetBrightness struct {
	Brightness uint8
}

func (SetButtonImage) deviceCommand()   {}
func (ClearButtonImage) deviceCommand() {}
func (SetBrightness) deviceCommand()    {}
