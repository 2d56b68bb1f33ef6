// Package fonts is the daemon's font registry. Font file loading is an
// external concern; whoever loads faces registers them here by name, and the
// render pipeline looks them up when drawing button text.
//
// A built-in bitmap face is registered under DefaultFont so text always has
// a fallback even with no font files installed.
package fonts

import (
	"sort"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// DefaultFont is the name of the always-available built-in face.
const DefaultFont = "default"

var (
	mu    sync.RWMutex
	faces = map[string]font.Face{
		DefaultFont: basicfont.Face7x13,
	}
)

// Register installs a face under name, replacing any previous face with the
// same name.
func Register(name string, face font.Face) {
	mu.Lock()
	defer mu.Unlock()
	faces[name] = face
}

// Get returns the named face.
func Get(name string) (font.Face, bool) {
	mu.RLock()
	defer mu.RUnlock()
	face, ok := faces[name]
	return face, ok
}

// Names returns all registered font names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(faces))
	for name := range faces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
