// Package render implements the per-device render pipeline: composition of
// button images from renderer components, the two-level render/image cache,
// the placeholder textures, and the worker that feeds composited images to
// the device writer.
//
// The package also hosts the built-in core module that owns the "renderer"
// component every rendered button carries.
package render

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RendererComponentName is the component name the core module owns.
const RendererComponentName = "renderer"

// Color is an 8-bit RGBA quadruple in wire order.
type Color [4]uint8

// TextAlignment positions a text entry horizontally.
type TextAlignment string

const (
	AlignLeft   TextAlignment = "left"
	AlignCenter TextAlignment = "center"
	AlignRight  TextAlignment = "right"
)

// Background kinds, the "type" tag of ButtonBackground.
const (
	BackgroundSolid              = "solid"
	BackgroundHorizontalGradient = "horizontal_gradient"
	BackgroundVerticalGradient   = "vertical_gradient"
	BackgroundImage              = "image"
)

// ButtonBackground is the tagged background of a button: a solid fill, a
// two-color gradient, or an image loaded from disk.
type ButtonBackground struct {
	Type string `json:"type"`

	// Color is the fill for solid backgrounds.
	Color Color `json:"color,omitempty"`

	// Start and End are the gradient endpoints.
	Start Color `json:"start,omitempty"`
	End   Color `json:"end,omitempty"`

	// Path locates the image for image backgrounds; DisableCaching
	// bypasses the image cache for it.
	Path           string `json:"path,omitempty"`
	DisableCaching bool   `json:"disable_caching,omitempty"`
}

// ButtonTextShadow is an optional drop shadow behind a text entry.
type ButtonTextShadow struct {
	OffsetX int   `json:"offset_x"`
	OffsetY int   `json:"offset_y"`
	Color   Color `json:"color"`
}

// ButtonText is one text overlay on a button.
type ButtonText struct {
	Text      string            `json:"text"`
	Font      string            `json:"font"`
	ScaleX    float64           `json:"scale_x"`
	ScaleY    float64           `json:"scale_y"`
	Alignment TextAlignment     `json:"alignment"`
	Padding   int               `json:"padding"`
	OffsetX   float64           `json:"offset_x"`
	OffsetY   float64           `json:"offset_y"`
	Color     Color             `json:"color"`
	Shadow    *ButtonTextShadow `json:"shadow,omitempty"`
}

// RendererComponent is the component driving composition of a button image.
type RendererComponent struct {
	Background ButtonBackground `json:"background"`
	Text       []ButtonText     `json:"text,omitempty"`

	// Renderer names a custom renderer registered on the device; when
	// non-empty the custom renderer replaces composition entirely.
	Renderer string `json:"renderer,omitempty"`

	// PluginBlacklist lists modules excluded from decorating this button.
	PluginBlacklist []string `json:"plugin_blacklist,omitempty"`

	// ToCache opts the composited image into the render cache.
	ToCache bool `json:"to_cache"`
}

// DefaultRendererComponent is the state a freshly added renderer component
// starts from: a white solid background, no text, caching on.
func DefaultRendererComponent() RendererComponent {
	return RendererComponent{
		Background: ButtonBackground{Type: BackgroundSolid, Color: Color{255, 255, 255, 255}},
		ToCache:    true,
	}
}

// HashRenderer computes the stable 64-bit render-cache key of a component.
//
// The hash is a pure function of the fields that affect pixels from the
// pipeline's point of view: the background, the stable parts of each text
// entry, and the caching flag. Per-frame transient fields (scale, offset)
// are excluded so GUI nudges don't churn the cache, matching the upstream
// behavior.
func HashRenderer(r *RendererComponent) uint64 {
	d := xxhash.New()
	writeString(d, r.Background.Type)
	d.Write(r.Background.Color[:])
	d.Write(r.Background.Start[:])
	d.Write(r.Background.End[:])
	writeString(d, r.Background.Path)
	writeBool(d, r.Background.DisableCaching)
	for _, t := range r.Text {
		writeString(d, t.Text)
		writeString(d, t.Font)
		writeString(d, string(t.Alignment))
		writeInt(d, int64(t.Padding))
		d.Write(t.Color[:])
		if t.Shadow != nil {
			writeInt(d, int64(t.Shadow.OffsetX))
			writeInt(d, int64(t.Shadow.OffsetY))
			d.Write(t.Shadow.Color[:])
		}
	}
	writeString(d, r.Renderer)
	writeBool(d, r.ToCache)
	return d.Sum64()
}

// HashPath computes the image-cache key of an on-disk path.
func HashPath(path string) uint64 {
	return xxhash.Sum64String(path)
}

func writeString(d *xxhash.Digest, s string) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
	d.Write(lenBuf[:])
	d.WriteString(s)
}

func writeInt(d *xxhash.Digest, v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	d.Write(buf[:])
}

func writeBool(d *xxhash.Digest, v bool) {
	if v {
		d.Write([]byte{1})
	} else {
		d.Write([]byte{0})
	}
}

// validateAlignment normalizes the empty alignment to center and rejects
// unknown tags.
func validateAlignment(a TextAlignment) (TextAlignment, error) {
	switch a {
	case "":
		return AlignCenter, nil
	case AlignLeft, AlignCenter, AlignRight:
		return a, nil
	default:
		return "", fmt.Errorf("unknown text alignment %q", a)
	}
}
