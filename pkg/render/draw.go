package render

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/streamduck-org/streamduck/pkg/fonts"
)

// ImageFromSolid returns a size-sized image filled with c.
func ImageFromSolid(size image.Point, c Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	fill := color.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	return img
}

// ImageFromHorizGradient returns a left-to-right linear gradient.
func ImageFromHorizGradient(size image.Point, start, end Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	for x := 0; x < size.X; x++ {
		t := 0.0
		if size.X > 1 {
			t = float64(x) / float64(size.X-1)
		}
		c := lerpColor(start, end, t)
		for y := 0; y < size.Y; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// ImageFromVertGradient returns a top-to-bottom linear gradient.
func ImageFromVertGradient(size image.Point, start, end Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		t := 0.0
		if size.Y > 1 {
			t = float64(y) / float64(size.Y-1)
		}
		c := lerpColor(start, end, t)
		for x := 0; x < size.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func lerpColor(a, b Color, t float64) color.RGBA {
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return color.RGBA{
		R: lerp(a[0], b[0]),
		G: lerp(a[1], b[1]),
		B: lerp(a[2], b[2]),
		A: lerp(a[3], b[3]),
	}
}

// LoadImage decodes the image at path and scales it to size. Returns false
// when the file is missing or does not decode.
func LoadImage(size image.Point, path string) (*image.RGBA, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, false
	}

	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, true
}

// RenderAlignedTextOnImage draws one text entry onto img following its
// alignment, padding, offset and color. Unknown fonts fall back to the
// built-in face.
func RenderAlignedTextOnImage(size image.Point, img draw.Image, t ButtonText) {
	face, ok := fonts.Get(t.Font)
	if !ok {
		face, _ = fonts.Get(fonts.DefaultFont)
	}
	align, err := validateAlignment(t.Alignment)
	if err != nil {
		align = AlignCenter
	}

	drawer := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: color.RGBA{R: t.Color[0], G: t.Color[1], B: t.Color[2], A: t.Color[3]}},
		Face: face,
	}
	drawer.Dot = textOrigin(size, drawer, t, align, 0, 0)
	drawer.DrawString(t.Text)
}

// RenderAlignedShadowedTextOnImage draws the entry's shadow first, then the
// foreground with the same glyph outline.
func RenderAlignedShadowedTextOnImage(size image.Point, img draw.Image, t ButtonText) {
	if t.Shadow == nil {
		RenderAlignedTextOnImage(size, img, t)
		return
	}
	face, ok := fonts.Get(t.Font)
	if !ok {
		face, _ = fonts.Get(fonts.DefaultFont)
	}
	align, err := validateAlignment(t.Alignment)
	if err != nil {
		align = AlignCenter
	}

	shadow := font.Drawer{
		Dst: img,
		Src: &image.Uniform{C: color.RGBA{
			R: t.Shadow.Color[0], G: t.Shadow.Color[1], B: t.Shadow.Color[2], A: t.Shadow.Color[3],
		}},
		Face: face,
	}
	shadow.Dot = textOrigin(size, shadow, t, align, t.Shadow.OffsetX, t.Shadow.OffsetY)
	shadow.DrawString(t.Text)

	fg := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: color.RGBA{R: t.Color[0], G: t.Color[1], B: t.Color[2], A: t.Color[3]}},
		Face: face,
	}
	fg.Dot = textOrigin(size, fg, t, align, 0, 0)
	fg.DrawString(t.Text)
}

// textOrigin computes the baseline origin for a text entry: horizontal
// position from alignment and padding, vertical center from the face
// metrics, both nudged by the entry's pixel offset plus an extra shift used
// for shadows.
func textOrigin(size image.Point, d font.Drawer, t ButtonText, align TextAlignment, extraX, extraY int) fixed.Point26_6 {
	width := d.MeasureString(t.Text)
	var x fixed.Int26_6
	switch align {
	case AlignLeft:
		x = fixed.I(t.Padding)
	case AlignRight:
		x = fixed.I(size.X-t.Padding) - width
	default:
		x = (fixed.I(size.X) - width) / 2
	}

	metrics := d.Face.Metrics()
	y := fixed.I(size.Y)/2 + metrics.Ascent/2

	x += fixed.I(int(t.OffsetX) + extraX)
	y += fixed.I(int(t.OffsetY) + extraY)
	return fixed.Point26_6{X: x, Y: y}
}
