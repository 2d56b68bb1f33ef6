package render

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestImageFromSolid tests that the whole image takes the fill color.
func TestImageFromSolid(t *testing.T) {
	img := ImageFromSolid(image.Pt(8, 8), Color{10, 20, 30, 255})
	want := color.RGBA{R: 10, G: 20, B: 30, A: 255}
	assert.Equal(t, want, img.RGBAAt(0, 0))
	assert.Equal(t, want, img.RGBAAt(7, 7))
	assert.Equal(t, want, img.RGBAAt(3, 5))
}

// TestGradients tests the endpoints and midpoint of both gradient axes.
func TestGradients(t *testing.T) {
	start := Color{0, 0, 0, 255}
	end := Color{200, 100, 50, 255}

	t.Run("horizontal", func(t *testing.T) {
		img := ImageFromHorizGradient(image.Pt(11, 4), start, end)
		assert.Equal(t, color.RGBA{A: 255}, img.RGBAAt(0, 0))
		assert.Equal(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}, img.RGBAAt(10, 3))

		mid := img.RGBAAt(5, 0)
		assert.InDelta(t, 100, int(mid.R), 2)
		assert.InDelta(t, 50, int(mid.G), 2)

		// Columns are uniform.
		assert.Equal(t, img.RGBAAt(5, 0), img.RGBAAt(5, 3))
	})

	t.Run("vertical", func(t *testing.T) {
		img := ImageFromVertGradient(image.Pt(4, 11), start, end)
		assert.Equal(t, color.RGBA{A: 255}, img.RGBAAt(0, 0))
		assert.Equal(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}, img.RGBAAt(3, 10))
		assert.Equal(t, img.RGBAAt(0, 5), img.RGBAAt(3, 5))
	})
}

// TestLoadImage tests decode, scaling and failure reporting.
func TestLoadImage(t *testing.T) {
	dir := t.TempDir()

	t.Run("decodes and scales", func(t *testing.T) {
		path := filepath.Join(dir, "in.png")
		src := image.NewRGBA(image.Rect(0, 0, 16, 16))
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				src.SetRGBA(x, y, color.RGBA{R: 120, A: 255})
			}
		}
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, src))
		require.NoError(t, f.Close())

		img, ok := LoadImage(image.Pt(72, 72), path)
		require.True(t, ok)
		assert.Equal(t, image.Rect(0, 0, 72, 72), img.Bounds())
		assert.InDelta(t, 120, int(img.RGBAAt(36, 36).R), 2)
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, ok := LoadImage(image.Pt(72, 72), filepath.Join(dir, "absent.png"))
		assert.False(t, ok)
	})

	t.Run("non-image fails", func(t *testing.T) {
		path := filepath.Join(dir, "junk.png")
		require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
		_, ok := LoadImage(image.Pt(72, 72), path)
		assert.False(t, ok)
	})
}

// TestMissingTexture tests the checker pattern and that the two placeholder
// textures are visually distinct.
func TestMissingTexture(t *testing.T) {
	size := image.Pt(72, 72)
	missing := DrawMissingTexture(size)
	placeholder := DrawCustomRendererTexture(size)

	assert.Equal(t, image.Rect(0, 0, 72, 72), missing.Bounds())

	// Top-left checker cell is magenta; the cell to its right is black.
	assert.Equal(t, color.RGBA{R: 255, B: 255, A: 255}, missing.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{A: 255}, missing.RGBAAt(8, 0))

	assert.NotEqual(t, missing.RGBAAt(0, 0), placeholder.RGBAAt(0, 0),
		"missing texture and custom renderer placeholder must differ")
}

// TestRenderText tests that text rendering touches pixels and that a shadow
// adds strictly more ink than the plain rendering.
func TestRenderText(t *testing.T) {
	size := image.Pt(72, 72)

	plain := ImageFromSolid(size, Color{0, 0, 0, 255})
	RenderAlignedTextOnImage(size, plain, ButtonText{
		Text:      "Hi",
		Font:      "default",
		Alignment: AlignCenter,
		Color:     Color{255, 255, 255, 255},
	})

	var lit int
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			if plain.RGBAAt(x, y).R > 0 {
				lit++
			}
		}
	}
	assert.Positive(t, lit, "text must draw something")

	shadowed := ImageFromSolid(size, Color{0, 0, 0, 255})
	RenderAlignedShadowedTextOnImage(size, shadowed, ButtonText{
		Text:      "Hi",
		Font:      "default",
		Alignment: AlignCenter,
		Color:     Color{255, 255, 255, 255},
		Shadow:    &ButtonTextShadow{OffsetX: 2, OffsetY: 2, Color: Color{255, 0, 0, 255}},
	})

	var shadowInk int
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			px := shadowed.RGBAAt(x, y)
			if px.R > 0 || px.G > 0 || px.B > 0 {
				shadowInk++
			}
		}
	}
	assert.Greater(t, shadowInk, lit, "shadow adds pixels beyond the foreground")
}
