package render

import (
	"image"
	"image/color"
)

// DrawMissingTexture builds the substitute for failed image loads: an 8x8
// magenta/black checker tiled to the device image size, labelled so the
// operator can tell at a glance that an asset is gone. Never written to the
// render cache.
func DrawMissingTexture(size image.Point) *image.RGBA {
	img := drawChecker(size, Color{255, 0, 255, 255}, Color{0, 0, 0, 255})

	label := ButtonText{
		Text:      "?",
		Font:      "default",
		Alignment: AlignCenter,
		OffsetY:   -6,
		Color:     Color{255, 0, 255, 255},
		Shadow:    &ButtonTextShadow{OffsetX: 1, OffsetY: 1, Color: Color{0, 0, 0, 255}},
	}
	RenderAlignedShadowedTextOnImage(size, img, label)

	label.Text = "missing"
	label.OffsetY = 8
	RenderAlignedShadowedTextOnImage(size, img, label)
	return img
}

// DrawCustomRendererTexture builds the placeholder shown when a named
// custom renderer is unknown or returned nothing. Visually distinct from
// the missing texture.
func DrawCustomRendererTexture(size image.Point) *image.RGBA {
	img := drawChecker(size, Color{0, 255, 255, 255}, Color{40, 40, 40, 255})

	label := ButtonText{
		Text:      "renderer",
		Font:      "default",
		Alignment: AlignCenter,
		Color:     Color{0, 255, 255, 255},
		Shadow:    &ButtonTextShadow{OffsetX: 1, OffsetY: 1, Color: Color{0, 0, 0, 255}},
	}
	RenderAlignedShadowedTextOnImage(size, img, label)
	return img
}

// drawChecker tiles an 8x8 two-color checker across a size-sized image.
func drawChecker(size image.Point, a, b Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			c := a
			if ((x/8)+(y/8))%2 == 1 {
				c = b
			}
			img.SetRGBA(x, y, color.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]})
		}
	}
	return img
}
