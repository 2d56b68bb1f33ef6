package render

import (
	"fmt"
	"image"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/streamduck-org/streamduck/pkg/core"
	"github.com/streamduck-org/streamduck/pkg/monitoring"
	"github.com/streamduck-org/streamduck/pkg/streamdeck"
)

// Pipeline is the render pipeline of one device: a dedicated worker that
// walks the visible panel on every redraw signal, composites button images
// and flushes them to the device writer in one batch.
//
// Two caches back the pipeline. The render cache maps the stable hash of a
// renderer component to the image composited from it; since the key is a
// pure function of the inputs, entries never go semantically stale. The
// image cache maps an on-disk path hash to the decoded, device-sized image.
// Neither cache evicts; bounded growth is a known limitation.
type Pipeline struct {
	core     *core.SDCore
	settings *CoreModule

	cacheMu     sync.RWMutex
	renderCache map[uint64]image.Image

	imageMu    sync.RWMutex
	imageCache map[uint64]image.Image

	missing     *image.RGBA
	placeholder *image.RGBA
}

// NewPipeline builds a pipeline for the device. The core module supplies
// the device-wide renderer blacklist.
func NewPipeline(c *core.SDCore, settings *CoreModule) *Pipeline {
	size := c.ImageSize()
	return &Pipeline{
		core:        c,
		settings:    settings,
		renderCache: make(map[uint64]image.Image),
		imageCache:  make(map[uint64]image.Image),
		missing:     DrawMissingTexture(size),
		placeholder: DrawCustomRendererTexture(size),
	}
}

// Start spawns the worker and performs an initial draw.
func (p *Pipeline) Start() {
	go p.run()
	p.core.MarkForRedraw()
}

// Redraw asks the worker for a pass; it coalesces with any pending request.
func (p *Pipeline) Redraw() {
	p.core.MarkForRedraw()
}

func (p *Pipeline) run() {
	h := core.WrapCore(p.core)
	for {
		if p.core.IsClosed() {
			return
		}
		<-p.core.RedrawSignal()
		if p.core.IsClosed() {
			return
		}
		if !p.core.ConsumeDirty() {
			continue
		}

		start := time.Now()
		p.redrawPass(h)
		monitoring.GetGlobalMetrics().RenderPass(p.core.Serial(), time.Since(start))
	}
}

// redrawPass composites every key of the visible panel and flushes the
// resulting commands as one batch.
func (p *Pipeline) redrawPass(h *core.CoreHandle) {
	screen, ok := h.GetCurrentScreen()
	commands := make([]streamdeck.Command, 0, p.core.KeyCount())

	for key := uint8(0); key < p.core.KeyCount(); key++ {
		if !ok {
			commands = append(commands, streamdeck.ClearButtonImage{Key: key})
			continue
		}
		button, has := screen.Button(key)
		if !has {
			commands = append(commands, streamdeck.ClearButtonImage{Key: key})
			continue
		}
		img, rendered := p.buttonImage(h, key, button)
		if !rendered {
			commands = append(commands, streamdeck.ClearButtonImage{Key: key})
			continue
		}
		commands = append(commands, streamdeck.SetButtonImage{Key: key, Image: img})
	}

	p.core.SendCommands(commands)
}

// buttonImage composites one button. Returns rendered=false when the button
// has no renderer component, which the caller treats as a cleared key.
func (p *Pipeline) buttonImage(h *core.CoreHandle, key uint8, button *core.UniqueButton) (image.Image, bool) {
	component, err := core.ParseUniqueButtonComponent[RendererComponent](button, RendererComponentName)
	if err != nil {
		return nil, false
	}

	if component.Renderer != "" {
		return p.customRendered(h, key, button, component.Renderer), true
	}

	metrics := monitoring.GetGlobalMetrics()
	hash := HashRenderer(&component)

	if component.ToCache {
		p.cacheMu.RLock()
		cached, hit := p.renderCache[hash]
		p.cacheMu.RUnlock()
		if hit {
			metrics.CacheHit("render")
			return cached, true
		}
		metrics.CacheMiss("render")
	}

	img, substituted := p.drawBackground(&component)

	for _, t := range component.Text {
		if t.Shadow != nil {
			RenderAlignedShadowedTextOnImage(p.core.ImageSize(), img, t)
		} else {
			RenderAlignedTextOnImage(p.core.ImageSize(), img, t)
		}
	}

	p.decorate(h, key, button, &component, img)

	// Substituted results carry the missing texture; caching them would
	// pin the failure past the asset reappearing.
	if component.ToCache && !substituted {
		p.cacheMu.Lock()
		p.renderCache[hash] = img
		p.cacheMu.Unlock()
	}

	return img, true
}

// drawBackground synthesizes the component's background into a fresh image.
// substituted reports that the missing texture stands in for a failed load.
func (p *Pipeline) drawBackground(component *RendererComponent) (img *image.RGBA, substituted bool) {
	size := p.core.ImageSize()
	bg := component.Background
	metrics := monitoring.GetGlobalMetrics()

	switch bg.Type {
	case BackgroundHorizontalGradient:
		return ImageFromHorizGradient(size, bg.Start, bg.End), false
	case BackgroundVerticalGradient:
		return ImageFromVertGradient(size, bg.Start, bg.End), false
	case BackgroundImage:
		pathHash := HashPath(bg.Path)
		if !bg.DisableCaching {
			p.imageMu.RLock()
			cached, hit := p.imageCache[pathHash]
			p.imageMu.RUnlock()
			if hit {
				metrics.CacheHit("image")
				return copyImage(cached), false
			}
			metrics.CacheMiss("image")
		}
		loaded, ok := LoadImage(size, bg.Path)
		if !ok {
			return copyImage(p.missing), true
		}
		if !bg.DisableCaching {
			p.imageMu.Lock()
			p.imageCache[pathHash] = loaded
			p.imageMu.Unlock()
		}
		return copyImage(loaded), false
	default:
		return ImageFromSolid(size, bg.Color), false
	}
}

// decorate lets rendering modules draw over the composited foreground,
// honoring both the button's and the device's plugin blacklists.
func (p *Pipeline) decorate(h *core.CoreHandle, key uint8, button *core.UniqueButton, component *RendererComponent, img *image.RGBA) {
	modules := p.core.ModuleManager().GetModulesForRendering(button.ComponentNames())
	if len(modules) == 0 {
		return
	}
	deviceBlacklist := p.settings.PluginBlacklist()

	for _, module := range modules {
		name := module.Name()
		if containsName(component.PluginBlacklist, name) || containsName(deviceBlacklist, name) {
			continue
		}
		module := module
		func() {
			defer core.RecoverModulePanic(name, "render_button")
			module.RenderButton(h.CloneFor(module), key, button, img)
		}()
	}
}

// customRendered resolves a named custom renderer on the device. Unknown
// names and renderers that return nothing both substitute the placeholder
// texture.
func (p *Pipeline) customRendered(h *core.CoreHandle, key uint8, button *core.UniqueButton, name string) image.Image {
	renderer, ok := p.core.LookupCustomRenderer(name)
	if !ok {
		return p.placeholder
	}
	img, ok := renderer.Representation(h, key, button)
	if !ok || img == nil {
		return p.placeholder
	}
	return img
}

// RenderScreen composites the visible panel off-device: one image per
// occupied key, a blank black image for buttons with no parsable renderer.
func (p *Pipeline) RenderScreen(h *core.CoreHandle) map[uint8]image.Image {
	screen, ok := h.GetCurrentScreen()
	if !ok {
		return nil
	}
	images := make(map[uint8]image.Image)
	for key, button := range screen.Snapshot() {
		img, rendered := p.buttonImage(h, key, button)
		if !rendered {
			img = ImageFromSolid(p.core.ImageSize(), Color{0, 0, 0, 255})
		}
		images[key] = img
	}
	return images
}

// RenderKey composites one key off-device.
func (p *Pipeline) RenderKey(h *core.CoreHandle, key uint8) (image.Image, error) {
	button, ok := h.GetButton(key)
	if !ok {
		return nil, fmt.Errorf("no button at key %d: %w", key, core.ErrNotFound)
	}
	img, rendered := p.buttonImage(h, key, button)
	if !rendered {
		return ImageFromSolid(p.core.ImageSize(), Color{0, 0, 0, 255}), nil
	}
	return img, nil
}

func copyImage(src image.Image) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

func containsName(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}
