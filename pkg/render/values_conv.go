package render

import (
	"fmt"

	"github.com/streamduck-org/streamduck/pkg/core"
	"github.com/streamduck-org/streamduck/pkg/values"
)

// Conversion between RendererComponent and the UI value tree editors see.
// The tree shape is stable: editors address fields by path, so renames here
// are protocol changes.

func componentToValues(c *RendererComponent) []values.UIValue {
	bg := c.Background
	bgKind := bg.Type
	if bgKind == "" {
		bgKind = BackgroundSolid
	}

	textElements := make([][]values.UIValue, 0, len(c.Text))
	for _, t := range c.Text {
		textElements = append(textElements, textEntryValues(t))
	}
	var textElems [][]values.UIValue
	if len(textElements) > 0 {
		textElems = textElements
	}

	blacklistElements := make([][]values.UIValue, 0, len(c.PluginBlacklist))
	for _, name := range c.PluginBlacklist {
		blacklistElements = append(blacklistElements, []values.UIValue{{
			Name: "module", DisplayName: "Module", Value: values.Text{Value: name},
		}})
	}
	var blacklistElems [][]values.UIValue
	if len(blacklistElements) > 0 {
		blacklistElems = blacklistElements
	}

	return []values.UIValue{
		{
			Name:        "background",
			DisplayName: "Background",
			Value: values.Group{Fields: []values.UIValue{
				{Name: "kind", DisplayName: "Kind", Value: values.Choice{
					Options: []string{
						BackgroundSolid,
						BackgroundHorizontalGradient,
						BackgroundVerticalGradient,
						BackgroundImage,
					},
					Selected: bgKind,
				}},
				colorValue("color", "Color", bg.Color),
				colorValue("start", "Gradient start", bg.Start),
				colorValue("end", "Gradient end", bg.End),
				{Name: "path", DisplayName: "Image path", Value: values.FilePath{Path: bg.Path}},
				{Name: "disable_caching", DisplayName: "Disable image caching", Value: values.Bool{Value: bg.DisableCaching}},
			}},
		},
		{
			Name:        "text",
			DisplayName: "Text",
			Value: values.Array{
				Template: textEntryValues(ButtonText{
					Font:      "default",
					ScaleX:    1,
					ScaleY:    1,
					Alignment: AlignCenter,
					Color:     Color{255, 255, 255, 255},
				}),
				Elements: textElems,
			},
		},
		{
			Name:        "renderer",
			DisplayName: "Custom renderer",
			Description: "Named custom renderer replacing normal composition",
			Value:       values.Text{Value: c.Renderer},
		},
		{
			Name:        "plugin_blacklist",
			DisplayName: "Plugin blacklist",
			Value: values.Array{
				Template: []values.UIValue{{
					Name: "module", DisplayName: "Module", Value: values.Text{},
				}},
				Elements: blacklistElems,
			},
		},
		{
			Name:        "to_cache",
			DisplayName: "Cache rendered image",
			Value:       values.Bool{Value: c.ToCache},
		},
	}
}

func textEntryValues(t ButtonText) []values.UIValue {
	shadow := ButtonTextShadow{}
	shadowEnabled := t.Shadow != nil
	if shadowEnabled {
		shadow = *t.Shadow
	}
	return []values.UIValue{
		{Name: "text", DisplayName: "Text", Value: values.Text{Value: t.Text}},
		{Name: "font", DisplayName: "Font", Value: values.Text{Value: t.Font}},
		{Name: "scale_x", DisplayName: "Scale X", Value: values.Float{Value: t.ScaleX}},
		{Name: "scale_y", DisplayName: "Scale Y", Value: values.Float{Value: t.ScaleY}},
		{Name: "alignment", DisplayName: "Alignment", Value: values.Choice{
			Options:  []string{string(AlignLeft), string(AlignCenter), string(AlignRight)},
			Selected: string(t.Alignment),
		}},
		{Name: "padding", DisplayName: "Padding", Value: values.Int{Value: int64(t.Padding), Bits: 32}},
		{Name: "offset_x", DisplayName: "Offset X", Value: values.Float{Value: t.OffsetX}},
		{Name: "offset_y", DisplayName: "Offset Y", Value: values.Float{Value: t.OffsetY}},
		{Name: "shadow", DisplayName: "Shadow", Value: values.Group{Fields: []values.UIValue{
			{Name: "enabled", DisplayName: "Enabled", Value: values.Bool{Value: shadowEnabled}},
			{Name: "offset_x", DisplayName: "Offset X", Value: values.Int{Value: int64(shadow.OffsetX), Bits: 32}},
			{Name: "offset_y", DisplayName: "Offset Y", Value: values.Int{Value: int64(shadow.OffsetY), Bits: 32}},
			colorValue("color", "Color", shadow.Color),
		}}},
		colorValue("color", "Color", t.Color),
	}
}

func colorValue(name, display string, c Color) values.UIValue {
	return values.UIValue{
		Name:        name,
		DisplayName: display,
		Value:       values.Color{R: c[0], G: c[1], B: c[2], A: c[3]},
	}
}

func valuesToComponent(vals []values.UIValue) (RendererComponent, error) {
	var c RendererComponent

	kind, err := getChoice(vals, "background.kind")
	if err != nil {
		return c, err
	}
	c.Background.Type = kind
	if c.Background.Color, err = getColor(vals, "background.color"); err != nil {
		return c, err
	}
	if c.Background.Start, err = getColor(vals, "background.start"); err != nil {
		return c, err
	}
	if c.Background.End, err = getColor(vals, "background.end"); err != nil {
		return c, err
	}
	if c.Background.Path, err = getFilePath(vals, "background.path"); err != nil {
		return c, err
	}
	if c.Background.DisableCaching, err = getBool(vals, "background.disable_caching"); err != nil {
		return c, err
	}

	textArr, err := getArray(vals, "text")
	if err != nil {
		return c, err
	}
	for i := range textArr.Elements {
		entry, err := textEntryFromValues(vals, fmt.Sprintf("text[%d]", i))
		if err != nil {
			return c, err
		}
		c.Text = append(c.Text, entry)
	}

	rendererText, err := getText(vals, "renderer")
	if err != nil {
		return c, err
	}
	c.Renderer = rendererText

	blacklistArr, err := getArray(vals, "plugin_blacklist")
	if err != nil {
		return c, err
	}
	for i := range blacklistArr.Elements {
		name, err := getText(vals, fmt.Sprintf("plugin_blacklist[%d]", i))
		if err != nil {
			return c, err
		}
		if name != "" {
			c.PluginBlacklist = append(c.PluginBlacklist, name)
		}
	}

	if c.ToCache, err = getBool(vals, "to_cache"); err != nil {
		return c, err
	}
	return c, nil
}

func textEntryFromValues(vals []values.UIValue, prefix string) (ButtonText, error) {
	var t ButtonText
	var err error
	if t.Text, err = getText(vals, prefix+".text"); err != nil {
		return t, err
	}
	if t.Font, err = getText(vals, prefix+".font"); err != nil {
		return t, err
	}
	if t.ScaleX, err = getFloat(vals, prefix+".scale_x"); err != nil {
		return t, err
	}
	if t.ScaleY, err = getFloat(vals, prefix+".scale_y"); err != nil {
		return t, err
	}
	align, err := getChoice(vals, prefix+".alignment")
	if err != nil {
		return t, err
	}
	if t.Alignment, err = validateAlignment(TextAlignment(align)); err != nil {
		return t, fmt.Errorf("%s: %w", prefix, core.ErrInvalidArgument)
	}
	padding, err := getInt(vals, prefix+".padding")
	if err != nil {
		return t, err
	}
	t.Padding = int(padding)
	if t.OffsetX, err = getFloat(vals, prefix+".offset_x"); err != nil {
		return t, err
	}
	if t.OffsetY, err = getFloat(vals, prefix+".offset_y"); err != nil {
		return t, err
	}
	if t.Color, err = getColor(vals, prefix+".color"); err != nil {
		return t, err
	}

	shadowEnabled, err := getBool(vals, prefix+".shadow.enabled")
	if err != nil {
		return t, err
	}
	if shadowEnabled {
		shadow := &ButtonTextShadow{}
		offsetX, err := getInt(vals, prefix+".shadow.offset_x")
		if err != nil {
			return t, err
		}
		offsetY, err := getInt(vals, prefix+".shadow.offset_y")
		if err != nil {
			return t, err
		}
		shadow.OffsetX = int(offsetX)
		shadow.OffsetY = int(offsetY)
		if shadow.Color, err = getColor(vals, prefix+".shadow.color"); err != nil {
			return t, err
		}
		t.Shadow = shadow
	}
	return t, nil
}

func getValue(vals []values.UIValue, path string) (values.UIValue, error) {
	v, err := values.GetByPath(vals, path)
	if err != nil {
		return values.UIValue{}, fmt.Errorf("renderer values %q: %w", path, core.ErrInvalidArgument)
	}
	return v, nil
}

func getText(vals []values.UIValue, path string) (string, error) {
	v, err := getValue(vals, path)
	if err != nil {
		return "", err
	}
	text, ok := v.Value.(values.Text)
	if !ok {
		return "", fmt.Errorf("renderer values %q: %w", path, core.ErrInvalidArgument)
	}
	return text.Value, nil
}

func getFilePath(vals []values.UIValue, path string) (string, error) {
	v, err := getValue(vals, path)
	if err != nil {
		return "", err
	}
	fp, ok := v.Value.(values.FilePath)
	if !ok {
		return "", fmt.Errorf("renderer values %q: %w", path, core.ErrInvalidArgument)
	}
	return fp.Path, nil
}

func getBool(vals []values.UIValue, path string) (bool, error) {
	v, err := getValue(vals, path)
	if err != nil {
		return false, err
	}
	b, ok := v.Value.(values.Bool)
	if !ok {
		return false, fmt.Errorf("renderer values %q: %w", path, core.ErrInvalidArgument)
	}
	return b.Value, nil
}

func getFloat(vals []values.UIValue, path string) (float64, error) {
	v, err := getValue(vals, path)
	if err != nil {
		return 0, err
	}
	f, ok := v.Value.(values.Float)
	if !ok {
		return 0, fmt.Errorf("renderer values %q: %w", path, core.ErrInvalidArgument)
	}
	return f.Value, nil
}

func getInt(vals []values.UIValue, path string) (int64, error) {
	v, err := getValue(vals, path)
	if err != nil {
		return 0, err
	}
	i, ok := v.Value.(values.Int)
	if !ok {
		return 0, fmt.Errorf("renderer values %q: %w", path, core.ErrInvalidArgument)
	}
	return i.Value, nil
}

func getColor(vals []values.UIValue, path string) (Color, error) {
	v, err := getValue(vals, path)
	if err != nil {
		return Color{}, err
	}
	c, ok := v.Value.(values.Color)
	if !ok {
		return Color{}, fmt.Errorf("renderer values %q: %w", path, core.ErrInvalidArgument)
	}
	return Color{c.R, c.G, c.B, c.A}, nil
}

func getChoice(vals []values.UIValue, path string) (string, error) {
	v, err := getValue(vals, path)
	if err != nil {
		return "", err
	}
	choice, ok := v.Value.(values.Choice)
	if !ok {
		return "", fmt.Errorf("renderer values %q: %w", path, core.ErrInvalidArgument)
	}
	return choice.Selected, nil
}

func getArray(vals []values.UIValue, path string) (values.Array, error) {
	v, err := getValue(vals, path)
	if err != nil {
		return values.Array{}, err
	}
	arr, ok := v.Value.(values.Array)
	if !ok {
		return values.Array{}, fmt.Errorf("renderer values %q: %w", path, core.ErrInvalidArgument)
	}
	return arr, nil
}
