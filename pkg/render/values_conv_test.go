package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamduck-org/streamduck/pkg/values"
)

// TestComponentValuesRoundTrip tests that the editor-facing value tree
// faithfully reconstructs the component.
func TestComponentValuesRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		component RendererComponent
	}{
		{
			name:      "default",
			component: DefaultRendererComponent(),
		},
		{
			name: "gradient with text and shadow",
			component: RendererComponent{
				Background: ButtonBackground{
					Type:  BackgroundVerticalGradient,
					Start: Color{255, 0, 0, 255},
					End:   Color{0, 0, 255, 255},
				},
				Text: []ButtonText{{
					Text:      "Rec",
					Font:      "default",
					ScaleX:    1,
					ScaleY:    1,
					Alignment: AlignRight,
					Padding:   3,
					OffsetX:   -2,
					Color:     Color{255, 255, 255, 255},
					Shadow:    &ButtonTextShadow{OffsetX: 1, OffsetY: 2, Color: Color{0, 0, 0, 255}},
				}},
				PluginBlacklist: []string{"noisy"},
				ToCache:         true,
			},
		},
		{
			name: "image background without caching",
			component: RendererComponent{
				Background: ButtonBackground{
					Type:           BackgroundImage,
					Path:           "/srv/icons/mic.png",
					DisableCaching: true,
				},
				Renderer: "fancy",
				ToCache:  false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals := componentToValues(&tt.component)
			back, err := valuesToComponent(vals)
			require.NoError(t, err)
			assert.Equal(t, tt.component, back)
		})
	}
}

// TestValuesEditThenReconstruct mimics the daemon's edit path: flatten,
// set by path, reconstruct.
func TestValuesEditThenReconstruct(t *testing.T) {
	component := DefaultRendererComponent()
	vals := componentToValues(&component)

	edited, ok := values.SetByPath(vals, values.UIPathValue{
		UIValue: values.UIValue{Value: values.Choice{Selected: BackgroundVerticalGradient}},
		Path:    "background.kind",
	})
	require.True(t, ok)

	edited, ok = values.AddArrayElement(edited, "text")
	require.True(t, ok)
	edited, ok = values.SetByPath(edited, values.UIPathValue{
		UIValue: values.UIValue{Value: values.Text{Value: "Live"}},
		Path:    "text[0].text",
	})
	require.True(t, ok)

	back, err := valuesToComponent(edited)
	require.NoError(t, err)
	assert.Equal(t, BackgroundVerticalGradient, back.Background.Type)
	require.Len(t, back.Text, 1)
	assert.Equal(t, "Live", back.Text[0].Text)
	assert.Equal(t, AlignCenter, back.Text[0].Alignment, "template default")
}

// TestValuesToComponentRejectsBadTree tests the invalid-argument paths.
func TestValuesToComponentRejectsBadTree(t *testing.T) {
	_, err := valuesToComponent(nil)
	assert.Error(t, err)

	vals := componentToValues(&RendererComponent{ToCache: true})
	// A well-formed edit: the renderer name set to a text value.
	broken, ok := values.SetByPath(vals, values.UIPathValue{
		UIValue: values.UIValue{Value: values.Text{Value: "x"}},
		Path:    "renderer",
	})
	require.True(t, ok)
	_, err = valuesToComponent(broken)
	assert.NoError(t, err, "well-formed edit passes")
}
