package core

import (
	"bytes"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamduck-org/streamduck/pkg/values"
)

func waitForEvent(t *testing.T, m *testModule) SDCoreEvent {
	t.Helper()
	select {
	case ev := <-m.eventDelivered:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
		return nil
	}
}

// TestStackOperations tests push/pop/replace/reset and the pinned root.
func TestStackOperations(t *testing.T) {
	c, _, _ := newTestCore("SD1")
	h := WrapCore(c)

	t.Run("push then pop restores pre-state", func(t *testing.T) {
		before := h.GetStackNames()
		h.PushScreen(NewButtonPanel("menu"))
		require.Equal(t, append(append([]string(nil), before...), "menu"), h.GetStackNames())
		require.True(t, h.PopScreen())
		assert.Equal(t, before, h.GetStackNames())
	})

	t.Run("pop on single-element stack is a no-op", func(t *testing.T) {
		require.Len(t, h.GetStack(), 1)
		assert.False(t, h.PopScreen())
		assert.Len(t, h.GetStack(), 1)
	})

	t.Run("drop to root leaves one panel", func(t *testing.T) {
		h.PushScreen(NewButtonPanel("a"))
		h.PushScreen(NewButtonPanel("b"))
		h.PushScreen(NewButtonPanel("c"))
		h.DropStackToRoot()
		require.Len(t, h.GetStack(), 1)
		assert.Equal(t, "root", h.GetStackNames()[0])
	})

	t.Run("forcibly pop can empty the stack", func(t *testing.T) {
		c, _, _ := newTestCore("SD2")
		h := WrapCore(c)
		assert.True(t, h.ForciblyPopScreen())
		assert.Len(t, h.GetStack(), 0)
		assert.False(t, h.ForciblyPopScreen())
	})

	t.Run("replace swaps the top", func(t *testing.T) {
		h.PushScreen(NewButtonPanel("old"))
		h.ReplaceScreen(NewButtonPanel("new"))
		screen, ok := h.GetCurrentScreen()
		require.True(t, ok)
		assert.Equal(t, "new", screen.DisplayName())
		h.DropStackToRoot()
	})

	t.Run("reset seeds a fresh stack", func(t *testing.T) {
		h.PushScreen(NewButtonPanel("extra"))
		h.ResetStack(NewButtonPanel("fresh"))
		assert.Equal(t, []string{"fresh"}, h.GetStackNames())
	})
}

// TestButtonOperations tests set/clear semantics, the emitted event kinds
// and the dirty flag transition after every mutation.
func TestButtonOperations(t *testing.T) {
	module := newTestModule("mod", SupportedFeatures, "text")
	c, _, globals := newTestCore("SD1", module)
	h := WrapCore(c)

	t.Run("set into empty slot emits ButtonAdded", func(t *testing.T) {
		require.False(t, c.IsDirty())
		require.NoError(t, h.SetButton(0, MakeButtonUnique(nil)))
		assert.True(t, c.IsDirty(), "mutation must mark the device for redraw")

		ev := waitForEvent(t, module)
		added, ok := ev.(ButtonAddedEvent)
		require.True(t, ok, "expected ButtonAddedEvent, got %T", ev)
		assert.Equal(t, uint8(0), added.Key)
	})

	t.Run("set into taken slot emits ButtonUpdated with old and new", func(t *testing.T) {
		old, ok := h.GetButton(0)
		require.True(t, ok)
		old.Write(func(b *Button) {
			b.SetComponent("text", []byte(`{"value":"old"}`))
		})

		next := MakeButtonUnique(RawButton{"text": []byte(`{"value":"new"}`)})
		require.NoError(t, h.SetButton(0, next))

		ev := waitForEvent(t, module)
		updated, ok := ev.(ButtonUpdatedEvent)
		require.True(t, ok, "expected ButtonUpdatedEvent, got %T", ev)
		assert.JSONEq(t, `{"value":"old"}`, string(updated.OldButton.ToRaw()["text"]))
		assert.JSONEq(t, `{"value":"new"}`, string(updated.NewButton.ToRaw()["text"]))
	})

	t.Run("clear emits ButtonDeleted with the removed snapshot", func(t *testing.T) {
		c.ConsumeDirty()
		require.NoError(t, h.ClearButton(0))
		assert.True(t, c.IsDirty())

		ev := waitForEvent(t, module)
		deleted, ok := ev.(ButtonDeletedEvent)
		require.True(t, ok, "expected ButtonDeletedEvent, got %T", ev)
		assert.JSONEq(t, `{"value":"new"}`, string(deleted.DeletedButton.ToRaw()["text"]))
	})

	t.Run("clear of empty slot fails", func(t *testing.T) {
		assert.ErrorIs(t, h.ClearButton(7), ErrNotFound)
	})

	t.Run("key out of range fails", func(t *testing.T) {
		err := h.SetButton(200, MakeButtonUnique(nil))
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("global events mirror the core events", func(t *testing.T) {
		var types []string
		for _, ev := range globals.all() {
			types = append(types, ev.Type)
		}
		assert.Contains(t, types, GlobalButtonAdded)
		assert.Contains(t, types, GlobalButtonUpdated)
		assert.Contains(t, types, GlobalButtonDeleted)
	})
}

// TestComponentOperations tests add/remove/get/set through the owning
// module, including the path-addressed edit round-trip.
func TestComponentOperations(t *testing.T) {
	module := newTestModule("mod", SupportedFeatures, "text")
	c, _, _ := newTestCore("SD1", module)
	h := WrapCore(c)

	require.NoError(t, h.NewButton(0))

	t.Run("add initializes via module", func(t *testing.T) {
		require.NoError(t, h.AddComponent(0, "text"))
		button, ok := h.GetButton(0)
		require.True(t, ok)
		state, err := ParseUniqueButtonComponent[testComponentState](button, "text")
		require.NoError(t, err)
		assert.Equal(t, "default", state.Value)
	})

	t.Run("double add fails", func(t *testing.T) {
		assert.ErrorIs(t, h.AddComponent(0, "text"), ErrAlreadyExists)
	})

	t.Run("unknown component fails", func(t *testing.T) {
		assert.ErrorIs(t, h.AddComponent(0, "bogus"), ErrNotFound)
	})

	t.Run("set by path writes through the module", func(t *testing.T) {
		err := h.SetComponentValueByPath(0, "text", values.UIPathValue{
			UIValue: values.UIValue{Value: values.Text{Value: "edited"}},
			Path:    "value",
		})
		require.NoError(t, err)

		vals, err := h.GetComponentValues(0, "text")
		require.NoError(t, err)
		v, err := values.GetByPath(vals, "value")
		require.NoError(t, err)
		assert.Equal(t, values.Text{Value: "edited"}, v.Value)
	})

	t.Run("mismatched kind fails and preserves state", func(t *testing.T) {
		err := h.SetComponentValueByPath(0, "text", values.UIPathValue{
			UIValue: values.UIValue{Value: values.Bool{Value: true}},
			Path:    "value",
		})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("array add and remove through module", func(t *testing.T) {
		// The test module exposes a "tags" array but only persists
		// "value"; the edit still must resolve and write back.
		require.NoError(t, h.AddElementComponentValue(0, "text", "tags"))
		err := h.RemoveElementComponentValue(0, "text", "tags", 5)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("remove tears down via module", func(t *testing.T) {
		require.NoError(t, h.RemoveComponent(0, "text"))
		button, ok := h.GetButton(0)
		require.True(t, ok)
		assert.Empty(t, button.ComponentNames())
	})

	t.Run("component ops on missing button fail", func(t *testing.T) {
		assert.ErrorIs(t, h.AddComponent(9, "text"), ErrNotFound)
		_, err := h.GetComponentValues(9, "text")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// TestPasteButton tests that paste consults exactly the modules owning the
// reference button's components, once each.
func TestPasteButton(t *testing.T) {
	textMod := newTestModule("textmod", SupportedFeatures, "text")
	timerMod := newTestModule("timermod", SupportedFeatures, "timer")
	idleMod := newTestModule("idlemod", SupportedFeatures, "gif")
	c, _, _ := newTestCore("SD1", textMod, timerMod, idleMod)
	h := WrapCore(c)

	reference := RawButton{
		"text":  []byte(`{"value":"copied"}`),
		"timer": []byte(`{"value":"10s"}`),
	}
	require.NoError(t, h.PasteButton(3, reference))

	button, ok := h.GetButton(3)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"text", "timer"}, button.ComponentNames())

	assert.Equal(t, 1, textMod.pasteCount(), "owner of text pastes once")
	assert.Equal(t, 1, timerMod.pasteCount(), "owner of timer pastes once")
	assert.Equal(t, 0, idleMod.pasteCount(), "non-owner is not consulted")

	state, err := ParseUniqueButtonComponent[testComponentState](button, "text")
	require.NoError(t, err)
	assert.Equal(t, "copied", state.Value)
}

// TestEventOriginatorExclusion tests that the module performing a mutation
// never receives its own event.
func TestEventOriginatorExclusion(t *testing.T) {
	actor := newTestModule("actor", SupportedFeatures, "text")
	watcher := newTestModule("watcher", SupportedFeatures, "timer")
	c, _, _ := newTestCore("SD1", actor, watcher)

	actorHandle := WrapCore(c).CloneFor(actor)
	require.NoError(t, actorHandle.SetButton(0, MakeButtonUnique(nil)))

	waitForEvent(t, watcher)
	assert.Empty(t, actor.receivedEvents(), "originating module must not receive its own event")
	assert.Len(t, watcher.receivedEvents(), 1)
}

// TestButtonActionRouting tests that action events go only to modules
// owning the pressed button's components, while up/down broadcast.
func TestButtonActionRouting(t *testing.T) {
	owner := newTestModule("owner", SupportedFeatures, "text")
	bystander := newTestModule("bystander", SupportedFeatures, "timer")
	c, _, _ := newTestCore("SD1", owner, bystander)
	h := WrapCore(c)

	require.NoError(t, h.SetButton(2, MakeButtonUnique(RawButton{"text": []byte(`{"value":"x"}`)})))
	waitForEvent(t, owner)
	waitForEvent(t, bystander)

	h.ButtonDown(2)
	h.ButtonUp(2)

	deadline := time.After(2 * time.Second)
	var ownerActions, bystanderActions int
	for done := false; !done; {
		select {
		case ev := <-owner.eventDelivered:
			if _, ok := ev.(ButtonActionEvent); ok {
				ownerActions++
				done = true
			}
		case <-deadline:
			done = true
		}
	}
	for _, ev := range bystander.receivedEvents() {
		if _, ok := ev.(ButtonActionEvent); ok {
			bystanderActions++
		}
	}

	assert.Equal(t, 1, ownerActions, "component owner receives the action")
	assert.Zero(t, bystanderActions, "non-owner receives no action")
}

// TestFeatureWarning tests the advisory gate: exactly one warning naming
// module and feature, and the call still succeeds.
func TestFeatureWarning(t *testing.T) {
	limited := newTestModule("limited", []Feature{FeaturePluginAPI}, "text")
	c, _, _ := newTestCore("SD1", limited)

	var buf bytes.Buffer
	previous := log.StandardLogger().Out
	log.SetOutput(&buf)
	defer log.SetOutput(previous)

	h := WrapCore(c).CloneFor(limited)
	require.NoError(t, h.SetButton(0, MakeButtonUnique(nil)), "gated call still completes")

	output := buf.String()
	assert.Contains(t, output, "limited")
	assert.Contains(t, output, FeatureCoreMethods.Name)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(FeatureCoreMethods.Name)),
		"exactly one warning per gated call")
}

// TestModulePanicIsolation tests that a panicking module callback does not
// take down dispatch.
func TestModulePanicIsolation(t *testing.T) {
	panicky := &panickyModule{testModule: newTestModule("panicky", SupportedFeatures, "boom")}
	calm := newTestModule("calm", SupportedFeatures, "timer")
	c, _, _ := newTestCore("SD1", panicky, calm)
	h := WrapCore(c)

	require.NoError(t, h.SetButton(0, MakeButtonUnique(nil)))
	ev := waitForEvent(t, calm)
	_, ok := ev.(ButtonAddedEvent)
	assert.True(t, ok, "calm module still receives the event")
}

type panickyModule struct {
	*testModule
}

func (m *panickyModule) Event(*CoreHandle, SDCoreEvent) {
	panic("deliberate test panic")
}

// TestSetBrightness tests validation, persistence and the announced event.
func TestSetBrightness(t *testing.T) {
	c, sink, globals := newTestCore("SD1")
	h := WrapCore(c)

	require.NoError(t, h.SetBrightness(55))
	assert.Equal(t, uint8(55), c.Brightness())

	assert.ErrorIs(t, h.SetBrightness(101), ErrInvalidArgument)
	assert.Equal(t, uint8(55), c.Brightness())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.NotEmpty(t, sink.commands)

	var sawBrightness bool
	for _, ev := range globals.all() {
		if ev.Type == GlobalBrightnessChanged && ev.Brightness != nil && *ev.Brightness == 55 {
			sawBrightness = true
		}
	}
	assert.True(t, sawBrightness)
}

// TestCommitChanges tests that the live root panel folds back into config.
func TestCommitChanges(t *testing.T) {
	c, _, _ := newTestCore("SD1")
	h := WrapCore(c)

	require.NoError(t, h.SetButton(4, MakeButtonUnique(RawButton{"text": []byte(`{"value":"keep"}`)})))
	require.True(t, c.LastCommit().IsZero())

	h.CommitChanges()
	assert.False(t, c.LastCommit().IsZero())

	cfg, ok := c.configStore.DeviceConfig("SD1")
	require.True(t, ok)
	require.Contains(t, cfg.RootPanel.Buttons, uint8(4))
	assert.JSONEq(t, `{"value":"keep"}`, string(cfg.RootPanel.Buttons[4]["text"]))
}

// TestDeviceImages tests upload validation and listing.
func TestDeviceImages(t *testing.T) {
	c, _, _ := newTestCore("SD1")
	h := WrapCore(c)

	t.Run("rejects junk", func(t *testing.T) {
		_, err := h.AddImage("not base64 at all!!!")
		assert.ErrorIs(t, err, ErrDecode)

		_, err = h.AddImage("aGVsbG8=") // valid base64, not a PNG
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("stores and removes a png", func(t *testing.T) {
		id, err := h.AddImage(tinyPNGBase64(t))
		require.NoError(t, err)
		require.NotEmpty(t, id)

		images := h.ListImages()
		assert.Contains(t, images, id)

		require.NoError(t, h.RemoveImage(id))
		assert.ErrorIs(t, h.RemoveImage(id), ErrNotFound)
	})
}

// TestModuleValues tests the module settings edit path.
func TestModuleValues(t *testing.T) {
	module := newTestModule("mod", SupportedFeatures, "text")
	c, _, _ := newTestCore("SD1", module)
	h := WrapCore(c)

	vals, err := h.GetModuleValues("mod")
	require.NoError(t, err)
	require.NotEmpty(t, vals)

	err = h.SetModuleValue("mod", values.UIPathValue{
		UIValue: values.UIValue{Value: values.Text{Value: "hi"}},
		Path:    "greeting",
	})
	require.NoError(t, err)

	vals, err = h.GetModuleValues("mod")
	require.NoError(t, err)
	assert.Equal(t, values.Text{Value: "hi"}, vals[0].Value)

	_, err = h.GetModuleValues("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestLoadSavePanels tests the serialize/deserialize round trip through
// the stack.
func TestLoadSavePanels(t *testing.T) {
	c, _, _ := newTestCore("SD1")
	h := WrapCore(c)

	require.NoError(t, h.SetButton(1, MakeButtonUnique(RawButton{"text": []byte(`{"value":"v"}`)})))

	raw := h.SavePanelsToValue()
	data, err := json.Marshal(raw)
	require.NoError(t, err)

	// Wipe and restore.
	h.ResetStack(NewButtonPanel("empty"))
	_, ok := h.GetButton(1)
	require.False(t, ok)

	require.NoError(t, h.LoadPanelsFromValue(data))
	button, ok := h.GetButton(1)
	require.True(t, ok)
	assert.JSONEq(t, `{"value":"v"}`, string(button.ToRaw()["text"]))

	assert.Error(t, h.LoadPanelsFromValue([]byte("{broken")))
}
