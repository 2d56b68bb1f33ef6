package core

// SDCoreEvent is an event delivered to modules. The variants form a closed
// set; modules type-switch on the concrete types.
type SDCoreEvent interface {
	coreEvent()
}

// ButtonAddedEvent fires when a button is placed into an empty slot.
type ButtonAddedEvent struct {
	Key         uint8
	Panel       *ButtonPanel
	AddedButton *UniqueButton
}

// ButtonUpdatedEvent fires when an existing button is replaced or edited.
// OldButton is a detached snapshot; NewButton is the live handle.
type ButtonUpdatedEvent struct {
	Key       uint8
	Panel     *ButtonPanel
	NewButton *UniqueButton
	OldButton *UniqueButton
}

// ButtonDeletedEvent fires when a slot is cleared.
type ButtonDeletedEvent struct {
	Key           uint8
	Panel         *ButtonPanel
	DeletedButton *UniqueButton
}

// ButtonDownEvent fires when a physical key is pressed.
type ButtonDownEvent struct {
	Key uint8
}

// ButtonUpEvent fires when a physical key is released.
type ButtonUpEvent struct {
	Key uint8
}

// ButtonActionEvent fires after ButtonUpEvent, addressed only to modules
// owning components present on the pressed button.
type ButtonActionEvent struct {
	Key           uint8
	Panel         *ButtonPanel
	PressedButton *UniqueButton
}

// PanelPushedEvent fires when a panel is pushed onto the stack.
type PanelPushedEvent struct {
	NewPanel *ButtonPanel
}

// PanelPoppedEvent fires when a panel is popped off the stack.
type PanelPoppedEvent struct {
	PoppedPanel *ButtonPanel
}

// PanelReplacedEvent fires when the top panel is swapped. OldPanel is nil
// when the stack was empty.
type PanelReplacedEvent struct {
	OldPanel *ButtonPanel
	NewPanel *ButtonPanel
}

// StackResetEvent fires when the stack is cleared and reseeded.
type StackResetEvent struct {
	NewPanel *ButtonPanel
}

func (ButtonAddedEvent) coreEvent()   {}
func (ButtonUpdatedEvent) coreEvent() {}
func (ButtonDeletedEvent) coreEvent() {}
func (ButtonDownEvent) coreEvent()    {}
func (ButtonUpEvent) coreEvent()      {}
func (ButtonActionEvent) coreEvent()  {}
func (PanelPushedEvent) coreEvent()   {}
func (PanelPoppedEvent) coreEvent()   {}
func (PanelReplacedEvent) coreEvent() {}
func (StackResetEvent) coreEvent()    {}

// Global event type tags, the "type" field of SDGlobalEvent frames.
const (
	GlobalDeviceConnected    = "device_connected"
	GlobalDeviceDisconnected = "device_disconnected"
	GlobalButtonAdded        = "button_added"
	GlobalButtonUpdated      = "button_updated"
	GlobalButtonDeleted      = "button_deleted"
	GlobalButtonDown         = "button_down"
	GlobalButtonUp           = "button_up"
	GlobalButtonAction       = "button_action"
	GlobalPanelPushed        = "panel_pushed"
	GlobalPanelPopped        = "panel_popped"
	GlobalPanelReplaced      = "panel_replaced"
	GlobalStackReset         = "stack_reset"
	GlobalBrightnessChanged  = "brightness_changed"
)

// SDGlobalEvent is the externally visible event stream: the subset of core
// events interesting to clients plus device lifecycle, with all payloads in
// detached raw form.
type SDGlobalEvent struct {
	Type         string    `json:"type"`
	SerialNumber string    `json:"serial_number,omitempty"`
	Key          *uint8    `json:"key,omitempty"`
	NewButton    RawButton `json:"new_button,omitempty"`
	OldButton    RawButton `json:"old_button,omitempty"`
	NewPanel     *RawPanel `json:"new_panel,omitempty"`
	OldPanel     *RawPanel `json:"old_panel,omitempty"`
	Brightness   *uint8    `json:"brightness,omitempty"`
}

// GlobalEventSink receives global events for fan-out to clients. The socket
// layer implements it; a sink must never block the caller.
type GlobalEventSink interface {
	Emit(SDGlobalEvent)
}

// CoreEventToGlobal converts a module-facing event to its client-facing
// form, snapshotting live handles so the payload shares nothing with the
// tree.
func CoreEventToGlobal(ev SDCoreEvent, serial string) SDGlobalEvent {
	out := SDGlobalEvent{SerialNumber: serial}
	switch e := ev.(type) {
	case ButtonAddedEvent:
		out.Type = GlobalButtonAdded
		out.Key = &e.Key
		out.NewButton = e.AddedButton.ToRaw()
	case ButtonUpdatedEvent:
		out.Type = GlobalButtonUpdated
		out.Key = &e.Key
		out.NewButton = e.NewButton.ToRaw()
		out.OldButton = e.OldButton.ToRaw()
	case ButtonDeletedEvent:
		out.Type = GlobalButtonDeleted
		out.Key = &e.Key
		out.OldButton = e.DeletedButton.ToRaw()
	case ButtonDownEvent:
		out.Type = GlobalButtonDown
		out.Key = &e.Key
	case ButtonUpEvent:
		out.Type = GlobalButtonUp
		out.Key = &e.Key
	case ButtonActionEvent:
		out.Type = GlobalButtonAction
		out.Key = &e.Key
		out.NewButton = e.PressedButton.ToRaw()
	case PanelPushedEvent:
		out.Type = GlobalPanelPushed
		out.NewPanel = rawPanelPtr(e.NewPanel)
	case PanelPoppedEvent:
		out.Type = GlobalPanelPopped
		out.OldPanel = rawPanelPtr(e.PoppedPanel)
	case PanelReplacedEvent:
		out.Type = GlobalPanelReplaced
		out.NewPanel = rawPanelPtr(e.NewPanel)
		out.OldPanel = rawPanelPtr(e.OldPanel)
	case StackResetEvent:
		out.Type = GlobalStackReset
		out.NewPanel = rawPanelPtr(e.NewPanel)
	}
	return out
}

func rawPanelPtr(bp *ButtonPanel) *RawPanel {
	if bp == nil {
		return nil
	}
	raw := SerializePanel(bp)
	return &raw
}
