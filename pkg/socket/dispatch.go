package socket

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	jsoniter "github.com/json-iterator/go"

	"github.com/streamduck-org/streamduck/pkg/core"
	"github.com/streamduck-org/streamduck/pkg/fonts"
	"github.com/streamduck-org/streamduck/pkg/values"
)

// DeviceEntry is one row of the list_devices response.
type DeviceEntry struct {
	SerialNumber string          `json:"serial_number"`
	Online       bool            `json:"online"`
	Kind         core.DeviceKind `json:"kind"`
}

// DeviceProvider is the daemon surface the dispatcher drives: device
// lookup and lifecycle, plus the process-wide clipboard and config store.
// The daemon's device manager implements it.
type DeviceProvider interface {
	CoreFor(serial string) (*core.SDCore, bool)
	Devices() []DeviceEntry
	AddDevice(serial string) error
	RemoveDevice(serial string) error
	Clipboard() *core.Clipboard
	ConfigStore() core.ConfigStore

	// ModuleHandle returns a system handle not bound to any physical
	// device, used for device-independent module operations.
	ModuleHandle() *core.CoreHandle
}

// handle adapts a typed handler to the registry: decode data into Req,
// call fn. Missing data decodes to the zero request.
func handle[Req any](fn func(req Req) (interface{}, error)) HandlerFunc {
	return func(data jsoniter.RawMessage) (interface{}, error) {
		var req Req
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, fmt.Errorf("request payload: %w: %v", core.ErrDecode, err)
			}
		}
		return fn(req)
	}
}

type serialRequest struct {
	SerialNumber string `json:"serial_number"`
}

type keyRequest struct {
	SerialNumber string `json:"serial_number"`
	Key          uint8  `json:"key"`
}

type componentRequest struct {
	SerialNumber  string `json:"serial_number"`
	Key           uint8  `json:"key"`
	ComponentName string `json:"component_name"`
}

type emptyResponse struct{}

// RegisterAll installs every request handler on the manager. Handlers run
// under the system identity; the advisory feature gate never fires for
// socket-originated calls.
func RegisterAll(m *SocketManager, provider DeviceProvider) {
	handleFor := func(serial string) (*core.CoreHandle, error) {
		c, ok := provider.CoreFor(serial)
		if !ok {
			return nil, fmt.Errorf("device %q: %w", serial, core.ErrNotFound)
		}
		return core.WrapCore(c), nil
	}

	// --- Version ---

	m.Register("socket_api_version", handle(func(struct{}) (interface{}, error) {
		return struct {
			Version string `json:"version"`
		}{Version: SocketAPIVersion}, nil
	}))

	// --- Devices ---

	m.Register("list_devices", handle(func(struct{}) (interface{}, error) {
		return struct {
			Devices []DeviceEntry `json:"devices"`
		}{Devices: provider.Devices()}, nil
	}))

	m.Register("get_device", handle(func(req serialRequest) (interface{}, error) {
		for _, d := range provider.Devices() {
			if d.SerialNumber == req.SerialNumber {
				return d, nil
			}
		}
		return nil, fmt.Errorf("device %q: %w", req.SerialNumber, core.ErrNotFound)
	}))

	m.Register("add_device", handle(func(req serialRequest) (interface{}, error) {
		if err := provider.AddDevice(req.SerialNumber); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("remove_device", handle(func(req serialRequest) (interface{}, error) {
		if err := provider.RemoveDevice(req.SerialNumber); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("set_brightness", handle(func(req struct {
		SerialNumber string `json:"serial_number"`
		Brightness   uint8  `json:"brightness"`
	}) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		if err := h.SetBrightness(req.Brightness); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	// --- Device config ---

	m.Register("reload_device_config", handle(func(req serialRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		cfg, err := provider.ConfigStore().ReloadDeviceConfig(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		return emptyResponse{}, installConfig(h, cfg)
	}))

	m.Register("reload_device_configs", handle(func(struct{}) (interface{}, error) {
		if err := provider.ConfigStore().ReloadDeviceConfigs(); err != nil {
			return nil, err
		}
		for _, d := range provider.Devices() {
			h, err := handleFor(d.SerialNumber)
			if err != nil {
				continue
			}
			if cfg, ok := provider.ConfigStore().DeviceConfig(d.SerialNumber); ok {
				if err := installConfig(h, cfg); err != nil {
					return nil, err
				}
			}
		}
		return emptyResponse{}, nil
	}))

	m.Register("save_device_config", handle(func(req serialRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		h.CommitChanges()
		if err := provider.ConfigStore().SaveDeviceConfig(req.SerialNumber); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("save_device_configs", handle(func(struct{}) (interface{}, error) {
		for _, d := range provider.Devices() {
			if h, err := handleFor(d.SerialNumber); err == nil {
				h.CommitChanges()
			}
		}
		if err := provider.ConfigStore().SaveDeviceConfigs(); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("get_device_config", handle(func(req serialRequest) (interface{}, error) {
		cfg, ok := provider.ConfigStore().DeviceConfig(req.SerialNumber)
		if !ok {
			return nil, fmt.Errorf("device %q config: %w", req.SerialNumber, core.ErrNotFound)
		}
		return struct {
			Config core.DeviceConfig `json:"config"`
		}{Config: cfg}, nil
	}))

	m.Register("export_device_config", handle(func(req serialRequest) (interface{}, error) {
		exported, err := provider.ConfigStore().ExportDeviceConfig(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		return struct {
			Config string `json:"config"`
		}{Config: exported}, nil
	}))

	m.Register("import_device_config", handle(func(req struct {
		SerialNumber string `json:"serial_number"`
		Config       string `json:"config"`
	}) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		cfg, err := provider.ConfigStore().ImportDeviceConfig(req.SerialNumber, req.Config)
		if err != nil {
			return nil, err
		}
		return emptyResponse{}, installConfig(h, cfg)
	}))

	// --- Panels ---

	m.Register("get_stack", handle(func(req serialRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		stack := h.GetStack()
		panels := make([]core.RawPanel, 0, len(stack))
		for _, p := range stack {
			panels = append(panels, core.SerializePanel(p))
		}
		return struct {
			Panels []core.RawPanel `json:"panels"`
		}{Panels: panels}, nil
	}))

	m.Register("get_stack_names", handle(func(req serialRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		return struct {
			Names []string `json:"names"`
		}{Names: h.GetStackNames()}, nil
	}))

	m.Register("get_current_screen", handle(func(req serialRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		screen, ok := h.GetCurrentScreen()
		if !ok {
			return nil, fmt.Errorf("no current screen: %w", core.ErrNotFound)
		}
		return struct {
			Screen core.RawPanel `json:"screen"`
		}{Screen: core.SerializePanel(screen)}, nil
	}))

	m.Register("push_screen", handle(func(req struct {
		SerialNumber string        `json:"serial_number"`
		Screen       core.RawPanel `json:"screen"`
	}) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		h.PushScreen(core.MakePanelUnique(req.Screen))
		return emptyResponse{}, nil
	}))

	m.Register("pop_screen", handle(func(req serialRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		h.PopScreen()
		return emptyResponse{}, nil
	}))

	m.Register("forcibly_pop_screen", handle(func(req serialRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		h.ForciblyPopScreen()
		return emptyResponse{}, nil
	}))

	m.Register("replace_screen", handle(func(req struct {
		SerialNumber string        `json:"serial_number"`
		Screen       core.RawPanel `json:"screen"`
	}) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		h.ReplaceScreen(core.MakePanelUnique(req.Screen))
		return emptyResponse{}, nil
	}))

	m.Register("reset_stack", handle(func(req struct {
		SerialNumber string        `json:"serial_number"`
		Screen       core.RawPanel `json:"screen"`
	}) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		h.ResetStack(core.MakePanelUnique(req.Screen))
		return emptyResponse{}, nil
	}))

	m.Register("drop_stack_to_root", handle(func(req serialRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		h.DropStackToRoot()
		return emptyResponse{}, nil
	}))

	// --- Buttons ---

	m.Register("get_button", handle(func(req keyRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		button, ok := h.GetButton(req.Key)
		if !ok {
			return nil, fmt.Errorf("no button at key %d: %w", req.Key, core.ErrNotFound)
		}
		return struct {
			Button core.RawButton `json:"button"`
		}{Button: button.ToRaw()}, nil
	}))

	m.Register("set_button", handle(func(req struct {
		SerialNumber string         `json:"serial_number"`
		Key          uint8          `json:"key"`
		Button       core.RawButton `json:"button"`
	}) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		if err := h.SetButton(req.Key, core.MakeButtonUnique(req.Button)); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("clear_button", handle(func(req keyRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		if err := h.ClearButton(req.Key); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("new_button", handle(func(req keyRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		if err := h.NewButton(req.Key); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("new_button_from_component", handle(func(req componentRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		if err := h.NewButtonFromComponent(req.Key, req.ComponentName); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("copy_button", handle(func(req keyRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		button, ok := h.GetButton(req.Key)
		if !ok {
			return nil, fmt.Errorf("no button at key %d: %w", req.Key, core.ErrNotFound)
		}
		provider.Clipboard().Copy(button.ToRaw())
		return emptyResponse{}, nil
	}))

	m.Register("paste_button", handle(func(req keyRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		reference, ok := provider.Clipboard().Get()
		if !ok {
			return nil, fmt.Errorf("clipboard empty: %w", core.ErrNotFound)
		}
		if err := h.PasteButton(req.Key, reference); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("clipboard_status", handle(func(struct{}) (interface{}, error) {
		status := "empty"
		if provider.Clipboard().Full() {
			status = "full"
		}
		return struct {
			Status string `json:"status"`
		}{Status: status}, nil
	}))

	// --- Components ---

	m.Register("add_component", handle(func(req componentRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		if err := h.AddComponent(req.Key, req.ComponentName); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("remove_component", handle(func(req componentRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		if err := h.RemoveComponent(req.Key, req.ComponentName); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("get_component_values", handle(func(req componentRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		vals, err := h.GetComponentValuesWithPaths(req.Key, req.ComponentName)
		if err != nil {
			return nil, err
		}
		return struct {
			Values []values.UIPathValue `json:"values"`
		}{Values: vals}, nil
	}))

	m.Register("set_component_value", handle(func(req struct {
		SerialNumber  string              `json:"serial_number"`
		Key           uint8               `json:"key"`
		ComponentName string              `json:"component_name"`
		Value         values.UIPathValue  `json:"value"`
	}) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		if err := h.SetComponentValueByPath(req.Key, req.ComponentName, req.Value); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("add_component_value", handle(func(req struct {
		SerialNumber  string `json:"serial_number"`
		Key           uint8  `json:"key"`
		ComponentName string `json:"component_name"`
		Path          string `json:"path"`
	}) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		if err := h.AddElementComponentValue(req.Key, req.ComponentName, req.Path); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("remove_component_value", handle(func(req struct {
		SerialNumber  string `json:"serial_number"`
		Key           uint8  `json:"key"`
		ComponentName string `json:"component_name"`
		Path          string `json:"path"`
		Index         int    `json:"index"`
	}) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		if err := h.RemoveElementComponentValue(req.Key, req.ComponentName, req.Path, req.Index); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	// --- Modules ---

	m.Register("list_modules", handle(func(struct{}) (interface{}, error) {
		var metadata []core.PluginMetadata
		for _, module := range provider.ModuleHandle().ModuleManager().GetModuleList() {
			metadata = append(metadata, module.Metadata())
		}
		return struct {
			Modules []core.PluginMetadata `json:"modules"`
		}{Modules: metadata}, nil
	}))

	m.Register("list_components", handle(func(struct{}) (interface{}, error) {
		return struct {
			Components map[string]map[string]core.ComponentDefinition `json:"components"`
		}{Components: provider.ModuleHandle().ModuleManager().ListComponents()}, nil
	}))

	m.Register("get_module_values", handle(func(req struct {
		ModuleName string `json:"module_name"`
	}) (interface{}, error) {
		h := provider.ModuleHandle()
		vals, err := h.GetModuleValues(req.ModuleName)
		if err != nil {
			return nil, err
		}
		return struct {
			Values []values.UIPathValue `json:"values"`
		}{Values: vals}, nil
	}))

	m.Register("set_module_value", handle(func(req struct {
		ModuleName string             `json:"module_name"`
		Value      values.UIPathValue `json:"value"`
	}) (interface{}, error) {
		h := provider.ModuleHandle()
		if err := h.SetModuleValue(req.ModuleName, req.Value); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("add_module_value", handle(func(req struct {
		ModuleName string `json:"module_name"`
		Path       string `json:"path"`
	}) (interface{}, error) {
		h := provider.ModuleHandle()
		if err := h.AddModuleValue(req.ModuleName, req.Path); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("remove_module_value", handle(func(req struct {
		ModuleName string `json:"module_name"`
		Path       string `json:"path"`
		Index      int    `json:"index"`
	}) (interface{}, error) {
		h := provider.ModuleHandle()
		if err := h.RemoveModuleValue(req.ModuleName, req.Path, req.Index); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	// --- Images and fonts ---

	m.Register("list_images", handle(func(req serialRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		return struct {
			Images map[string]string `json:"images"`
		}{Images: h.ListImages()}, nil
	}))

	m.Register("add_image", handle(func(req struct {
		SerialNumber string `json:"serial_number"`
		ImageData    string `json:"image_data"`
	}) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		id, err := h.AddImage(req.ImageData)
		if err != nil {
			return nil, err
		}
		return struct {
			Identifier string `json:"identifier"`
		}{Identifier: id}, nil
	}))

	m.Register("remove_image", handle(func(req struct {
		SerialNumber string `json:"serial_number"`
		Identifier   string `json:"identifier"`
	}) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		if err := h.RemoveImage(req.Identifier); err != nil {
			return nil, err
		}
		return emptyResponse{}, nil
	}))

	m.Register("list_fonts", handle(func(struct{}) (interface{}, error) {
		return struct {
			Fonts []string `json:"fonts"`
		}{Fonts: fonts.Names()}, nil
	}))

	// --- Ops ---

	m.Register("commit_changes", handle(func(req serialRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		h.CommitChanges()
		return emptyResponse{}, nil
	}))

	m.Register("do_button_action", handle(func(req keyRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		h.ButtonDown(req.Key)
		h.ButtonUp(req.Key)
		return emptyResponse{}, nil
	}))

	m.Register("get_button_image", handle(func(req keyRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		img, err := h.GetButtonImage(req.Key)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding button image: %w: %v", core.ErrDecode, err)
		}
		return struct {
			Image string `json:"image"`
		}{Image: base64.StdEncoding.EncodeToString(buf.Bytes())}, nil
	}))

	m.Register("get_button_images", handle(func(req serialRequest) (interface{}, error) {
		h, err := handleFor(req.SerialNumber)
		if err != nil {
			return nil, err
		}
		images := make(map[uint8]string)
		for key, img := range h.GetButtonImages() {
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				continue
			}
			images[key] = base64.StdEncoding.EncodeToString(buf.Bytes())
		}
		return struct {
			Images map[uint8]string `json:"images"`
		}{Images: images}, nil
	}))
}

// installConfig applies a freshly loaded config to the live device: reseed
// the stack from the config's root panel and restore its brightness.
func installConfig(h *core.CoreHandle, cfg core.DeviceConfig) error {
	h.ResetStack(core.MakePanelUnique(cfg.RootPanel))
	return h.SetBrightness(cfg.Brightness)
}
