package client

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/streamduck-org/streamduck/pkg/core"
	"github.com/streamduck-org/streamduck/pkg/socket"
	"github.com/streamduck-org/streamduck/pkg/values"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Typed wrappers over Request, one per daemon message type.

type serialBody struct {
	SerialNumber string `json:"serial_number"`
}

type keyBody struct {
	SerialNumber string `json:"serial_number"`
	Key          uint8  `json:"key"`
}

type componentBody struct {
	SerialNumber  string `json:"serial_number"`
	Key           uint8  `json:"key"`
	ComponentName string `json:"component_name"`
}

// Version returns the daemon's socket API version.
func (c *Client) Version() (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.Request("socket_api_version", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// ListDevices lists managed devices.
func (c *Client) ListDevices() ([]socket.DeviceEntry, error) {
	var out struct {
		Devices []socket.DeviceEntry `json:"devices"`
	}
	if err := c.Request("list_devices", nil, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

// GetDevice returns one device's entry.
func (c *Client) GetDevice(serial string) (socket.DeviceEntry, error) {
	var out socket.DeviceEntry
	err := c.Request("get_device", serialBody{SerialNumber: serial}, &out)
	return out, err
}

// AddDevice asks the daemon to manage the device with the given serial.
func (c *Client) AddDevice(serial string) error {
	return c.Request("add_device", serialBody{SerialNumber: serial}, nil)
}

// RemoveDevice drops a device from management.
func (c *Client) RemoveDevice(serial string) error {
	return c.Request("remove_device", serialBody{SerialNumber: serial}, nil)
}

// SetBrightness sets a device's backlight, 0..100.
func (c *Client) SetBrightness(serial string, brightness uint8) error {
	return c.Request("set_brightness", struct {
		SerialNumber string `json:"serial_number"`
		Brightness   uint8  `json:"brightness"`
	}{serial, brightness}, nil)
}

// ReloadDeviceConfig re-reads one device's config from storage.
func (c *Client) ReloadDeviceConfig(serial string) error {
	return c.Request("reload_device_config", serialBody{SerialNumber: serial}, nil)
}

// ReloadDeviceConfigs re-reads every device config from storage.
func (c *Client) ReloadDeviceConfigs() error {
	return c.Request("reload_device_configs", nil, nil)
}

// SaveDeviceConfig persists one device's config.
func (c *Client) SaveDeviceConfig(serial string) error {
	return c.Request("save_device_config", serialBody{SerialNumber: serial}, nil)
}

// SaveDeviceConfigs persists every device config.
func (c *Client) SaveDeviceConfigs() error {
	return c.Request("save_device_configs", nil, nil)
}

// GetDeviceConfig fetches a device's full config.
func (c *Client) GetDeviceConfig(serial string) (core.DeviceConfig, error) {
	var out struct {
		Config core.DeviceConfig `json:"config"`
	}
	err := c.Request("get_device_config", serialBody{SerialNumber: serial}, &out)
	return out.Config, err
}

// ExportDeviceConfig serializes a device's config to a portable string.
func (c *Client) ExportDeviceConfig(serial string) (string, error) {
	var out struct {
		Config string `json:"config"`
	}
	err := c.Request("export_device_config", serialBody{SerialNumber: serial}, &out)
	return out.Config, err
}

// ImportDeviceConfig installs a previously exported config on a device.
func (c *Client) ImportDeviceConfig(serial, config string) error {
	return c.Request("import_device_config", struct {
		SerialNumber string `json:"serial_number"`
		Config       string `json:"config"`
	}{serial, config}, nil)
}

// GetStack returns the device's panel stack, bottom first.
func (c *Client) GetStack(serial string) ([]core.RawPanel, error) {
	var out struct {
		Panels []core.RawPanel `json:"panels"`
	}
	err := c.Request("get_stack", serialBody{SerialNumber: serial}, &out)
	return out.Panels, err
}

// GetStackNames returns the stack's display names, bottom first.
func (c *Client) GetStackNames(serial string) ([]string, error) {
	var out struct {
		Names []string `json:"names"`
	}
	err := c.Request("get_stack_names", serialBody{SerialNumber: serial}, &out)
	return out.Names, err
}

// GetCurrentScreen returns the visible panel.
func (c *Client) GetCurrentScreen(serial string) (core.RawPanel, error) {
	var out struct {
		Screen core.RawPanel `json:"screen"`
	}
	err := c.Request("get_current_screen", serialBody{SerialNumber: serial}, &out)
	return out.Screen, err
}

// PushScreen pushes a panel onto the device's stack.
func (c *Client) PushScreen(serial string, screen core.RawPanel) error {
	return c.Request("push_screen", struct {
		SerialNumber string        `json:"serial_number"`
		Screen       core.RawPanel `json:"screen"`
	}{serial, screen}, nil)
}

// PopScreen pops the visible panel; the root panel stays pinned.
func (c *Client) PopScreen(serial string) error {
	return c.Request("pop_screen", serialBody{SerialNumber: serial}, nil)
}

// ForciblyPopScreen pops even the last panel.
func (c *Client) ForciblyPopScreen(serial string) error {
	return c.Request("forcibly_pop_screen", serialBody{SerialNumber: serial}, nil)
}

// ReplaceScreen swaps the visible panel.
func (c *Client) ReplaceScreen(serial string, screen core.RawPanel) error {
	return c.Request("replace_screen", struct {
		SerialNumber string        `json:"serial_number"`
		Screen       core.RawPanel `json:"screen"`
	}{serial, screen}, nil)
}

// ResetStack clears the stack and seeds it with screen.
func (c *Client) ResetStack(serial string, screen core.RawPanel) error {
	return c.Request("reset_stack", struct {
		SerialNumber string        `json:"serial_number"`
		Screen       core.RawPanel `json:"screen"`
	}{serial, screen}, nil)
}

// DropStackToRoot pops until only the root panel remains.
func (c *Client) DropStackToRoot(serial string) error {
	return c.Request("drop_stack_to_root", serialBody{SerialNumber: serial}, nil)
}

// GetButton fetches the button snapshot at key.
func (c *Client) GetButton(serial string, key uint8) (core.RawButton, error) {
	var out struct {
		Button core.RawButton `json:"button"`
	}
	err := c.Request("get_button", keyBody{serial, key}, &out)
	return out.Button, err
}

// SetButton places a button snapshot at key.
func (c *Client) SetButton(serial string, key uint8, button core.RawButton) error {
	return c.Request("set_button", struct {
		SerialNumber string         `json:"serial_number"`
		Key          uint8          `json:"key"`
		Button       core.RawButton `json:"button"`
	}{serial, key, button}, nil)
}

// ClearButton removes the button at key.
func (c *Client) ClearButton(serial string, key uint8) error {
	return c.Request("clear_button", keyBody{serial, key}, nil)
}

// NewButton places an empty button at key.
func (c *Client) NewButton(serial string, key uint8) error {
	return c.Request("new_button", keyBody{serial, key}, nil)
}

// NewButtonFromComponent places a button at key seeded with one component.
func (c *Client) NewButtonFromComponent(serial string, key uint8, component string) error {
	return c.Request("new_button_from_component", componentBody{serial, key, component}, nil)
}

// CopyButton snapshots the button at key into the daemon clipboard.
func (c *Client) CopyButton(serial string, key uint8) error {
	return c.Request("copy_button", keyBody{serial, key}, nil)
}

// PasteButton pastes the daemon clipboard at key.
func (c *Client) PasteButton(serial string, key uint8) error {
	return c.Request("paste_button", keyBody{serial, key}, nil)
}

// ClipboardStatus reports whether the daemon clipboard holds a button.
func (c *Client) ClipboardStatus() (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := c.Request("clipboard_status", nil, &out)
	return out.Status, err
}

// AddComponent adds a component to the button at key.
func (c *Client) AddComponent(serial string, key uint8, component string) error {
	return c.Request("add_component", componentBody{serial, key, component}, nil)
}

// RemoveComponent removes a component from the button at key.
func (c *Client) RemoveComponent(serial string, key uint8, component string) error {
	return c.Request("remove_component", componentBody{serial, key, component}, nil)
}

// GetComponentValues fetches a component's path-annotated value tree.
func (c *Client) GetComponentValues(serial string, key uint8, component string) ([]values.UIPathValue, error) {
	var out struct {
		Values []values.UIPathValue `json:"values"`
	}
	err := c.Request("get_component_values", componentBody{serial, key, component}, &out)
	return out.Values, err
}

// SetComponentValue applies one path-addressed edit to a component.
func (c *Client) SetComponentValue(serial string, key uint8, component string, value values.UIPathValue) error {
	return c.Request("set_component_value", struct {
		SerialNumber  string             `json:"serial_number"`
		Key           uint8              `json:"key"`
		ComponentName string             `json:"component_name"`
		Value         values.UIPathValue `json:"value"`
	}{serial, key, component, value}, nil)
}

// AddComponentValue appends a template element to an array value.
func (c *Client) AddComponentValue(serial string, key uint8, component, path string) error {
	return c.Request("add_component_value", struct {
		SerialNumber  string `json:"serial_number"`
		Key           uint8  `json:"key"`
		ComponentName string `json:"component_name"`
		Path          string `json:"path"`
	}{serial, key, component, path}, nil)
}

// RemoveComponentValue removes an element from an array value.
func (c *Client) RemoveComponentValue(serial string, key uint8, component, path string, index int) error {
	return c.Request("remove_component_value", struct {
		SerialNumber  string `json:"serial_number"`
		Key           uint8  `json:"key"`
		ComponentName string `json:"component_name"`
		Path          string `json:"path"`
		Index         int    `json:"index"`
	}{serial, key, component, path, index}, nil)
}

// ListModules lists registered module metadata.
func (c *Client) ListModules() ([]core.PluginMetadata, error) {
	var out struct {
		Modules []core.PluginMetadata `json:"modules"`
	}
	err := c.Request("list_modules", nil, &out)
	return out.Modules, err
}

// ListComponents returns the namespaced component listing.
func (c *Client) ListComponents() (map[string]map[string]core.ComponentDefinition, error) {
	var out struct {
		Components map[string]map[string]core.ComponentDefinition `json:"components"`
	}
	err := c.Request("list_components", nil, &out)
	return out.Components, err
}

// GetModuleValues fetches a module's settings tree.
func (c *Client) GetModuleValues(module string) ([]values.UIPathValue, error) {
	var out struct {
		Values []values.UIPathValue `json:"values"`
	}
	err := c.Request("get_module_values", struct {
		ModuleName string `json:"module_name"`
	}{module}, &out)
	return out.Values, err
}

// SetModuleValue applies one path-addressed edit to a module's settings.
func (c *Client) SetModuleValue(module string, value values.UIPathValue) error {
	return c.Request("set_module_value", struct {
		ModuleName string             `json:"module_name"`
		Value      values.UIPathValue `json:"value"`
	}{module, value}, nil)
}

// AddModuleValue appends a template element to an array in module settings.
func (c *Client) AddModuleValue(module, path string) error {
	return c.Request("add_module_value", struct {
		ModuleName string `json:"module_name"`
		Path       string `json:"path"`
	}{module, path}, nil)
}

// RemoveModuleValue removes an array element from module settings.
func (c *Client) RemoveModuleValue(module, path string, index int) error {
	return c.Request("remove_module_value", struct {
		ModuleName string `json:"module_name"`
		Path       string `json:"path"`
		Index      int    `json:"index"`
	}{module, path, index}, nil)
}

// ListImages lists a device's uploaded images.
func (c *Client) ListImages(serial string) (map[string]string, error) {
	var out struct {
		Images map[string]string `json:"images"`
	}
	err := c.Request("list_images", serialBody{SerialNumber: serial}, &out)
	return out.Images, err
}

// AddImage uploads a base64 PNG, returning its identifier.
func (c *Client) AddImage(serial, imageData string) (string, error) {
	var out struct {
		Identifier string `json:"identifier"`
	}
	err := c.Request("add_image", struct {
		SerialNumber string `json:"serial_number"`
		ImageData    string `json:"image_data"`
	}{serial, imageData}, &out)
	return out.Identifier, err
}

// RemoveImage drops an uploaded image.
func (c *Client) RemoveImage(serial, identifier string) error {
	return c.Request("remove_image", struct {
		SerialNumber string `json:"serial_number"`
		Identifier   string `json:"identifier"`
	}{serial, identifier}, nil)
}

// ListFonts lists registered font names.
func (c *Client) ListFonts() ([]string, error) {
	var out struct {
		Fonts []string `json:"fonts"`
	}
	err := c.Request("list_fonts", nil, &out)
	return out.Fonts, err
}

// CommitChanges folds live device state back into its config.
func (c *Client) CommitChanges(serial string) error {
	return c.Request("commit_changes", serialBody{SerialNumber: serial}, nil)
}

// DoButtonAction simulates a press and release of key.
func (c *Client) DoButtonAction(serial string, key uint8) error {
	return c.Request("do_button_action", keyBody{serial, key}, nil)
}

// GetButtonImage renders a single key, returning a base64 PNG.
func (c *Client) GetButtonImage(serial string, key uint8) (string, error) {
	var out struct {
		Image string `json:"image"`
	}
	err := c.Request("get_button_image", keyBody{serial, key}, &out)
	return out.Image, err
}

// GetButtonImages renders the visible panel, returning base64 PNGs by key.
func (c *Client) GetButtonImages(serial string) (map[uint8]string, error) {
	var out struct {
		Images map[uint8]string `json:"images"`
	}
	err := c.Request("get_button_images", serialBody{SerialNumber: serial}, &out)
	return out.Images, err
}
