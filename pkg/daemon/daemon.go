package daemon

import (
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/streamduck-org/streamduck/pkg/config"
	"github.com/streamduck-org/streamduck/pkg/core"
	"github.com/streamduck-org/streamduck/pkg/render"
	"github.com/streamduck-org/streamduck/pkg/socket"
)

// discoverInterval paces the background scan for newly plugged panels.
const discoverInterval = 3 * time.Second

// Daemon is the assembled service: registry, config store, device manager
// and socket manager, plus the background discovery loop.
type Daemon struct {
	ModuleManager *core.ModuleManager
	Devices       *DeviceManager
	Sockets       *socket.SocketManager
	Config        *config.Store

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New assembles a daemon over the given config directory. The built-in core
// module is registered; additional modules register on ModuleManager before
// Serve.
func New(configDir string) (*Daemon, error) {
	store, err := config.NewStore(configDir)
	if err != nil {
		return nil, err
	}

	mm := core.NewModuleManager()
	coreModule := render.NewCoreModule()
	if err := mm.RegisterModule(coreModule); err != nil {
		return nil, err
	}

	sockets := socket.NewSocketManager()
	devices := NewDeviceManager(mm, store, coreModule, sockets)
	socket.RegisterAll(sockets, devices)

	d := &Daemon{
		ModuleManager: mm,
		Devices:       devices,
		Sockets:       sockets,
		Config:        store,
		stop:          make(chan struct{}),
	}

	// External config edits reload the live device.
	err = store.Watch(func(serial string) {
		c, ok := devices.CoreFor(serial)
		if !ok {
			return
		}
		if cfg, ok := store.DeviceConfig(serial); ok {
			h := core.WrapCore(c)
			h.ResetStack(core.MakePanelUnique(cfg.RootPanel))
			if err := h.SetBrightness(cfg.Brightness); err != nil {
				log.Warnf("config watch: device %s: %v", serial, err)
			}
		}
	})
	if err != nil {
		log.Warnf("config watching disabled: %v", err)
	}

	return d, nil
}

// StartDiscovery spawns the background scan that brings newly plugged
// panels under management.
func (d *Daemon) StartDiscovery() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(discoverInterval)
		defer ticker.Stop()
		for {
			d.discoverOnce()
			select {
			case <-d.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (d *Daemon) discoverOnce() {
	infos, err := d.Devices.enumerate()
	if err != nil {
		log.Debugf("device discovery: %v", err)
		return
	}
	for _, info := range infos {
		if _, managed := d.Devices.CoreFor(info.Serial); managed {
			continue
		}
		if err := d.Devices.AddDevice(info.Serial); err != nil {
			log.Debugf("device discovery: %s: %v", info.Serial, err)
		}
	}
}

// Serve accepts socket clients on l until Close. Each connection is served
// on its own goroutine.
func (d *Daemon) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-d.stop:
				return nil
			default:
				return err
			}
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.Sockets.Serve(conn)
		}()
	}
}

// Close shuts the daemon down: stop discovery, drop devices, stop watching
// configs and persist them one last time.
func (d *Daemon) Close() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
	d.Devices.Close()
	if err := d.Config.SaveDeviceConfigs(); err != nil {
		log.Warnf("saving configs on shutdown: %v", err)
	}
	if err := d.Config.Close(); err != nil {
		log.Debugf("closing config store: %v", err)
	}
	d.wg.Wait()
}
