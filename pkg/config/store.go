// Package config implements the on-disk device config store: one JSON file
// per device serial in a config directory, with optional change watching so
// external edits surface as reloads.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"

	"github.com/streamduck-org/streamduck/pkg/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store keeps device configs in memory and persists each under
// <dir>/<serial>.json. It implements core.ConfigStore.
type Store struct {
	dir string

	mu      sync.RWMutex
	configs map[string]core.DeviceConfig

	watcher *fsnotify.Watcher
	watchWg sync.WaitGroup
}

// NewStore opens the store over dir, creating it if needed, and loads every
// config already present.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{
		dir:     dir,
		configs: make(map[string]core.DeviceConfig),
	}
	if err := s.ReloadDeviceConfigs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) pathFor(serial string) string {
	return filepath.Join(s.dir, serial+".json")
}

// DeviceConfig returns the in-memory config for serial.
func (s *Store) DeviceConfig(serial string) (core.DeviceConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[serial]
	return cfg, ok
}

// SetDeviceConfig installs cfg in memory without persisting.
func (s *Store) SetDeviceConfig(cfg core.DeviceConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.SerialNumber] = cfg
}

// SaveDeviceConfig writes one config to disk.
func (s *Store) SaveDeviceConfig(serial string) error {
	s.mu.RLock()
	cfg, ok := s.configs[serial]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("device %q config: %w", serial, core.ErrNotFound)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("device %q config: %w: %v", serial, core.ErrDecode, err)
	}
	return os.WriteFile(s.pathFor(serial), data, 0o644)
}

// SaveDeviceConfigs writes every known config to disk, reporting the first
// failure after attempting all.
func (s *Store) SaveDeviceConfigs() error {
	s.mu.RLock()
	serials := make([]string, 0, len(s.configs))
	for serial := range s.configs {
		serials = append(serials, serial)
	}
	s.mu.RUnlock()

	var firstErr error
	for _, serial := range serials {
		if err := s.SaveDeviceConfig(serial); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReloadDeviceConfig re-reads one config from disk and installs it.
func (s *Store) ReloadDeviceConfig(serial string) (core.DeviceConfig, error) {
	data, err := os.ReadFile(s.pathFor(serial))
	if err != nil {
		return core.DeviceConfig{}, fmt.Errorf("device %q config: %w: %v", serial, core.ErrNotFound, err)
	}
	var cfg core.DeviceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return core.DeviceConfig{}, fmt.Errorf("device %q config: %w: %v", serial, core.ErrDecode, err)
	}
	cfg.SerialNumber = serial
	s.SetDeviceConfig(cfg)
	return cfg, nil
}

// ReloadDeviceConfigs re-reads every *.json in the config directory.
// Unparsable files are logged and skipped; one bad config must not take the
// rest down.
func (s *Store) ReloadDeviceConfigs() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		serial := strings.TrimSuffix(name, ".json")
		if _, err := s.ReloadDeviceConfig(serial); err != nil {
			log.Warnf("skipping device config %s: %v", name, err)
		}
	}
	return nil
}

// ExportDeviceConfig serializes a config to a portable JSON string.
func (s *Store) ExportDeviceConfig(serial string) (string, error) {
	cfg, ok := s.DeviceConfig(serial)
	if !ok {
		return "", fmt.Errorf("device %q config: %w", serial, core.ErrNotFound)
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("device %q config: %w: %v", serial, core.ErrDecode, err)
	}
	return string(data), nil
}

// ImportDeviceConfig parses a portable JSON string and installs it under
// serial, whatever serial the document itself claims.
func (s *Store) ImportDeviceConfig(serial string, data string) (core.DeviceConfig, error) {
	var cfg core.DeviceConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return core.DeviceConfig{}, fmt.Errorf("device %q config: %w: %v", serial, core.ErrDecode, err)
	}
	cfg.SerialNumber = serial
	s.SetDeviceConfig(cfg)
	return cfg, nil
}

// Watch starts watching the config directory; external writes to a device's
// file re-read it and invoke onChange with its serial. Call Close to stop.
func (s *Store) Watch(onChange func(serial string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher

	s.watchWg.Add(1)
	go func() {
		defer s.watchWg.Done()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				name := filepath.Base(event.Name)
				if !strings.HasSuffix(name, ".json") {
					continue
				}
				serial := strings.TrimSuffix(name, ".json")
				if _, err := s.ReloadDeviceConfig(serial); err != nil {
					log.Warnf("config watch: %v", err)
					continue
				}
				if onChange != nil {
					onChange(serial)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("config watch: %v", err)
			}
		}
	}()
	return nil
}

// Close stops the watcher, if started.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watchWg.Wait()
	return err
}
