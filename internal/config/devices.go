package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeviceConfig describes one device to connect to.
type DeviceConfig struct {
	// ID is the device MAC address as used in its deviceID attributes.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	// Port overrides the websocket port.
	Port int `yaml:"port,omitempty"`
}

type devicesFile struct {
	Devices []DeviceConfig `yaml:"devices"`
}

// LoadDevices reads the device list from a YAML file. A missing file yields
// an empty list.
func LoadDevices(path string) ([]DeviceConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read devices file: %w", err)
	}

	var file devicesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse devices file %s: %w", path, err)
	}
	for i, device := range file.Devices {
		if err := device.validate(); err != nil {
			return nil, fmt.Errorf("devices file %s entry %d: %w", path, i+1, err)
		}
		file.Devices[i].ID = strings.ToUpper(strings.TrimSpace(device.ID))
	}
	return file.Devices, nil
}

// ParseDeviceList parses ID@host entries as given in the DEVICES variable.
func ParseDeviceList(entries []string) ([]DeviceConfig, error) {
	devices := make([]DeviceConfig, 0, len(entries))
	for _, entry := range entries {
		id, host, ok := strings.Cut(entry, "@")
		device := DeviceConfig{ID: strings.ToUpper(strings.TrimSpace(id)), Host: strings.TrimSpace(host)}
		if !ok {
			return nil, fmt.Errorf("DEVICES entry %q must look like ID@host", entry)
		}
		if err := device.validate(); err != nil {
			return nil, fmt.Errorf("DEVICES entry %q: %w", entry, err)
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// MergeDevices appends extra to base, skipping ids already present.
func MergeDevices(base, extra []DeviceConfig) []DeviceConfig {
	seen := make(map[string]bool, len(base))
	merged := make([]DeviceConfig, 0, len(base)+len(extra))
	for _, device := range append(append([]DeviceConfig(nil), base...), extra...) {
		if seen[device.ID] {
			continue
		}
		seen[device.ID] = true
		merged = append(merged, device)
	}
	return merged
}

func (d DeviceConfig) validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("device id is required")
	}
	if strings.TrimSpace(d.Host) == "" {
		return errors.New("device host is required")
	}
	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("invalid port %d", d.Port)
	}
	return nil
}
