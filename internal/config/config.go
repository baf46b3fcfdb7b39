// Package config loads device layout descriptions from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeviceConfig describes one emulated device in the guest physical
// address space. Base and Length accept hex literals in YAML.
type DeviceConfig struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Base     uint64 `yaml:"base"`
	Length   uint64 `yaml:"length,omitempty"`

	// Cores is the context count for an interrupt controller.
	Cores int `yaml:"cores,omitempty"`

	// Frequency is the tick rate in Hz for a timer.
	Frequency uint64 `yaml:"frequency,omitempty"`

	// Line is the interrupt line a console or timer asserts.
	Line uint32 `yaml:"line,omitempty"`
}

// Layout is the top-level device layer description.
type Layout struct {
	Devices []DeviceConfig `yaml:"devices"`
}

func (l *Layout) normalize() {
	for i := range l.Devices {
		if l.Devices[i].Category == "interrupt-controller" && l.Devices[i].Cores == 0 {
			l.Devices[i].Cores = 1
		}
	}
}

// Parse decodes a layout from YAML bytes.
func Parse(data []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("parse device layout: %w", err)
	}
	l.normalize()
	return l, nil
}

// Load reads and decodes a layout file.
func Load(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read %s: %w", path, err)
	}
	l, err := Parse(data)
	if err != nil {
		return Layout{}, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Write encodes a layout to a YAML file. Useful for emitting templates.
func Write(path string, l Layout) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&l); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
