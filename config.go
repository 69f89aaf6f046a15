// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package signalmonitor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PinSystem selects which pin-numbering convention Config.Pin is expressed
// in; pinconv.Convert does the actual translation to BCM-GPIO.
type PinSystem int

const (
	PinSystemDefault PinSystem = iota
	PinSystemGPIO
	PinSystemPhys
	PinSystemWiringPi
)

func (p PinSystem) String() string {
	switch p {
	case PinSystemGPIO:
		return "gpio"
	case PinSystemPhys:
		return "phys"
	case PinSystemWiringPi:
		return "wiring_pi"
	default:
		return "default"
	}
}

// ParsePinSystem maps a config/flag string to its PinSystem value.
func ParsePinSystem(s string) (PinSystem, error) {
	switch s {
	case "", "default":
		return PinSystemDefault, nil
	case "gpio":
		return PinSystemGPIO, nil
	case "phys":
		return PinSystemPhys, nil
	case "wiring_pi":
		return PinSystemWiringPi, nil
	default:
		return PinSystemDefault, fmt.Errorf("signalmonitor: unknown pin_system %q", s)
	}
}

// UnmarshalYAML lets the config file spell this field as a lowercase
// string instead of a raw integer.
func (p *PinSystem) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParsePinSystem(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Config is the tunable surface of a deployment: which pin to open, which
// numbering convention it is expressed in, debug tracing, and per-channel
// display labels. The wire-format constants of the decoder itself are
// never config-driven.
type Config struct {
	Pin           int               `yaml:"pin"`
	PinSystem     PinSystem         `yaml:"pin_system"`
	DebugOutput   bool              `yaml:"debug_output"`
	ChannelLabels map[string]string `yaml:"channel_labels"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("signalmonitor: reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("signalmonitor: parsing config %s: %w", path, err)
	}
	return cfg, nil
}
