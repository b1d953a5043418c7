// Package config loads the host simulator's runtime configuration: which
// link to dial, and the baud rate to approximate when throttling writes,
// which matters for a TCP link that has no real baud rate of its own.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
	"periph.io/x/periph/conn/physic"
)

// Config is the host simulator's YAML runtime configuration.
type Config struct {
	// Link selects the transport: "tcp" dials TCPAddr; "serial" opens
	// SerialDevice as a raw file (the OS/stty is expected to have already
	// configured line discipline; this tool does not touch termios).
	Link         string `yaml:"link"`
	TCPAddr      string `yaml:"tcp_addr"`
	SerialDevice string `yaml:"serial_device"`
	BaudRate     string `yaml:"baud_rate"`

	baud physic.Frequency
}

// Baud returns the parsed baud rate as a periph physic.Frequency.
func (c Config) Baud() physic.Frequency { return c.baud }

// Load reads and validates a host simulator config file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if c.BaudRate == "" {
		c.BaudRate = "115200Hz"
	}
	if err := c.baud.Set(c.BaudRate); err != nil {
		return Config{}, fmt.Errorf("config: invalid baud_rate %q: %w", c.BaudRate, err)
	}

	switch c.Link {
	case "tcp":
		if c.TCPAddr == "" {
			return Config{}, fmt.Errorf("config: link=tcp requires tcp_addr")
		}
	case "serial":
		if c.SerialDevice == "" {
			return Config{}, fmt.Errorf("config: link=serial requires serial_device")
		}
		if !filepath.IsAbs(c.SerialDevice) {
			return Config{}, fmt.Errorf("config: serial_device must be an absolute path")
		}
	default:
		return Config{}, fmt.Errorf("config: link must be \"tcp\" or \"serial\", got %q", c.Link)
	}
	return c, nil
}
