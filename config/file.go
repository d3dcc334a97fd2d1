package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the keys accepted in a YAML config file.  Pointer
// fields distinguish "absent" from a zero value.
type fileConfig struct {
	Port          *int    `yaml:"port"`
	BufferSize    *int    `yaml:"buffer_size"`
	Input         *string `yaml:"input"`
	AcceptRetries *int    `yaml:"accept_retries"`
	AcceptBackoff *string `yaml:"accept_backoff"`
	Verbose       *int    `yaml:"verbose"`
}

// LoadFile overlays the YAML file at path onto cfg.  Unknown keys are
// rejected so typos do not go unnoticed.
//
//	port: 60000
//	buffer_size: 1024
//	input: signals.txt
//	accept_retries: 5
//	accept_backoff: 250ms
//	verbose: 2
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.BufferSize != nil {
		cfg.BufferSize = *fc.BufferSize
	}
	if fc.Input != nil {
		cfg.Input = *fc.Input
	}
	if fc.AcceptRetries != nil {
		cfg.AcceptRetries = *fc.AcceptRetries
	}
	if fc.AcceptBackoff != nil {
		d, err := time.ParseDuration(*fc.AcceptBackoff)
		if err != nil {
			return fmt.Errorf("config file %s: accept_backoff: %w", path, err)
		}
		cfg.AcceptBackoff = d
	}
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}
	cfg.ConfigFile = path
	return nil
}
