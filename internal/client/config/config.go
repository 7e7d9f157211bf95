package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// Config holds runtime settings for the gophauth CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the gRPC endpoint.
//   - RequestTimeout: deadline applied to every call.
type Config struct {
	ServerEndpointAddr string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 10 * time.Second
}

// JSONConfig is a DTO used exclusively for JSON unmarshalling. Zero values
// leave the corresponding Config field untouched.
type JSONConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
}

// LoadFile overlays c with values from the JSON file at path.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var jc JSONConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if jc.ServerEndpointAddr != "" {
		c.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.RequestTimeout.Duration > 0 {
		c.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}
