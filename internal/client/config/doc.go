// Package config loads runtime configuration for the gophauth CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file passed with --config (see LoadFile).
//  3. Command-line flags registered by the cli package, which override
//     earlier values.
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "10s" or
// integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "request_timeout": "10s"
//	}
package config
