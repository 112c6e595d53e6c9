// Package config loads runtime configuration for the KeyAuth CLI client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the KeyAuth HTTP API
//	-t int      per-request timeout (seconds)
//	-r int      retries on transport errors and 5xx responses
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8000",
//	  "request_timeout": "10s",
//	  "retry_max": 3
//	}
package config
