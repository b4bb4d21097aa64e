// Package config loads the runtime settings of gophpass.
//
// # Sources and precedence
//
//  1. Built-in defaults (LoadDefaults).
//  2. Optional JSON file named by -c or -config.
//  3. Environment variables with the GOPHPASS_ prefix. A .env file in the
//     working directory is loaded first; variables already set win.
//  4. Command-line flags.
//
// # Flags
//
//	-d string   database DSN
//	-t int      inactivity timeout (seconds)
//	-l int      password length
//	-v string   log level (debug, info, warn, error)
//
// # JSON
//
// Durations are strings such as "90s" or integer nanoseconds:
//
//	{
//	  "driver": "sqlite",
//	  "dsn": "/home/alice/.config/gophpass/sites.db",
//	  "inactivity_timeout": "90s",
//	  "clipboard_clear_after": "20s",
//	  "password_length": 20,
//	  "alphabet": "default"
//	}
package config
