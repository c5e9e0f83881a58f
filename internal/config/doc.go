// Package config provides configuration loading for partscan.
//
// Configuration is layered: built-in defaults, then an optional TOML file,
// then environment variables with the PARTSCAN_ prefix. A missing file is
// not an error.
//
// Example configuration:
//
//	[log]
//	level = "debug"
//	format = "json"
//
//	[partition]
//	auto_break = true
//	validate = false
//
//	[languages]
//	dirs = ["languages"]
//	default = "c"
//	script_timeout = "2s"
//
//	[watch]
//	debounce = "100ms"
//
// Relative language directories are resolved against the directory of the
// configuration file.
package config
