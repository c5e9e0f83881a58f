package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the complete partscan configuration.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Partition PartitionConfig `toml:"partition"`
	Languages LanguagesConfig `toml:"languages"`
	Watch     WatchConfig     `toml:"watch"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is a logrus level name: trace, debug, info, warn, error.
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
	// File receives log output. Empty means stderr.
	File string `toml:"file"`
}

// PartitionConfig configures the partitioner.
type PartitionConfig struct {
	// AutoBreak lets incremental scans stop once they resynchronize with
	// the previous tree.
	AutoBreak bool `toml:"auto_break"`
	// Validate checks the tree after every update.
	Validate bool `toml:"validate"`
}

// LanguagesConfig configures where scanners come from.
type LanguagesConfig struct {
	// Dirs are searched for language definitions after the built-in ones.
	Dirs []string `toml:"dirs"`
	// Default names the language used when the file extension is unknown.
	Default string `toml:"default"`
	// ScriptTimeout bounds every call into a Lua scanner.
	ScriptTimeout Duration `toml:"script_timeout"`
}

// WatchConfig configures file watching.
type WatchConfig struct {
	// Debounce is how long the file must be quiet before it is rescanned.
	Debounce Duration `toml:"debounce"`
}

// Duration is a time.Duration written as a string such as "150ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Partition: PartitionConfig{
			AutoBreak: true,
		},
		Languages: LanguagesConfig{
			ScriptTimeout: Duration{5 * time.Second},
		},
		Watch: WatchConfig{
			Debounce: Duration{100 * time.Millisecond},
		},
	}
}

// Validate checks every setting and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, &ValidationError{
			Path:    "log.level",
			Message: "unknown log level",
			Value:   c.Log.Level,
		})
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, &ValidationError{
			Path:    "log.format",
			Message: `must be "text" or "json"`,
			Value:   c.Log.Format,
		})
	}
	for i, dir := range c.Languages.Dirs {
		if dir == "" {
			errs = append(errs, &ValidationError{
				Path:    fmt.Sprintf("languages.dirs[%d]", i),
				Message: "empty directory",
				Value:   dir,
			})
		}
	}
	if c.Languages.ScriptTimeout.Duration <= 0 {
		errs = append(errs, &ValidationError{
			Path:    "languages.script_timeout",
			Message: "must be positive",
			Value:   c.Languages.ScriptTimeout,
		})
	}
	if c.Watch.Debounce.Duration < 0 {
		errs = append(errs, &ValidationError{
			Path:    "watch.debounce",
			Message: "must not be negative",
			Value:   c.Watch.Debounce,
		})
	}
	return errors.Join(errs...)
}
