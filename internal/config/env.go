package config

import (
	"path/filepath"
	"strings"
	"time"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "PARTSCAN_"

// envSetting maps one environment variable onto a setting.
type envSetting struct {
	name string // without prefix
	path string
	set  func(c *Config, v string) bool
}

var envSettings = []envSetting{
	{"LOG_LEVEL", "log.level", func(c *Config, v string) bool {
		c.Log.Level = v
		return true
	}},
	{"LOG_FORMAT", "log.format", func(c *Config, v string) bool {
		c.Log.Format = v
		return true
	}},
	{"LOG_FILE", "log.file", func(c *Config, v string) bool {
		c.Log.File = v
		return true
	}},
	{"AUTO_BREAK", "partition.auto_break", func(c *Config, v string) bool {
		return parseBool(v, &c.Partition.AutoBreak)
	}},
	{"VALIDATE", "partition.validate", func(c *Config, v string) bool {
		return parseBool(v, &c.Partition.Validate)
	}},
	{"LANGUAGE", "languages.default", func(c *Config, v string) bool {
		c.Languages.Default = v
		return true
	}},
	{"LANGUAGE_DIRS", "languages.dirs", func(c *Config, v string) bool {
		c.Languages.Dirs = filepath.SplitList(v)
		return true
	}},
	{"SCRIPT_TIMEOUT", "languages.script_timeout", func(c *Config, v string) bool {
		return parseDuration(v, &c.Languages.ScriptTimeout)
	}},
	{"WATCH_DEBOUNCE", "watch.debounce", func(c *Config, v string) bool {
		return parseDuration(v, &c.Watch.Debounce)
	}},
}

// applyEnv overrides cfg with the environment. Empty values are treated as
// set.
func (l *Loader) applyEnv(cfg *Config) error {
	for _, s := range envSettings {
		name := l.prefix + s.name
		v, ok := l.lookup(name)
		if !ok {
			continue
		}
		if !s.set(cfg, v) {
			return &ValidationError{
				Path:    s.path,
				Message: "cannot parse environment value",
				Value:   v,
				Source:  name,
			}
		}
	}
	return nil
}

func parseBool(s string, dst *bool) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		*dst = true
	case "false", "no", "off", "0":
		*dst = false
	default:
		return false
	}
	return true
}

func parseDuration(s string, dst *Duration) bool {
	d, err := time.ParseDuration(s)
	if err != nil {
		return false
	}
	dst.Duration = d
	return true
}
