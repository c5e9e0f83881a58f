package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// MemFS is an in-memory file system for testing.
type MemFS map[string]string

func (m MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(data), nil
}

func env(vars map[string]string) LoaderOption {
	return WithLookupEnv(func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	})
}

func TestLoad(t *testing.T) {
	memfs := MemFS{
		"/etc/partscan/config.toml": `
[log]
level = "debug"

[partition]
validate = true

[languages]
dirs = ["langs", "/opt/langs"]
script_timeout = "250ms"

[watch]
debounce = "1s"
`,
	}

	cfg, err := NewLoader(WithFS(memfs), env(nil)).Load("/etc/partscan/config.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Log.Level = "debug"
	want.Partition.Validate = true
	want.Languages.Dirs = []string{filepath.Join("/etc/partscan", "langs"), "/opt/langs"}
	want.Languages.ScriptTimeout = Duration{250 * time.Millisecond}
	want.Watch.Debounce = Duration{time.Second}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := NewLoader(WithFS(MemFS{}), env(nil)).Load("/nowhere.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnv(t *testing.T) {
	memfs := MemFS{"/c.toml": "[log]\nlevel = \"debug\"\nformat = \"json\"\n"}
	cfg, err := NewLoader(WithFS(memfs), env(map[string]string{
		"PARTSCAN_LOG_LEVEL":      "warn",
		"PARTSCAN_AUTO_BREAK":     "off",
		"PARTSCAN_VALIDATE":       "1",
		"PARTSCAN_LANGUAGE":       "template",
		"PARTSCAN_WATCH_DEBOUNCE": "20ms",
	})).Load("/c.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Log.Level = "warn"
	want.Log.Format = "json"
	want.Partition.AutoBreak = false
	want.Partition.Validate = true
	want.Languages.Default = "template"
	want.Watch.Debounce = Duration{20 * time.Millisecond}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		env   map[string]string
		parse bool
		path  string
	}{
		{"syntax", "[log\n", nil, true, ""},
		{"unknown key", "[log]\ncolour = true\n", nil, true, ""},
		{"bad duration", "[watch]\ndebounce = \"soon\"\n", nil, true, ""},
		{"bad level", "[log]\nlevel = \"loud\"\n", nil, false, "log.level"},
		{"bad format", "[log]\nformat = \"xml\"\n", nil, false, "log.format"},
		{"negative debounce", "[watch]\ndebounce = \"-1s\"\n", nil, false, "watch.debounce"},
		{"zero timeout", "[languages]\nscript_timeout = \"0s\"\n", nil, false, "languages.script_timeout"},
		{"bad env bool", "", map[string]string{"PARTSCAN_VALIDATE": "maybe"}, false, "partition.validate"},
		{"bad env level", "", map[string]string{"PARTSCAN_LOG_LEVEL": "loud"}, false, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(WithFS(MemFS{"/c.toml": tt.file}), env(tt.env)).Load("/c.toml")
			if err == nil {
				t.Fatal("Load() error = nil")
			}

			var perr *ParseError
			if got := errors.As(err, &perr); got != tt.parse {
				t.Fatalf("Load() error = %v, ParseError = %v, want %v", err, got, tt.parse)
			}
			if tt.parse {
				if perr.Path != "/c.toml" || perr.Line == 0 {
					t.Errorf("ParseError = %+v, want path and line", perr)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Path != tt.path {
				t.Errorf("Load() error = %v, want ValidationError for %s", err, tt.path)
			}
			if !errors.Is(err, ErrValidationFailed) {
				t.Error("error does not match ErrValidationFailed")
			}
		})
	}
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.Languages.Dirs = []string{"ok", ""}

	err := cfg.Validate()
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("Validate() error = %v, want joined errors", err)
	}
	var paths []string
	for _, e := range joined.Unwrap() {
		var verr *ValidationError
		if errors.As(e, &verr) {
			paths = append(paths, verr.Path)
		}
	}
	if diff := cmp.Diff([]string{"log.level", "log.format", "languages.dirs[1]"}, paths); diff != "" {
		t.Errorf("validation paths mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrorMessage(t *testing.T) {
	tests := []struct {
		err  ParseError
		want string
	}{
		{ParseError{Path: "p.toml", Line: 3, Column: 7, Message: "bad"}, "config p.toml:3:7: bad"},
		{ParseError{Path: "p.toml", Line: 3, Message: "bad"}, "config p.toml:3: bad"},
		{ParseError{Path: "p.toml", Message: "bad"}, "config p.toml: bad"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}

	_, err := NewLoader(WithFS(MemFS{"/c.toml": "[log]\ncolour = true\n"})).Load("/c.toml")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Load() error = %v, want *ParseError", err)
	}
	if perr.Setting != "log.colour" || perr.Line != 2 {
		t.Errorf("ParseError = %+v, want setting log.colour on line 2", perr)
	}
	if !strings.HasPrefix(err.Error(), "config /c.toml:2") || !strings.HasSuffix(err.Error(), "unknown setting log.colour") {
		t.Errorf("Error() = %q", err.Error())
	}
}
