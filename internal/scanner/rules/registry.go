package rules

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

//go:embed defs
var builtinDefs embed.FS

// Registry manages compiled language scanners.
type Registry struct {
	mu sync.RWMutex

	// byName maps language names to scanners
	byName map[string]*Scanner

	// byExtension maps file extensions to scanners
	byExtension map[string]*Scanner
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:      make(map[string]*Scanner),
		byExtension: make(map[string]*Scanner),
	}
}

// DefaultRegistry returns a registry holding the built-in definitions.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	defs, err := Builtin()
	if err != nil {
		panic(err)
	}
	for _, def := range defs {
		if _, err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Builtin returns the built-in definitions.
func Builtin() ([]*Definition, error) {
	entries, err := fs.ReadDir(builtinDefs, "defs")
	if err != nil {
		return nil, err
	}
	defs := make([]*Definition, 0, len(entries))
	for _, e := range entries {
		name := path.Join("defs", e.Name())
		data, err := builtinDefs.ReadFile(name)
		if err != nil {
			return nil, err
		}
		def, err := Parse(name, data)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Register compiles def and adds it to the registry, replacing a language
// of the same name.
func (r *Registry) Register(def *Definition) (*Scanner, error) {
	sc, err := Compile(def)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[sc.name] = sc
	for _, ext := range sc.extensions {
		r.byExtension[ext] = sc
	}
	return sc, nil
}

// LoadDir registers every definition file in dir. Files that fail to load
// are skipped and reported in the returned error. A missing directory is
// not an error.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading definitions from %s: %w", dir, err)
	}

	var (
		loaded int
		errs   []error
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".toml", ".yaml", ".yml":
		default:
			continue
		}
		def, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := r.Register(def); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		loaded++
	}
	return loaded, errors.Join(errs...)
}

// ByName returns the scanner of the given language.
func (r *Registry) ByName(name string) (*Scanner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.byName[name]
	return sc, ok
}

// ByExtension returns the scanner for the given file extension.
func (r *Registry) ByExtension(ext string) (*Scanner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ext == "" {
		return nil, false
	}
	sc, ok := r.byExtension[normalizeExt(ext)]
	return sc, ok
}

// Lookup resolves a language name, falling back to the extension of path.
func (r *Registry) Lookup(name, path string) (*Scanner, error) {
	if name != "" {
		if sc, ok := r.ByName(name); ok {
			return sc, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, name)
	}
	if sc, ok := r.ByExtension(filepath.Ext(path)); ok {
		return sc, nil
	}
	return nil, fmt.Errorf("%w: no language for %s", ErrUnknownLanguage, path)
}

// Languages returns the registered language names in sorted order.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]string, 0, len(r.byName))
	for name := range r.byName {
		langs = append(langs, name)
	}
	sort.Strings(langs)
	return langs
}
