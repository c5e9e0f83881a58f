package main

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dshills/partscan/internal/config"
	"github.com/dshills/partscan/internal/partition"
	"github.com/dshills/partscan/internal/scanner/luascan"
	"github.com/dshills/partscan/internal/scanner/rules"
)

// languages resolves the scanner for a file.
type languages struct {
	registry *rules.Registry
	fallback string
	cfg      config.LanguagesConfig
	log      logrus.FieldLogger
}

// newLanguages builds a registry of the built-in definitions and the ones
// found in the configured directories. Broken definitions are logged and
// skipped.
func newLanguages(cfg *config.Config, log logrus.FieldLogger) *languages {
	reg := rules.DefaultRegistry()
	for _, dir := range cfg.Languages.Dirs {
		n, err := reg.LoadDir(dir)
		if err != nil {
			log.WithError(err).WithField("dir", dir).Warn("some language definitions failed to load")
		}
		log.WithFields(logrus.Fields{"dir": dir, "languages": n}).Debug("loaded language definitions")
	}
	return &languages{
		registry: reg,
		fallback: cfg.Languages.Default,
		cfg:      cfg.Languages,
		log:      log,
	}
}

// resolve returns the scanner named by lang, or the one matching the
// extension of path. lang may also be the path of a definition file or a
// Lua script. The returned release function must be called when the
// scanner is no longer used.
func (l *languages) resolve(lang, path string) (partition.Scanner, func(), error) {
	switch strings.ToLower(filepath.Ext(lang)) {
	case ".lua":
		sc, err := luascan.Load(lang,
			luascan.WithTimeout(l.cfg.ScriptTimeout.Duration),
			luascan.WithLogger(l.log),
		)
		if err != nil {
			return nil, nil, err
		}
		return sc, func() { sc.Close() }, nil
	case ".toml", ".yaml", ".yml":
		def, err := rules.Load(lang)
		if err != nil {
			return nil, nil, err
		}
		sc, err := rules.Compile(def)
		if err != nil {
			return nil, nil, err
		}
		return sc, func() {}, nil
	}

	sc, err := l.registry.Lookup(lang, path)
	if errors.Is(err, rules.ErrUnknownLanguage) && lang == "" && l.fallback != "" {
		l.log.WithField("language", l.fallback).Debug("no language for extension, using default")
		sc, err = l.registry.Lookup(l.fallback, path)
	}
	if err != nil {
		return nil, nil, err
	}
	return sc, func() {}, nil
}
