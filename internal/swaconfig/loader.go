package swaconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dzerik/swa-emulator/pkg/logger"
)

// ErrNotFound is returned by Find when the folder holds no configuration file.
var ErrNotFound = errors.New("swaconfig: no configuration file found")

// Empty returns the configuration used when the app has no config file.
func Empty() *Config {
	return &Config{}
}

// Find walks root and returns the configuration file to use.
// staticwebapp.config.json wins over routes.json wherever each is found.
// node_modules trees and .git* entries are skipped.
func Find(root string) (string, error) {
	var legacy string
	var found string

	errStop := errors.New("stop")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped rather than aborting discovery.
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		if path != root && (strings.Contains(name, "node_modules") || strings.HasPrefix(name, ".git")) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch name {
		case FileName:
			found = path
			return errStop
		case LegacyFileName:
			if legacy == "" {
				legacy = path
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}

	if found != "" {
		return found, nil
	}
	if legacy != "" {
		return legacy, nil
	}
	return "", ErrNotFound
}

// LoadDir discovers and loads the configuration under root. A missing file
// is not an error: the empty configuration is returned.
func LoadDir(root string) (*Config, error) {
	path, err := Find(root)
	if errors.Is(err, ErrNotFound) {
		logger.Debug("no routing configuration found", logger.String("root", root))
		return Empty(), nil
	}
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Load reads and validates a configuration file. routes.json is treated as
// the legacy format.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > MaxFileSize {
		logger.Warn("configuration file exceeds the size limit of the hosted platform",
			logger.String("path", path),
			logger.Int("size", int(info.Size())),
			logger.Int("limit", MaxFileSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	legacy := filepath.Base(path) == LegacyFileName
	if legacy {
		logger.Warn("routes.json is deprecated, use "+FileName+" instead", logger.String("path", path))
	}

	cfg, err := Parse(data, legacy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes configuration bytes. Rule-level problems are logged as
// warnings; document-level problems are returned as ValidationErrors.
func Parse(data []byte, legacy bool) (*Config, error) {
	var cfg *Config
	if legacy {
		var err error
		if cfg, err = parseLegacy(data); err != nil {
			return nil, err
		}
	} else {
		if err := validateDocument(data); err != nil {
			return nil, err
		}
		cfg = &Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, ValidationErrors{{Field: "$", Message: err.Error()}}
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	for _, w := range cfg.compile() {
		logger.Warn("ignoring invalid rule", logger.String("detail", w))
	}
	return cfg, nil
}

// legacyFile is the shape of routes.json.
type legacyFile struct {
	Routes                 []Route           `json:"routes"`
	PlatformErrorOverrides []legacyOverride  `json:"platformErrorOverrides"`
	MimeTypes              map[string]string `json:"mimeTypes"`
	DefaultHeaders         map[string]string `json:"defaultHeaders"`
}

type legacyOverride struct {
	ErrorType  string     `json:"errorType"`
	StatusCode StatusCode `json:"statusCode"`
	Serve      string     `json:"serve"`
}

var legacyErrorTypes = map[string]string{
	"NotFound":        "404",
	"Unauthenticated": "401",
	"Unauthorized":    "401",
	"Forbidden":       "403",
	"BadRequest":      "400",
}

func parseLegacy(data []byte) (*Config, error) {
	var lf legacyFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, ValidationErrors{{Field: "$", Message: err.Error()}}
	}
	cfg := &Config{
		Routes:        lf.Routes,
		MimeTypes:     lf.MimeTypes,
		GlobalHeaders: lf.DefaultHeaders,
		IsLegacy:      true,
	}
	for _, o := range lf.PlatformErrorOverrides {
		code, ok := legacyErrorTypes[o.ErrorType]
		if !ok {
			logger.Warn("ignoring unknown platformErrorOverrides entry", logger.String("errorType", o.ErrorType))
			continue
		}
		if cfg.ResponseOverrides == nil {
			cfg.ResponseOverrides = make(map[string]Override)
		}
		cfg.ResponseOverrides[code] = Override{StatusCode: o.StatusCode, Rewrite: o.Serve}
	}
	return cfg, nil
}
