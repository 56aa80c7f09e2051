// Package config loads recsh configuration from JSONC files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tailscale/hujson"
)

// Error variables for config loading.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrPathEmpty          = errors.New("path cannot be empty")
	ErrLogLevelInvalid    = errors.New("invalid log level")
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	Path     string `json:"path"`
	LogLevel string `json:"log_level,omitempty"`
	Verify   bool   `json:"verify,omitempty"`
	History  string `json:"history,omitempty"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	PathAbs      string `json:"-"` // Absolute path to the record file

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// fileConfig is the on-disk form. Pointers tell "unset" apart from zero.
type fileConfig struct {
	Path     *string `json:"path"`
	LogLevel *string `json:"log_level"`
	Verify   *bool   `json:"verify"`
	History  *string `json:"history"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Path:     "records.db",
		LogLevel: "warn",
	}
}

// FileName is the default project config file name.
const FileName = ".recsh.json"

// globalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/recsh/config.json if set, otherwise ~/.config/recsh/config.json.
// Returns empty string if home directory cannot be determined.
func globalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "recsh", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "recsh", "config.json")
	}

	return ""
}

// defaultHistory returns ~/.recsh_history, or "" without a home directory.
func defaultHistory(env map[string]string) string {
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".recsh_history")
	}

	return ""
}

// Overrides are values from CLI flags. Empty strings and nil pointers mean
// no override.
type Overrides struct {
	Path     string
	LogLevel string
	Verify   *bool
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Overrides       Overrides         // remaining CLI flags
	Env             map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/recsh/config.json or $XDG_CONFIG_HOME/recsh/config.json)
// 3. Project config file at default location (.recsh.json, if exists)
// 4. Explicit config file via ConfigPath (if non-empty)
// 5. CLI overrides.
//
// Paths in the returned Config are resolved to absolute paths.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()
	cfg.History = defaultHistory(input.Env)

	globalCfg, globalCfgPath, err := loadGlobal(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalCfgPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProject(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	cfg = applyOverrides(cfg, input.Overrides)

	validateErr := validate(cfg)
	if validateErr != nil {
		return Config{}, validateErr
	}

	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.Path) {
		cfg.PathAbs = cfg.Path
	} else {
		cfg.PathAbs = filepath.Join(workDir, cfg.Path)
	}

	return cfg, nil
}

// Level returns the parsed log level.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.WarnLevel
	}

	return level
}

// Format renders the effective configuration as JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(data), nil
}

// loadGlobal loads the global user config file if it exists.
// Returns the config, the path if loaded, and any error.
func loadGlobal(env map[string]string) (fileConfig, string, error) {
	path := globalPath(env)
	if path == "" {
		return fileConfig{}, "", nil
	}

	cfg, loaded, err := loadFile(path, false)
	if err != nil {
		return fileConfig{}, "", err
	}

	if !loaded {
		return fileConfig{}, "", nil
	}

	return cfg, path, nil
}

// loadProject loads the project config file (.recsh.json) or an explicit config file.
// Returns the config, the path if loaded, and any error.
func loadProject(workDir, configPath string) (fileConfig, string, error) {
	var (
		cfgFile   string
		mustExist bool
	)

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		_, statErr := os.Stat(cfgFile)
		if statErr != nil {
			return fileConfig{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, FileName)
	}

	cfg, loaded, err := loadFile(cfgFile, mustExist)
	if err != nil {
		return fileConfig{}, "", err
	}

	if !loaded {
		return fileConfig{}, "", nil
	}

	return cfg, cfgFile, nil
}

// loadFile loads a config file. If mustExist is false, missing files return zero config.
// Returns the config, whether the file was loaded, and any error.
func loadFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if mustExist {
			return fileConfig{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return fileConfig{}, false, nil
	}

	cfg, parseErr := parse(data)
	if parseErr != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, parseErr)
	}

	if cfg.Path != nil && *cfg.Path == "" {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, ErrPathEmpty)
	}

	return cfg, true, nil
}

func parse(data []byte) (fileConfig, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg fileConfig

	unmarshalErr := json.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	return cfg, nil
}

func merge(base Config, overlay fileConfig) Config {
	if overlay.Path != nil {
		base.Path = *overlay.Path
	}

	if overlay.LogLevel != nil {
		base.LogLevel = *overlay.LogLevel
	}

	if overlay.Verify != nil {
		base.Verify = *overlay.Verify
	}

	if overlay.History != nil {
		base.History = *overlay.History
	}

	return base
}

func applyOverrides(cfg Config, o Overrides) Config {
	if o.Path != "" {
		cfg.Path = o.Path
	}

	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}

	if o.Verify != nil {
		cfg.Verify = *o.Verify
	}

	return cfg
}

func validate(cfg Config) error {
	if cfg.Path == "" {
		return ErrPathEmpty
	}

	_, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrLogLevelInvalid, cfg.LogLevel)
	}

	return nil
}
