// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for vonwrap.
//
// Configuration is loaded from a single file specified by:
//   - VONWRAP_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, production) that override base values when the
// environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for vonwrap.
type Config struct {
	// Environment identifies the deployment type (development, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Install configures the bootstrap installer.
	Install InstallConfig `yaml:"install"`

	// Launch configures the wrapper launcher.
	Launch LaunchConfig `yaml:"launch"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Install *InstallConfig `yaml:"install,omitempty"`
	Launch  *LaunchConfig  `yaml:"launch,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for vonwrap data: the wrapper
	// project checkout plus vonwrap's own state.
	Root string `yaml:"root"`

	// State is where runtime state is stored (run-state file,
	// install ledger, install lock).
	State string `yaml:"state"`

	// Bundle is the directory holding bundled artifacts to install.
	Bundle string `yaml:"bundle"`

	// Backups is where the installer moves destination files before
	// overwriting them.
	Backups string `yaml:"backups"`

	// WrapperConfig is the wrapper service's config.ini.
	WrapperConfig string `yaml:"wrapper_config"`

	// Profiles is the directory containing agent-profile INI files.
	Profiles string `yaml:"profiles"`

	// Genesis is the genesis transaction file path recorded into the
	// wrapper config when the genesis.txn.path key is absent.
	Genesis string `yaml:"genesis"`
}

// InstallConfig configures the bootstrap installer.
type InstallConfig struct {
	// Manifest is the path to the JSONC install manifest.
	Manifest string `yaml:"manifest"`

	// DestRoot is prefixed to relative artifact destinations. An
	// absolute destination in the manifest is used as-is. Default:
	// /usr/lib.
	DestRoot string `yaml:"dest_root"`

	// Ledger is the SQLite audit ledger path.
	Ledger string `yaml:"ledger"`
}

// LaunchConfig configures the wrapper launcher.
type LaunchConfig struct {
	// Mode selects the launch command: "development" (dev server,
	// auto-reload disabled) or "production" (WSGI server with access
	// logging to stdout).
	Mode string `yaml:"mode"`

	// BindAddress is the wrapper server's listen address. The
	// wrapper always binds all interfaces on its fixed port; this is
	// configuration, not a CLI surface.
	BindAddress string `yaml:"bind_address"`

	// DefaultPoolIP is the pool address exported as TEST_POOL_IP
	// when the caller's environment does not set one.
	DefaultPoolIP string `yaml:"default_pool_ip"`

	// PoolPort is the ledger pool port probed before launch.
	PoolPort int `yaml:"pool_port"`

	// RustLog is the native libindy logging verbosity, exported as
	// RUST_LOG. Fixed by configuration, never read from the caller.
	RustLog string `yaml:"rust_log"`

	// Commands maps a launch mode to its argv template. Templates
	// may reference ${BIND} (the bind address) and ${ROOT} (the
	// project root).
	Commands map[string][]string `yaml:"commands"`

	// StartupTimeout is how long to wait for the wrapper to accept
	// connections after launch.
	StartupTimeout string `yaml:"startup_timeout"`

	// StopTimeout is how long a stopping wrapper gets to clean up
	// its wallet state before SIGKILL.
	StopTimeout string `yaml:"stop_timeout"`

	// SealedIdentity is the age identity file used to decrypt .age
	// seed files referenced by agent profiles. Empty disables sealed
	// seed support.
	SealedIdentity string `yaml:"sealed_identity"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback - the
// config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "vonwrap")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:          defaultRoot,
			State:         filepath.Join(defaultRoot, "state"),
			Bundle:        filepath.Join(defaultRoot, "usr-lib"),
			Backups:       filepath.Join(defaultRoot, "backups"),
			WrapperConfig: filepath.Join(defaultRoot, "config", "config.ini"),
			Profiles:      filepath.Join(defaultRoot, "config", "agent-profile"),
			Genesis:       filepath.Join(defaultRoot, "genesis.txn"),
		},
		Install: InstallConfig{
			Manifest: filepath.Join(defaultRoot, "install.jsonc"),
			DestRoot: "/usr/lib",
			Ledger:   filepath.Join(defaultRoot, "state", "install-ledger.db"),
		},
		Launch: LaunchConfig{
			Mode:          "development",
			BindAddress:   "0.0.0.0:8002",
			DefaultPoolIP: "10.0.0.2",
			PoolPort:      9702,
			RustLog:       "error",
			Commands: map[string][]string{
				"development": {"python", "manage.py", "runserver", "--noreload", "${BIND}"},
				"production":  {"gunicorn", "--access-logfile", "-", "-b", "${BIND}", "wrapper_api.wsgi"},
			},
			StartupTimeout: "240s",
			StopTimeout:    "5s",
		},
	}
}

// Load loads configuration from the VONWRAP_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if VONWRAP_CONFIG is not set,
// this fails. This ensures deterministic, auditable configuration.
func Load() (*Config, error) {
	configPath := os.Getenv("VONWRAP_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("VONWRAP_CONFIG environment variable not set; " +
			"set it to the path of your vonwrap.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values - the only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production default: the WSGI server, not the dev server.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Launch: &LaunchConfig{Mode: "production"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
		if overrides.Paths.Bundle != "" {
			c.Paths.Bundle = overrides.Paths.Bundle
		}
		if overrides.Paths.Backups != "" {
			c.Paths.Backups = overrides.Paths.Backups
		}
		if overrides.Paths.WrapperConfig != "" {
			c.Paths.WrapperConfig = overrides.Paths.WrapperConfig
		}
		if overrides.Paths.Profiles != "" {
			c.Paths.Profiles = overrides.Paths.Profiles
		}
		if overrides.Paths.Genesis != "" {
			c.Paths.Genesis = overrides.Paths.Genesis
		}
	}

	if overrides.Install != nil {
		if overrides.Install.Manifest != "" {
			c.Install.Manifest = overrides.Install.Manifest
		}
		if overrides.Install.DestRoot != "" {
			c.Install.DestRoot = overrides.Install.DestRoot
		}
		if overrides.Install.Ledger != "" {
			c.Install.Ledger = overrides.Install.Ledger
		}
	}

	if overrides.Launch != nil {
		if overrides.Launch.Mode != "" {
			c.Launch.Mode = overrides.Launch.Mode
		}
		if overrides.Launch.BindAddress != "" {
			c.Launch.BindAddress = overrides.Launch.BindAddress
		}
		if overrides.Launch.DefaultPoolIP != "" {
			c.Launch.DefaultPoolIP = overrides.Launch.DefaultPoolIP
		}
		if overrides.Launch.PoolPort != 0 {
			c.Launch.PoolPort = overrides.Launch.PoolPort
		}
		if overrides.Launch.RustLog != "" {
			c.Launch.RustLog = overrides.Launch.RustLog
		}
		if len(overrides.Launch.Commands) > 0 {
			for mode, argv := range overrides.Launch.Commands {
				c.Launch.Commands[mode] = argv
			}
		}
		if overrides.Launch.StartupTimeout != "" {
			c.Launch.StartupTimeout = overrides.Launch.StartupTimeout
		}
		if overrides.Launch.StopTimeout != "" {
			c.Launch.StopTimeout = overrides.Launch.StopTimeout
		}
		if overrides.Launch.SealedIdentity != "" {
			c.Launch.SealedIdentity = overrides.Launch.SealedIdentity
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"VONWRAP_ROOT": c.Paths.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["VONWRAP_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.Bundle = expandVars(c.Paths.Bundle, vars)
	c.Paths.Backups = expandVars(c.Paths.Backups, vars)
	c.Paths.WrapperConfig = expandVars(c.Paths.WrapperConfig, vars)
	c.Paths.Profiles = expandVars(c.Paths.Profiles, vars)
	c.Paths.Genesis = expandVars(c.Paths.Genesis, vars)
	c.Install.Manifest = expandVars(c.Install.Manifest, vars)
	c.Install.DestRoot = expandVars(c.Install.DestRoot, vars)
	c.Install.Ledger = expandVars(c.Install.Ledger, vars)
	c.Launch.SealedIdentity = expandVars(c.Launch.SealedIdentity, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.WrapperConfig == "" {
		errs = append(errs, fmt.Errorf("paths.wrapper_config is required"))
	}

	if c.Install.DestRoot == "" {
		errs = append(errs, fmt.Errorf("install.dest_root is required"))
	}

	if _, ok := c.Launch.Commands[c.Launch.Mode]; !ok {
		errs = append(errs, fmt.Errorf("launch.mode %q has no entry in launch.commands", c.Launch.Mode))
	}
	if c.Launch.BindAddress == "" {
		errs = append(errs, fmt.Errorf("launch.bind_address is required"))
	}
	if _, err := time.ParseDuration(c.Launch.StartupTimeout); err != nil {
		errs = append(errs, fmt.Errorf("launch.startup_timeout: %w", err))
	}
	if _, err := time.ParseDuration(c.Launch.StopTimeout); err != nil {
		errs = append(errs, fmt.Errorf("launch.stop_timeout: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// StartupTimeout returns the parsed launch.startup_timeout. Call
// Validate first; invalid durations return zero here.
func (c *Config) StartupTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Launch.StartupTimeout)
	return d
}

// StopTimeout returns the parsed launch.stop_timeout.
func (c *Config) StopTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Launch.StopTimeout)
	return d
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.State,
		c.Paths.Backups,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

// ProfilePath returns the INI file path for a named agent profile.
func (c *Config) ProfilePath(profile string) string {
	return filepath.Join(c.Paths.Profiles, profile+".ini")
}
