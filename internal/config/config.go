/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/pathjail/pathjail/internal/constant"
)

// MirrorEntry is the on-disk shape of a single pathcore.WithMirror pair.
type MirrorEntry struct {
	Real     string `toml:"real"`
	Location string `toml:"location"`
}

// LogConfig configures the logrus/lumberjack notice sink.
type LogConfig struct {
	Dir                 string `toml:"dir"`
	Level               string `toml:"level"`
	Stdout              bool   `toml:"stdout"`
	RotateLogCompress   bool   `toml:"rotate_compress"`
	RotateLogLocalTime  bool   `toml:"rotate_local_time"`
	RotateLogMaxAge     int    `toml:"rotate_max_age"`
	RotateLogMaxBackups int    `toml:"rotate_max_backups"`
	RotateLogMaxSize    int    `toml:"rotate_max_size"`
}

// MetricsConfig configures the prometheus exporter.
type MetricsConfig struct {
	Enable bool   `toml:"enable"`
	Listen string `toml:"listen"`
}

// SystemConfig configures the unix-socket introspection API.
type SystemConfig struct {
	SocketPath string `toml:"socket_path"`
}

// Config is the on-disk (TOML) representation of the inputs to the
// pathcore.Jail builder, plus the settings the CLI needs to wire
// logging, metrics, and the system API.
type Config struct {
	// NewRoot is the directory the traced child sees as "/". Validate
	// rejects a Config that leaves it empty.
	NewRoot string `toml:"new_root"`

	// RunnerEnabled arms delayed translation for spawned children.
	RunnerEnabled bool `toml:"runner_enabled"`

	Mirrors []MirrorEntry `toml:"mirror"`

	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
	System  SystemConfig  `toml:"system"`
}

// LoadConfig reads a TOML config from path. A missing file is
// tolerated: the caller gets a zero Config to run FillupWithDefaults
// against.
func LoadConfig(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	tree, err := toml.LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "load config file %q", path)
	}
	if err := tree.Unmarshal(cfg); err != nil {
		return errors.Wrapf(err, "unmarshal config file %q", path)
	}
	return nil
}

// FillupWithDefaults fills every unset ambient field. It never fills
// NewRoot (Validate rejects an empty one rather than guessing a
// default for a jail boundary).
func (c *Config) FillupWithDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = constant.DefaultLogLevel
	}
	if c.Log.Dir == "" && c.NewRoot != "" {
		c.Log.Dir = filepath.Join(c.NewRoot, constant.DefaultLogDirName)
	}
	if c.Log.RotateLogMaxSize == 0 {
		c.Log.RotateLogMaxSize = constant.DefaultRotateLogMaxSize
	}
	if c.Log.RotateLogMaxBackups == 0 {
		c.Log.RotateLogMaxBackups = constant.DefaultRotateLogMaxBackups
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = constant.DefaultMetricsListenAddress
	}
	if c.System.SocketPath == "" && c.NewRoot != "" {
		c.System.SocketPath = filepath.Join(c.NewRoot, constant.DefaultSystemSockName)
	}
}

// Validate rejects a Config whose NewRoot is empty or whose mirror list
// contains a location == "/" entry. This is a fail-fast convenience for
// the CLI. pathcore.New re-checks the mirror location on its own (it logs
// a warning and leaves that mirror unsanitized) and fails if the root
// does not resolve; it does not reject an empty root, which resolves to
// the current directory.
func (c *Config) Validate() error {
	if c.NewRoot == "" {
		return errors.New("new_root must be set")
	}
	for _, m := range c.Mirrors {
		if m.Location == "/" {
			return errors.Errorf("mirror %q: location cannot be \"/\"", m.Real)
		}
	}
	return nil
}
