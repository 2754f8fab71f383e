/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileIsTolerated(t *testing.T) {
	var cfg Config
	err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"), &cfg)
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestLoadConfigEmptyPathIsNoop(t *testing.T) {
	var cfg Config
	require.NoError(t, LoadConfig("", &cfg))
	assert.Equal(t, Config{}, cfg)
}

func TestLoadConfigParsesMirrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pathjail.toml")
	body := `
new_root = "/opt/jail"
runner_enabled = true

[[mirror]]
real = "/usr/lib"
location = "/lib"

[log]
level = "debug"
stdout = true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	var cfg Config
	require.NoError(t, LoadConfig(path, &cfg))

	assert.Equal(t, "/opt/jail", cfg.NewRoot)
	assert.True(t, cfg.RunnerEnabled)
	require.Len(t, cfg.Mirrors, 1)
	assert.Equal(t, "/usr/lib", cfg.Mirrors[0].Real)
	assert.Equal(t, "/lib", cfg.Mirrors[0].Location)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Stdout)
}

func TestFillupWithDefaults(t *testing.T) {
	cfg := Config{NewRoot: "/opt/jail"}
	cfg.FillupWithDefaults()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, filepath.Join("/opt/jail", "logs"), cfg.Log.Dir)
	assert.NotZero(t, cfg.Log.RotateLogMaxSize)
	assert.NotZero(t, cfg.Log.RotateLogMaxBackups)
	assert.NotEmpty(t, cfg.Metrics.Listen)
	assert.Equal(t, filepath.Join("/opt/jail", "pathjail.sock"), cfg.System.SocketPath)
}

func TestFillupWithDefaultsNeverGuessesNewRoot(t *testing.T) {
	var cfg Config
	cfg.FillupWithDefaults()
	assert.Empty(t, cfg.NewRoot)
}

func TestValidateRequiresNewRoot(t *testing.T) {
	var cfg Config
	require.Error(t, cfg.Validate())

	cfg.NewRoot = "/opt/jail"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMirrorLocationRoot(t *testing.T) {
	cfg := Config{
		NewRoot: "/opt/jail",
		Mirrors: []MirrorEntry{{Real: "/usr/lib", Location: "/"}},
	}
	require.ErrorContains(t, cfg.Validate(), "location cannot be \"/\"")
}
