// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

// Package xdg resolves Trailhead's XDG Base Directory locations.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "trailhead"

// ConfigFileName is the file Load falls back to when no --config is given.
const ConfigFileName = "config.yaml"

// ConfigDir returns $XDG_CONFIG_HOME/trailhead, falling back to
// ~/.config/trailhead.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", oops.Code("XDG_HOME_UNKNOWN").Wrap(err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// ConfigFile returns the default configuration file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}
