package main

import (
	"fmt"
	"os"
	"path/filepath"

	"golaunch/pkg/protocol"
)

// Paths holds the resolved golaunch state file paths.
type Paths struct {
	Home   string // ~/.golaunch or GOLAUNCH_HOME
	DBPath string // golaunch.db or GOLAUNCH_DB_PATH
}

// ResolvePaths returns all golaunch paths, respecting env var overrides.
// Environment variables:
//   - GOLAUNCH_HOME: base directory for golaunch state (default: ~/.golaunch)
//   - GOLAUNCH_DB_PATH: conversation and settings database (default: $GOLAUNCH_HOME/golaunch.db)
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	return &Paths{
		Home:   home,
		DBPath: resolvePathWithEnv("GOLAUNCH_DB_PATH", home, protocol.DBFile),
	}, nil
}

func resolveHome() (string, error) {
	if v := os.Getenv("GOLAUNCH_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.HomeDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
