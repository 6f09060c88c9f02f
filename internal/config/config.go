// Package config loads the settings file shared by the command line
// tools: where world saves and player saves live and where the lookup
// tables are. Missing settings fall back to sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	WorldsDir  string `yaml:"worlds_dir"`
	PlayersDir string `yaml:"players_dir"`
	DefsDir    string `yaml:"defs_dir"`
	IndexPath  string `yaml:"index_path"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("settings.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("settings.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	home, _ := os.UserHomeDir()
	saves := filepath.Join(home, ".local", "share", "Terraria")
	return Config{
		WorldsDir:  filepath.Join(saves, "Worlds"),
		PlayersDir: filepath.Join(saves, "Players"),
		DefsDir:    "./configs",
		IndexPath:  "./worlds.db",
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.WorldsDir) == "" {
		return fmt.Errorf("worlds_dir must not be empty")
	}
	if strings.TrimSpace(c.DefsDir) == "" {
		return fmt.Errorf("defs_dir must not be empty")
	}
	return nil
}
