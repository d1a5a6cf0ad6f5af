package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const fileName = "xrmodel.yaml"

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return fmt.Errorf("model.path is empty")
	}
	if c.Normalize.TargetHeight <= 0 {
		return fmt.Errorf("normalize.target_height must be positive, got %g", c.Normalize.TargetHeight)
	}
	if c.Output.Dir == "" || c.Output.GLB == "" || c.Output.Manifest == "" {
		return fmt.Errorf("output.dir, output.glb and output.manifest must be set")
	}
	if c.Output.LOD != "" && !(c.Output.LODFactor > 0 && c.Output.LODFactor <= 1) {
		return fmt.Errorf("output.lod_factor must be in (0, 1], got %g", c.Output.LODFactor)
	}
	if c.Load.Timeout <= 0 {
		return fmt.Errorf("load.timeout must be positive, got %v", c.Load.Timeout)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./" + fileName,
		filepath.Join(ConfigDir(), fileName),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "XRModel")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "XRModel")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "xrmodel")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "xrmodel")
	}
}

// loadFromFile merges a YAML file over the values already in cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
