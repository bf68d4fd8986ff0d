package mcpserver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config tunes the MCP endpoint. It is loaded from an optional YAML file.
type Config struct {
	Name         string `yaml:"name"`
	Instructions string `yaml:"instructions"`
	// ReadOnly leaves out every tool that queues work or drops jobs.
	ReadOnly  bool                    `yaml:"readonly"`
	Overrides map[string]ToolOverride `yaml:"overrides"`
}

// ToolOverride replaces a tool's description or hides it.
type ToolOverride struct {
	Description string `yaml:"description"`
	Disabled    bool   `yaml:"disabled"`
}

// LoadConfig reads path. An empty path gives the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return ParseConfig(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses MCP configuration from raw bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse mcp config: %w", err)
	}

	if cfg.Name == "" {
		cfg.Name = "paas-orchestrator"
	}
	if cfg.Instructions == "" {
		cfg.Instructions = "Inspect per-server job queues and trigger deployments, database creation and template rollouts."
	}

	return &cfg, nil
}
