package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:            "0.0.0.0",
			Port:            8787,
			RateLimitPerMin: 60,
		},
		Agent: AgentConfig{
			Provider:              "anthropic",
			Model:                 "claude-sonnet-4-6",
			MaxTokens:             4096,
			MaxToolIterations:     20,
			StepApprovalTimeoutS:  600,
			ScopeApprovalTimeoutS: 90,
			DefaultMaxSteps:       10,
		},
		Sessions: SessionsConfig{
			DataDir: "./data/sessions",
		},
		Tools: ToolsConfig{
			DefinitionsFile: "./data/tools.yaml",
			WorkspaceDir:    "./data/workspace",
			DefaultTimeoutS: 300,
		},
	}
}

// Load reads a JSON config file at path, applying it on top of Default().
// A missing file is not an error — defaults are returned as-is, matching the
// teacher's tolerance for a config-free first run.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
