// Package config loads the server's root configuration: data directory,
// default LLM model/provider, component timeouts, and gateway bind address.
package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON, coercing
// numbers to strings. Kept for config fields that may be authored by hand.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the engagement server.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Agent     AgentConfig     `json:"agent"`
	Sessions  SessionsConfig  `json:"sessions"`
	Tools     ToolsConfig     `json:"tools"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`

	mu sync.RWMutex
}

// GatewayConfig configures the HTTP/WS listener.
type GatewayConfig struct {
	Host             string `json:"host"`
	Port             int    `json:"port"`
	RateLimitPerMin  int    `json:"rate_limit_per_min"`
	AllowedOrigins   FlexibleStringSlice `json:"allowed_origins,omitempty"`
}

// AgentConfig configures the LLM provider and the agent driver's defaults.
type AgentConfig struct {
	Provider             string `json:"provider"`
	Model                string `json:"model"`
	MaxTokens            int    `json:"max_tokens"`
	MaxToolIterations    int    `json:"max_tool_iterations"`
	StepApprovalTimeoutS int    `json:"step_approval_timeout_seconds"`
	ScopeApprovalTimeoutS int   `json:"scope_approval_timeout_seconds"`
	DefaultMaxSteps      int    `json:"default_max_steps"`
}

// SessionsConfig configures the session store's on-disk location.
type SessionsConfig struct {
	DataDir string `json:"data_dir"`
}

// ToolsConfig configures the tool-definition registry and the executor.
type ToolsConfig struct {
	DefinitionsFile string `json:"definitions_file"`
	WorkspaceDir    string `json:"workspace_dir"`
	DefaultTimeoutS int    `json:"default_timeout_seconds"`
}

// SchedulerConfig configures the scheduler's tick interval.
type SchedulerConfig struct {
	TickInterval string `json:"tick_interval,omitempty"`
}

// TelemetryConfig configures tracing. No exporter is wired; this only
// toggles whether spans are created at all.
type TelemetryConfig struct {
	Enabled bool `json:"enabled"`
}

// RLock / RUnlock expose the embedded mutex for hot-path readers that want
// a consistent snapshot of multiple fields, following the teacher's pattern
// of making the config itself lockable for hot-reload safety.
func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }
func (c *Config) Lock()    { c.mu.Lock() }
func (c *Config) Unlock()  { c.mu.Unlock() }
