// Package config loads the constitution document and the environment-derived
// runtime settings.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sentinelgate/sentinel/internal/hardkill"
)

// Constitution is the operator-authored security document. The hard_kill,
// network_lock and execution_mode sections drive the deterministic filter;
// strategic_context and semantic_instructions flow into the auditor prompt.
type Constitution struct {
	HardKill struct {
		BlockedStrings []string `yaml:"blocked_strings"`
		BlockedPaths   []string `yaml:"blocked_paths"`
		BlockedTools   []string `yaml:"blocked_tools"`
	} `yaml:"hard_kill"`

	NetworkLock struct {
		BlockedTools       []string `yaml:"blocked_tools"`
		WhitelistedDomains []string `yaml:"whitelisted_domains"`
	} `yaml:"network_lock"`

	ExecutionMode struct {
		LockdownMode    bool     `yaml:"lockdown_mode"`
		AllowedCommands []string `yaml:"allowed_commands"`
	} `yaml:"execution_mode"`

	StrategicContext     map[string]any `yaml:"strategic_context"`
	SemanticInstructions map[string]any `yaml:"semantic_instructions"`
}

// LoadConstitution reads the constitution from disk. A missing file yields
// the zero Constitution (built-in defaults apply downstream) with a warning;
// a present but unparseable file is a startup error.
func LoadConstitution(path string, diag io.Writer) (*Constitution, error) {
	if diag == nil {
		diag = os.Stderr
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(diag, "warning: constitution not found at %s, using built-in defaults\n", path)
			return &Constitution{}, nil
		}
		return nil, fmt.Errorf("read constitution: %w", err)
	}

	var c Constitution
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse constitution: %w", err)
	}
	return &c, nil
}

// HardKillConfig converts the constitution sections into filter configuration.
// A section that is absent falls back to the built-in default; a section that
// is present but empty means the operator cleared it, and stays empty.
func (c *Constitution) HardKillConfig() hardkill.Config {
	def := hardkill.DefaultConfig()
	return hardkill.Config{
		BlockedStrings:      orDefault(c.HardKill.BlockedStrings, def.BlockedStrings),
		BlockedPaths:        orDefault(c.HardKill.BlockedPaths, def.BlockedPaths),
		BlockedTools:        orDefault(c.HardKill.BlockedTools, def.BlockedTools),
		BlockedNetworkTools: orDefault(c.NetworkLock.BlockedTools, def.BlockedNetworkTools),
		WhitelistedDomains:  c.NetworkLock.WhitelistedDomains,
		LockdownMode:        c.ExecutionMode.LockdownMode,
		AllowedCommands:     c.ExecutionMode.AllowedCommands,
	}
}

// SemanticContext renders the prompt context block from the constitution's
// strategic and semantic sections. Empty sections produce an empty string.
func (c *Constitution) SemanticContext() string {
	var out string
	if len(c.StrategicContext) > 0 {
		if b, err := json.MarshalIndent(c.StrategicContext, "", "  "); err == nil {
			out += "\nSTRATEGIC CONTEXT:\n" + string(b) + "\n"
		}
	}
	if len(c.SemanticInstructions) > 0 {
		if b, err := json.MarshalIndent(c.SemanticInstructions, "", "  "); err == nil {
			out += "\nSEMANTIC INSTRUCTIONS:\n" + string(b) + "\n"
		}
	}
	return out
}

func orDefault(v, def []string) []string {
	if v == nil {
		return def
	}
	return v
}
