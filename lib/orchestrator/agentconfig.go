// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/sessionrunner/lib/session"
)

// AgentConfig is the optional per-role file agents/<role>/agent.yaml in
// the target repository.
type AgentConfig struct {
	// Model is a tier name (opus, sonnet, haiku).
	Model session.ModelTier `yaml:"model"`

	// Timeout is a Go duration string ("45m").
	Timeout string `yaml:"timeout"`
}

// agentConfigPath returns the repository-relative path for role.
func agentConfigPath(role session.AgentRole) string {
	return filepath.Join("agents", string(role), "agent.yaml")
}

// LoadAgentConfig reads agents/<role>/agent.yaml under repository. A
// missing file yields a zero AgentConfig. A present file must be valid:
// it is checked into the repository, so a mistake in it is a mistake
// the operator needs to see.
func LoadAgentConfig(repository string, role session.AgentRole) (*AgentConfig, error) {
	path := filepath.Join(repository, agentConfigPath(role))
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &AgentConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading agent config: %w", err)
	}

	var config AgentConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", agentConfigPath(role), err)
	}
	if config.Model != "" && !config.Model.IsKnown() {
		return nil, fmt.Errorf("%s: unknown model tier %q", agentConfigPath(role), config.Model)
	}
	if _, err := config.timeout(); err != nil {
		return nil, fmt.Errorf("%s: %w", agentConfigPath(role), err)
	}
	return &config, nil
}

func (config *AgentConfig) timeout() (time.Duration, error) {
	if config.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %w", err)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return timeout, nil
}

// resolveTier picks the model tier: the session config's explicit
// model, then the repository's agent config, then the role default.
func resolveTier(sessionConfig *session.Config, agentConfig *AgentConfig) session.ModelTier {
	if sessionConfig.Model != "" {
		return sessionConfig.Model
	}
	if agentConfig.Model != "" {
		return agentConfig.Model
	}
	return sessionConfig.AgentRole.DefaultTier()
}

// resolveTimeout picks the agent timeout: the environment override,
// then the agent config, then zero (the runner's default).
func resolveTimeout(environment session.Environment, agentConfig *AgentConfig) time.Duration {
	if environment.AgentTimeout > 0 {
		return environment.AgentTimeout
	}
	timeout, _ := agentConfig.timeout()
	return timeout
}
