// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"time"
)

// Environment variable names read by the runner.
const (
	EnvConfigPath            = "BUREAU_SESSION_CONFIG"
	EnvAPIKey                = "ANTHROPIC_API_KEY"
	EnvGitToken              = "BUREAU_GIT_TOKEN"
	EnvGitHubToken           = "GITHUB_TOKEN"
	EnvWorkspace             = "BUREAU_WORKSPACE"
	EnvContextFile           = "BUREAU_CONTEXT_FILE"
	EnvSessionID             = "BUREAU_SESSION_ID"
	EnvServerURL             = "BUREAU_SERVER_URL"
	EnvAPIToken              = "BUREAU_API_TOKEN"
	EnvAgentBinary           = "BUREAU_AGENT_BINARY"
	EnvAgentTimeout          = "BUREAU_AGENT_TIMEOUT"
	EnvTranscriptRoot        = "BUREAU_TRANSCRIPT_ROOT"
	EnvTranscriptCompression = "BUREAU_TRANSCRIPT_COMPRESSION"
)

// Identity variables injected into the agent subprocess environment.
const (
	EnvAgentServerURL = "BUREAU_SERVER_URL"
	EnvAgentProjectID = "BUREAU_PROJECT_ID"
	EnvAgentRunID     = "BUREAU_RUN_ID"
	EnvAgentSessionID = "BUREAU_SESSION_ID"
	EnvAgentRole      = "BUREAU_AGENT_ROLE"
)

// DefaultAgentBinary is the agent executable looked up on PATH when
// BUREAU_AGENT_BINARY is unset.
const DefaultAgentBinary = "claude"

// Environment is the runner's view of the process environment. Empty
// strings mean "not provided"; every consumer has a documented
// fallback.
type Environment struct {
	ConfigPath string

	// APIKey is optional: without it the agent falls back to
	// subscription-based authentication.
	APIKey string

	// GitToken is optional: without it git uses ambient credentials.
	GitToken string

	WorkspacePath   string
	ContextFilePath string

	// SessionID identifies the run to the control plane. Without it
	// the progress reporter runs in headless mode and sends nothing.
	SessionID string
	ServerURL string
	APIToken  string

	AgentBinary string

	// AgentTimeout is zero when unset.
	AgentTimeout time.Duration

	TranscriptRoot        string
	TranscriptCompression string
}

// EnvironmentFrom reads the Environment through lookup. It fails only
// on values that are present but malformed.
func EnvironmentFrom(lookup func(string) string) (Environment, error) {
	environment := Environment{
		ConfigPath:            lookup(EnvConfigPath),
		APIKey:                lookup(EnvAPIKey),
		GitToken:              lookup(EnvGitToken),
		WorkspacePath:         lookup(EnvWorkspace),
		ContextFilePath:       lookup(EnvContextFile),
		SessionID:             lookup(EnvSessionID),
		ServerURL:             lookup(EnvServerURL),
		APIToken:              lookup(EnvAPIToken),
		AgentBinary:           lookup(EnvAgentBinary),
		TranscriptRoot:        lookup(EnvTranscriptRoot),
		TranscriptCompression: lookup(EnvTranscriptCompression),
	}
	if environment.GitToken == "" {
		environment.GitToken = lookup(EnvGitHubToken)
	}
	if environment.AgentBinary == "" {
		environment.AgentBinary = DefaultAgentBinary
	}

	if raw := lookup(EnvAgentTimeout); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return Environment{}, fmt.Errorf("%s: %w", EnvAgentTimeout, err)
		}
		if timeout <= 0 {
			return Environment{}, fmt.Errorf("%s must be positive, got %s", EnvAgentTimeout, raw)
		}
		environment.AgentTimeout = timeout
	}
	return environment, nil
}

// ResolveServerURL returns the control-plane URL: the environment
// override if set, otherwise the session config's value (config may
// be nil when loading failed).
func (environment Environment) ResolveServerURL(config *Config) string {
	if environment.ServerURL != "" {
		return environment.ServerURL
	}
	if config != nil {
		return config.ServerURL
	}
	return ""
}
