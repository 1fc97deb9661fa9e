// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "fmt"

// AgentRole selects the role-specific prompt and the default model
// tier for a session.
type AgentRole string

const (
	RolePM       AgentRole = "pm"
	RoleEngineer AgentRole = "engineer"
	RoleQA       AgentRole = "qa"
	RoleLead     AgentRole = "lead"
)

// IsKnown reports whether r is one of the defined roles.
func (r AgentRole) IsKnown() bool {
	switch r {
	case RolePM, RoleEngineer, RoleQA, RoleLead:
		return true
	}
	return false
}

// DefaultTier returns the model tier a role runs on unless the session
// or the role's agent config overrides it. Planning roles get the
// strongest tier.
func (r AgentRole) DefaultTier() ModelTier {
	switch r {
	case RolePM, RoleLead:
		return TierOpus
	default:
		return TierSonnet
	}
}

// ModelTier is an abstract model size, resolved to a concrete model
// identifier through a static table.
type ModelTier string

const (
	TierOpus   ModelTier = "opus"
	TierSonnet ModelTier = "sonnet"
	TierHaiku  ModelTier = "haiku"
)

var modelIdentifiers = map[ModelTier]string{
	TierOpus:   "claude-opus-4-1-20250805",
	TierSonnet: "claude-sonnet-4-5-20250929",
	TierHaiku:  "claude-haiku-4-5-20251001",
}

// IsKnown reports whether t is one of the defined tiers.
func (t ModelTier) IsKnown() bool {
	_, ok := modelIdentifiers[t]
	return ok
}

// ModelID returns the model identifier passed to the agent binary.
func (t ModelTier) ModelID() (string, error) {
	identifier, ok := modelIdentifiers[t]
	if !ok {
		return "", fmt.Errorf("unknown model tier %q", t)
	}
	return identifier, nil
}
