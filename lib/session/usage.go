// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

// TokenUsage is the agent's token consumption for one run, reduced
// from the usage object in the agent's terminal JSON result.
type TokenUsage struct {
	InputTokens      int64    `json:"input_tokens"`
	OutputTokens     int64    `json:"output_tokens"`
	CacheReadTokens  int64    `json:"cache_read_tokens"`
	CacheWriteTokens int64    `json:"cache_write_tokens"`
	TotalTokens      int64    `json:"total_tokens"`
	CostUSD          *float64 `json:"cost_usd,omitempty"`
}

// NewTokenUsage builds a TokenUsage and fills in the total. cost may
// be nil when the agent did not report one.
func NewTokenUsage(input, output, cacheRead, cacheWrite int64, cost *float64) TokenUsage {
	usage := TokenUsage{
		InputTokens:      input,
		OutputTokens:     output,
		CacheReadTokens:  cacheRead,
		CacheWriteTokens: cacheWrite,
		CostUSD:          cost,
	}
	usage.TotalTokens = usage.Total()
	return usage
}

// Total returns the sum of the four token counts.
func (usage TokenUsage) Total() int64 {
	return usage.InputTokens + usage.OutputTokens + usage.CacheReadTokens + usage.CacheWriteTokens
}
