// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contextdoc

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/sessionrunner/lib/session"
)

func metadataSection(request Request) string {
	config := request.Config
	var b strings.Builder
	b.WriteString("# Session\n\n")
	fmt.Fprintf(&b, "- Run ID: %s\n", config.RunID)
	fmt.Fprintf(&b, "- Project ID: %s\n", config.ProjectID)
	fmt.Fprintf(&b, "- Role: %s\n", config.AgentRole)
	if config.Phase != "" {
		fmt.Fprintf(&b, "- Phase: %s\n", config.Phase)
	}
	fmt.Fprintf(&b, "- Branch: %s\n", config.Branch)
	if request.SessionID != "" {
		fmt.Fprintf(&b, "- Session ID: %s\n", request.SessionID)
	}
	if request.ServerURL != "" {
		fmt.Fprintf(&b, "- Server URL: %s\n", request.ServerURL)
	}
	if len(config.AssignedTasks) > 0 {
		b.WriteString("- Assigned tasks:\n")
		for _, task := range config.AssignedTasks {
			fmt.Fprintf(&b, "  - %s\n", task)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func toolsSection(request Request) string {
	var b strings.Builder
	b.WriteString("# Tools\n\n")
	b.WriteString("Your environment identifies this session:\n\n")
	fmt.Fprintf(&b, "- `$%s`, `$%s`, `$%s`, `$%s`\n",
		session.EnvAgentProjectID, session.EnvAgentRunID, session.EnvAgentSessionID, session.EnvAgentRole)
	if request.ServerURL == "" {
		b.WriteString("\nNo control-plane server is configured for this run. Work from the repository alone.\n")
	} else {
		fmt.Fprintf(&b, "- `$%s` is the control-plane API base URL.\n\n", session.EnvAgentServerURL)
		b.WriteString("Query project resources with curl:\n\n")
		b.WriteString("```\n")
		fmt.Fprintf(&b, "curl -s \"$%s/api/projects/$%s/tasks\"\n", session.EnvAgentServerURL, session.EnvAgentProjectID)
		fmt.Fprintf(&b, "curl -s \"$%s/api/projects/$%s/tasks/<task-id>\"\n", session.EnvAgentServerURL, session.EnvAgentProjectID)
		b.WriteString("```\n")
	}
	b.WriteString("\nUse git to inspect history. Do not commit or push: the runner commits every change in the working tree when you finish.")
	return b.String()
}

// summaryReminder matches how the runner reads the final message: a
// leading "# Summary" heading is dropped and the first line after it
// becomes the commit subject.
const summaryReminder = "Start your final message with a \"# Summary\" heading. " +
	"The first line after it becomes the commit subject, so make it a short description of what you changed; " +
	"put any further detail on the lines below."

func taskSection(config *session.Config) string {
	var b strings.Builder
	b.WriteString("# Task\n\n")
	b.WriteString(strings.TrimSpace(config.Task))
	b.WriteString("\n\n# Reminders\n\n")
	b.WriteString("- Stay inside the repository working tree.\n")
	b.WriteString("- Keep state/progress.yaml next_actions current when your work changes them.\n")
	b.WriteString("- Append notable decisions to today's file under state/logs/.\n")
	b.WriteString("- " + summaryReminder)
	return b.String()
}
