// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package contextdoc assembles the system-prompt document handed to
// the agent at launch.
//
// The document is built from files in the cloned repository, read in a
// fixed order, followed by sections synthesized from the session
// configuration:
//
//  1. agents/SYSTEM.md
//  2. agents/<role>/PROMPT.md, or the legacy agents/<role>.md
//  3. docs/BRIEFING.md
//  4. docs/ARCHITECTURE.md
//  5. state/progress.yaml, summarized
//  6. state/logs/<today>.md, last 30 lines
//  7. session metadata
//  8. command-line tool documentation
//  9. the task and standing reminders
//
// Missing files produce no section. Each file's content is truncated
// to a fixed rune budget with a visible marker, so one oversized
// document cannot crowd out the rest.
package contextdoc
