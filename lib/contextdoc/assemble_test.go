// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contextdoc

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/sessionrunner/lib/clock"
	"github.com/bureau-foundation/sessionrunner/lib/session"
)

var testNow = time.Date(2026, 5, 14, 23, 30, 0, 0, time.UTC)

func testRequest() Request {
	return Request{
		Config: &session.Config{
			RunID:         "run-9",
			ProjectID:     "proj-3",
			AgentRole:     session.RoleEngineer,
			Phase:         "build",
			Branch:        "main",
			Task:          "Implement the signup page.",
			AssignedTasks: []string{"TASK-1", "TASK-2"},
		},
		ServerURL: "http://control.test",
		SessionID: "sess-5",
	}
}

func newTestAssembler(t *testing.T, maxCharacters int) *Assembler {
	t.Helper()
	return NewAssembler(Options{MaxFileCharacters: maxCharacters, Clock: clock.Fake(testNow)})
}

func writeRepoFile(t *testing.T, root, relative, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relative))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestAssemble_OrderAndSources(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRepoFile(t, root, "agents/SYSTEM.md", "SYSTEM PROMPT")
	writeRepoFile(t, root, "agents/engineer/PROMPT.md", "ENGINEER PROMPT")
	writeRepoFile(t, root, "agents/engineer.md", "LEGACY PROMPT")
	writeRepoFile(t, root, "docs/BRIEFING.md", "BRIEFING BODY")
	writeRepoFile(t, root, "docs/ARCHITECTURE.md", "ARCHITECTURE BODY")
	writeRepoFile(t, root, "state/progress.yaml", "phase: build\nnext_actions:\n  - wire the API\n")
	writeRepoFile(t, root, "state/logs/2026-05-14.md", "LOG LINE")

	document := newTestAssembler(t, 0).Assemble(root, testRequest())

	wantSources := []string{
		"agents/SYSTEM.md",
		"agents/engineer/PROMPT.md",
		"docs/BRIEFING.md",
		"docs/ARCHITECTURE.md",
		"state/progress.yaml",
		"state/logs/2026-05-14.md",
	}
	if !reflect.DeepEqual(document.Sources, wantSources) {
		t.Errorf("Sources = %v, want %v", document.Sources, wantSources)
	}

	markers := []string{
		"SYSTEM PROMPT",
		"ENGINEER PROMPT",
		"BRIEFING BODY",
		"ARCHITECTURE BODY",
		"Phase: build",
		"- wire the API",
		"LOG LINE",
		"- Run ID: run-9",
		"# Tools",
		"Implement the signup page.",
		"# Reminders",
	}
	last := -1
	for _, marker := range markers {
		index := strings.Index(document.Text, marker)
		if index < 0 {
			t.Fatalf("document missing %q", marker)
		}
		if index < last {
			t.Errorf("%q appears out of order", marker)
		}
		last = index
	}
	if strings.Contains(document.Text, "LEGACY PROMPT") {
		t.Error("legacy prompt included alongside the per-role prompt")
	}
	if sections := strings.Split(document.Text, Separator); len(sections) != 9 {
		t.Errorf("got %d sections, want 9", len(sections))
	}
}

func TestAssemble_SectionCount(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRepoFile(t, root, "agents/SYSTEM.md", "system")
	writeRepoFile(t, root, "docs/BRIEFING.md", "briefing")

	document := newTestAssembler(t, 0).Assemble(root, testRequest())

	// system, briefing, metadata, tools, task
	if sections := strings.Split(document.Text, Separator); len(sections) != 5 {
		t.Errorf("got %d sections, want 5", len(sections))
	}
}

func TestAssemble_LegacyRolePrompt(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRepoFile(t, root, "agents/engineer.md", "LEGACY PROMPT")

	document := newTestAssembler(t, 0).Assemble(root, testRequest())
	if !reflect.DeepEqual(document.Sources, []string{"agents/engineer.md"}) {
		t.Errorf("Sources = %v", document.Sources)
	}
	if !strings.HasPrefix(document.Text, "LEGACY PROMPT"+Separator) {
		t.Errorf("document does not start with the legacy prompt:\n%s", document.Text)
	}
}

func TestAssemble_SummaryReminderLeadsWithHeading(t *testing.T) {
	t.Parallel()

	document := newTestAssembler(t, 0).Assemble(t.TempDir(), testRequest())
	reminders := document.Text[strings.Index(document.Text, "# Reminders"):]
	if !strings.Contains(reminders, "Start your final message with a \"# Summary\" heading") {
		t.Errorf("reminders do not ask for a leading summary heading:\n%s", reminders)
	}
	if strings.Contains(reminders, "End your final message") {
		t.Errorf("reminders still ask for a trailing summary:\n%s", reminders)
	}
}

func TestAssemble_EmptyRepository(t *testing.T) {
	t.Parallel()

	document := newTestAssembler(t, 0).Assemble(t.TempDir(), testRequest())
	if len(document.Sources) != 0 {
		t.Errorf("Sources = %v, want none", document.Sources)
	}
	if !strings.HasPrefix(document.Text, "# Session") {
		t.Errorf("document should open with session metadata:\n%s", document.Text)
	}
	for _, want := range []string{"- Assigned tasks:", "  - TASK-2", "- Session ID: sess-5", "- Server URL: http://control.test"} {
		if !strings.Contains(document.Text, want) {
			t.Errorf("metadata missing %q", want)
		}
	}
}

func TestAssemble_Truncation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRepoFile(t, root, "docs/BRIEFING.md", strings.Repeat("ü", 150))

	document := newTestAssembler(t, 100).Assemble(root, testRequest())
	want := "# Project Briefing\n\n" + strings.Repeat("ü", 100) + "\n\n[... truncated 50 characters]"
	if !strings.Contains(document.Text, want+Separator) {
		t.Errorf("truncated briefing not found in:\n%s", document.Text)
	}
}

func TestAssemble_DailyLogTail(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var log strings.Builder
	for line := 1; line <= 45; line++ {
		fmt.Fprintf(&log, "entry %02d\n", line)
	}
	writeRepoFile(t, root, "state/logs/2026-05-14.md", log.String())
	writeRepoFile(t, root, "state/logs/2026-05-13.md", "yesterday")

	document := newTestAssembler(t, 0).Assemble(root, testRequest())
	if strings.Contains(document.Text, "entry 15") || strings.Contains(document.Text, "yesterday") {
		t.Error("included log lines outside the window")
	}
	for _, want := range []string{"entry 16", "entry 45"} {
		if !strings.Contains(document.Text, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestAssemble_MalformedProgressSkipped(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRepoFile(t, root, "state/progress.yaml", "phase: [broken")

	document := newTestAssembler(t, 0).Assemble(root, testRequest())
	if len(document.Sources) != 0 {
		t.Errorf("Sources = %v, want none", document.Sources)
	}
}

func TestAssemble_HeadlessTools(t *testing.T) {
	t.Parallel()

	request := testRequest()
	request.ServerURL = ""
	document := newTestAssembler(t, 0).Assemble(t.TempDir(), request)
	if !strings.Contains(document.Text, "No control-plane server") {
		t.Error("headless tool notice missing")
	}
	if strings.Contains(document.Text, "curl") {
		t.Error("curl examples present without a server")
	}
}

func TestDocumentWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "home", "session-context.md")
	document := &Document{Text: "context body"}
	if err := document.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "context body" {
		t.Errorf("file = %q", data)
	}
}
