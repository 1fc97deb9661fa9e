// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contextdoc

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bureau-foundation/sessionrunner/lib/clock"
	"github.com/bureau-foundation/sessionrunner/lib/projectstate"
	"github.com/bureau-foundation/sessionrunner/lib/session"
)

// DefaultMaxFileCharacters bounds each source file's contribution.
const DefaultMaxFileCharacters = 32000

// DailyLogLines is how many trailing lines of today's log are included.
const DailyLogLines = 30

// Separator joins sections.
const Separator = "\n\n---\n\n"

// Document is an assembled context.
type Document struct {
	Text string

	// Sources lists the repository-relative paths that contributed a
	// section, in read order.
	Sources []string
}

// WriteFile writes the document text to path, creating the parent
// directory.
func (d *Document) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating context directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(d.Text), 0644); err != nil {
		return fmt.Errorf("writing context document: %w", err)
	}
	return nil
}

// Request carries the per-run inputs that are not files.
type Request struct {
	Config *session.Config

	// ServerURL is the resolved control-plane URL, empty when none.
	ServerURL string

	// SessionID is the control-plane session, empty in headless mode.
	SessionID string
}

// Options configures an Assembler.
type Options struct {
	// MaxFileCharacters defaults to DefaultMaxFileCharacters.
	MaxFileCharacters int

	// Clock selects today's daily log. Defaults to clock.Real().
	Clock clock.Clock

	Logger *slog.Logger
}

// Assembler reads context sources from a repository.
type Assembler struct {
	maxFileCharacters int
	clock             clock.Clock
	logger            *slog.Logger
}

// NewAssembler returns an Assembler with defaults applied.
func NewAssembler(options Options) *Assembler {
	assembler := &Assembler{
		maxFileCharacters: options.MaxFileCharacters,
		clock:             options.Clock,
		logger:            options.Logger,
	}
	if assembler.maxFileCharacters <= 0 {
		assembler.maxFileCharacters = DefaultMaxFileCharacters
	}
	if assembler.clock == nil {
		assembler.clock = clock.Real()
	}
	if assembler.logger == nil {
		assembler.logger = slog.Default()
	}
	return assembler
}

// builder accumulates sections and their sources.
type builder struct {
	sections []string
	sources  []string
}

func (b *builder) add(source, section string) {
	b.sections = append(b.sections, section)
	if source != "" {
		b.sources = append(b.sources, source)
	}
}

// Assemble builds the context document for request from the repository
// rooted at repositoryDirectory. Unreadable or malformed sources are
// logged and skipped; assembly itself does not fail.
func (a *Assembler) Assemble(repositoryDirectory string, request Request) *Document {
	config := request.Config
	role := string(config.AgentRole)
	var b builder

	if content, ok := a.readFile(repositoryDirectory, "agents/SYSTEM.md"); ok {
		b.add("agents/SYSTEM.md", content)
	}

	for _, candidate := range []string{
		path.Join("agents", role, "PROMPT.md"),
		path.Join("agents", role+".md"),
	} {
		if content, ok := a.readFile(repositoryDirectory, candidate); ok {
			b.add(candidate, content)
			break
		}
	}

	if content, ok := a.readFile(repositoryDirectory, "docs/BRIEFING.md"); ok {
		b.add("docs/BRIEFING.md", "# Project Briefing\n\n"+content)
	}
	if content, ok := a.readFile(repositoryDirectory, "docs/ARCHITECTURE.md"); ok {
		b.add("docs/ARCHITECTURE.md", "# Architecture\n\n"+content)
	}

	if section, ok := a.progressSection(repositoryDirectory); ok {
		b.add(projectstate.RelativePath, section)
	}

	logPath := path.Join("state", "logs", a.clock.Now().UTC().Format("2006-01-02")+".md")
	if content, ok := a.readRaw(repositoryDirectory, logPath); ok {
		tail := truncate(lastLines(content, DailyLogLines), a.maxFileCharacters)
		b.add(logPath, fmt.Sprintf("# Today's Log (last %d lines)\n\n%s", DailyLogLines, tail))
	}

	b.add("", metadataSection(request))
	b.add("", toolsSection(request))
	b.add("", taskSection(config))

	return &Document{
		Text:    strings.Join(b.sections, Separator),
		Sources: b.sources,
	}
}

// readFile returns the trimmed, truncated content of a repository file.
// Missing and empty files report false.
func (a *Assembler) readFile(repositoryDirectory, relativePath string) (string, bool) {
	content, ok := a.readRaw(repositoryDirectory, relativePath)
	if !ok {
		return "", false
	}
	return truncate(content, a.maxFileCharacters), true
}

func (a *Assembler) readRaw(repositoryDirectory, relativePath string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(repositoryDirectory, filepath.FromSlash(relativePath)))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("skipping unreadable context file", "path", relativePath, "error", err)
		}
		return "", false
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", false
	}
	return content, true
}

func (a *Assembler) progressSection(repositoryDirectory string) (string, bool) {
	statePath := filepath.Join(repositoryDirectory, filepath.FromSlash(projectstate.RelativePath))
	if _, err := os.Stat(statePath); err != nil {
		return "", false
	}
	state, err := projectstate.Load(statePath)
	if err != nil {
		a.logger.Warn("skipping project state", "path", projectstate.RelativePath, "error", err)
		return "", false
	}
	lines := state.SummaryLines()
	if len(lines) == 0 {
		return "", false
	}
	return truncate("# Project Progress\n\n"+strings.Join(lines, "\n"), a.maxFileCharacters), true
}

// truncate limits text to limit runes, appending a marker that names
// how many were dropped.
func truncate(text string, limit int) string {
	total := utf8.RuneCountInString(text)
	if total <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + fmt.Sprintf("\n\n[... truncated %d characters]", total-limit)
}

func lastLines(text string, count int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > count {
		lines = lines[len(lines)-count:]
	}
	return strings.Join(lines, "\n")
}
