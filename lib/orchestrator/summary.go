// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"bytes"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultSummary is used when the agent's result has no text after the
// summary heading is removed.
const DefaultSummary = "No summary provided"

var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New()
	})
	return markdownParserInstance
}

// ExtractSummary turns the agent's free-text result into a commit and
// report summary. A leading heading reading "Summary" (any level, ATX
// or setext, case-insensitive, optional trailing colon) is removed;
// the rest is trimmed. Empty text yields DefaultSummary.
func ExtractSummary(output string) string {
	source := []byte(output)
	document := getMarkdownParser().Parser().Parse(text.NewReader(source))

	if heading, ok := document.FirstChild().(*ast.Heading); ok && isSummaryHeading(heading, source) {
		source = source[headingEnd(heading, source):]
	}

	summary := strings.TrimSpace(string(source))
	if summary == "" {
		return DefaultSummary
	}
	return summary
}

func isSummaryHeading(heading *ast.Heading, source []byte) bool {
	var title strings.Builder
	ast.Walk(heading, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if textNode, ok := node.(*ast.Text); ok && entering {
			title.Write(textNode.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(title.String()), ":"))
	return strings.EqualFold(name, "summary")
}

// headingEnd returns the offset just past the heading's last source
// line, including a setext underline.
func headingEnd(heading *ast.Heading, source []byte) int {
	lines := heading.Lines()
	if lines.Len() == 0 {
		return 0
	}
	first := lines.At(0)
	last := lines.At(lines.Len() - 1)

	end := skipLine(source, last.Stop)
	lineStart := bytes.LastIndexByte(source[:first.Start], '\n') + 1
	if !bytes.HasPrefix(bytes.TrimLeft(source[lineStart:], " "), []byte("#")) {
		// Setext: the underline follows the title.
		end = skipLine(source, end+1)
	}
	return end
}

// skipLine returns the offset after the newline ending the line that
// contains position, or len(source).
func skipLine(source []byte, position int) int {
	if position > len(source) {
		return len(source)
	}
	if position > 0 && source[position-1] == '\n' {
		return position
	}
	index := bytes.IndexByte(source[position:], '\n')
	if index < 0 {
		return len(source)
	}
	return position + index + 1
}
