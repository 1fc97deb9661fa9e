// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/sessionrunner/lib/session"
)

// Extension is the agent's transcript file extension.
const Extension = ".jsonl"

// Compression selects how the copied transcript is stored.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression accepts "", "none", "zstd", and "lz4".
func ParseCompression(value string) (Compression, error) {
	switch Compression(strings.ToLower(strings.TrimSpace(value))) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	}
	return "", fmt.Errorf("unknown transcript compression %q (want none, zstd, or lz4)", value)
}

// suffix is appended to the destination file name.
func (c Compression) suffix() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	}
	return ""
}

// DefaultRoot returns the agent's transcript directory under home.
func DefaultRoot(home string) string {
	return filepath.Join(home, ".claude", "projects")
}

// Capture describes the outcome of Capturer.Capture.
type Capture struct {
	// Captured is false when no transcript was found.
	Captured bool

	// Source is the absolute path of the copied transcript.
	Source string

	// Path is the destination, relative to the workspace, with forward
	// slashes.
	Path string

	// Digest is the BLAKE3-256 hex digest of the transcript content
	// (before compression).
	Digest string

	// Size is the uncompressed byte count.
	Size int64
}

// Options configures a Capturer.
type Options struct {
	// Root is scanned for transcripts.
	Root string

	Compression Compression

	Logger *slog.Logger
}

// Capturer copies the newest transcript into a workspace.
type Capturer struct {
	root        string
	compression Compression
	logger      *slog.Logger
}

// NewCapturer returns a Capturer. An empty Compression means none.
func NewCapturer(options Options) *Capturer {
	capturer := &Capturer{
		root:        options.Root,
		compression: options.Compression,
		logger:      options.Logger,
	}
	if capturer.compression == "" {
		capturer.compression = CompressionNone
	}
	if capturer.logger == nil {
		capturer.logger = slog.Default()
	}
	return capturer
}

// DestinationPath returns the workspace-relative path the transcript
// for role and runID is written to.
func (capturer *Capturer) DestinationPath(role session.AgentRole, runID string) string {
	return path.Join("sessions", string(role), runID, "transcript"+Extension+capturer.compression.suffix())
}

// Capture finds the newest transcript and copies it into workspace.
// Finding none is not an error: the returned Capture has Captured
// false.
func (capturer *Capturer) Capture(workspace string, role session.AgentRole, runID string) (*Capture, error) {
	source, found, err := FindNewest(capturer.root)
	if err != nil {
		return nil, err
	}
	if !found {
		capturer.logger.Warn("no agent transcript found", "root", capturer.root)
		return &Capture{}, nil
	}

	relative := capturer.DestinationPath(role, runID)
	destination := filepath.Join(workspace, filepath.FromSlash(relative))
	digest, size, err := capturer.copy(source, destination)
	if err != nil {
		return nil, err
	}

	capturer.logger.Info("captured agent transcript",
		"source", source,
		"path", relative,
		"bytes", size,
		"blake3", digest,
		"compression", capturer.compression,
	)
	return &Capture{
		Captured: true,
		Source:   source,
		Path:     relative,
		Digest:   digest,
		Size:     size,
	}, nil
}

// copy streams source to destination through the digest and the
// configured compressor.
func (capturer *Capturer) copy(source, destination string) (string, int64, error) {
	input, err := os.Open(source)
	if err != nil {
		return "", 0, fmt.Errorf("opening transcript: %w", err)
	}
	defer input.Close()

	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return "", 0, fmt.Errorf("creating transcript directory: %w", err)
	}
	output, err := os.Create(destination)
	if err != nil {
		return "", 0, fmt.Errorf("creating transcript copy: %w", err)
	}

	writer, err := capturer.compressor(output)
	if err != nil {
		output.Close()
		return "", 0, err
	}

	hasher := blake3.New()
	size, copyError := io.Copy(io.MultiWriter(writer, hasher), input)
	closeError := writer.Close()
	fileError := output.Close()
	if err := errors.Join(copyError, closeError, fileError); err != nil {
		os.Remove(destination)
		return "", 0, fmt.Errorf("copying transcript: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (capturer *Capturer) compressor(output io.Writer) (io.WriteCloser, error) {
	switch capturer.compression {
	case CompressionZstd:
		encoder, err := zstd.NewWriter(output, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		return encoder, nil
	case CompressionLZ4:
		return lz4.NewWriter(output), nil
	}
	return nopCloser{output}, nil
}

// FindNewest returns the most recently modified transcript one level
// below root: the newest candidate of each project directory, then the
// newest of those. A missing root finds nothing.
func FindNewest(root string) (string, bool, error) {
	projects, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("scanning transcript root: %w", err)
	}

	var newestPath string
	var newestTime time.Time
	for _, project := range projects {
		if !project.IsDir() {
			continue
		}
		candidate, modified, ok := newestInDirectory(filepath.Join(root, project.Name()))
		if ok && (newestPath == "" || modified.After(newestTime)) {
			newestPath, newestTime = candidate, modified
		}
	}
	return newestPath, newestPath != "", nil
}

// newestInDirectory ignores unreadable entries: one bad project
// directory must not hide the others.
func newestInDirectory(directory string) (string, time.Time, bool) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return "", time.Time{}, false
	}
	var newestPath string
	var newestTime time.Time
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newestPath == "" || info.ModTime().After(newestTime) {
			newestPath, newestTime = filepath.Join(directory, entry.Name()), info.ModTime()
		}
	}
	return newestPath, newestTime, newestPath != ""
}
