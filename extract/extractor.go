package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Extractor converts a PDF file to plain text.
type Extractor interface {
	// Extract returns the text content of the PDF at path.
	Extract(ctx context.Context, path string) (string, error)
}

// Backend names accepted by New.
const (
	BackendCommand = "command"
	BackendDocker  = "docker"
)

// Config selects and configures an extraction backend.
type Config struct {
	// Backend is "command" or "docker". Empty means "command".
	Backend string `yaml:"backend"`

	// Pdftotext is the binary used by the command backend.
	Pdftotext string `yaml:"pdftotext"`

	// Image is the converter image used by the docker backend.
	Image string `yaml:"image"`
}

// New builds an Extractor from cfg. The docker backend degrades to the
// command backend when no daemon is reachable.
func New(cfg Config) Extractor {
	switch cfg.Backend {
	case BackendDocker:
		d, err := NewDocker(cfg.Image)
		if err == nil && d.IsAvailable() {
			return d
		}
		slog.Warn("docker extractor unavailable, falling back to pdftotext", "error", err)
		return NewCommand(cfg.Pdftotext)
	default:
		return NewCommand(cfg.Pdftotext)
	}
}

// DefaultPdftotext is the binary the command backend runs.
const DefaultPdftotext = "pdftotext"

// Command extracts text by running a local pdftotext binary.
type Command struct {
	binary string
}

// NewCommand creates a Command extractor. An empty binary means pdftotext
// from PATH.
func NewCommand(binary string) *Command {
	if binary == "" {
		binary = DefaultPdftotext
	}
	return &Command{binary: binary}
}

// Extract runs `pdftotext -layout <path> -` and returns its stdout.
func (c *Command) Extract(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, "-layout", path, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %s: %w", c.binary, msg, err)
		}
		return "", fmt.Errorf("%s: %w", c.binary, err)
	}

	return stdout.String(), nil
}
