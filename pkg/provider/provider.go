// Package provider executes the actual transfer for one configured item,
// either by invoking an external tool (hf, ollama, ramalama, podman) or by a
// direct HTTP download. The variant set is closed and known at design time;
// adapters are constructed through the ForModels and ForOCI factories.
package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/sirupsen/logrus"
)

// Kind identifies a provider variant.
type Kind string

const (
	KindOllama   Kind = "ollama"
	KindLlamaCpp Kind = "llama.cpp"
	KindRamalama Kind = "ramalama"
	KindPodman   Kind = "podman"
)

// ModelRequest describes one model artifact transfer.
type ModelRequest struct {
	// Repo is the provider-side repository reference, or an http(s) URL for
	// direct downloads.
	Repo string
	// Artifact is the file name within the repository.
	Artifact string
	// Location is the absolute destination path.
	Location string
	// ExtraArgs are appended to the tool invocation, split with shell word
	// rules.
	ExtraArgs string
}

// OCIRequest describes one image pull or build.
type OCIRequest struct {
	Image string
	// Containerfile, when set, switches the request from a registry pull to a
	// local build with the Containerfile's directory as context.
	Containerfile string
	// BuildArgs are passed in order as --build-arg values.
	BuildArgs []string
	ExtraArgs string
}

// ModelProvider transfers a single model artifact.
type ModelProvider interface {
	// Name identifies the variant for logs and reports.
	Name() string
	// Tool returns the external binary the variant depends on, or "" when
	// none is required.
	Tool() string
	// Pull runs the transfer to completion. A tool's non-zero exit or a
	// network error is returned, never propagated as a crash.
	Pull(ctx context.Context, req ModelRequest) error
}

// OCIProvider materializes a single image.
type OCIProvider interface {
	Name() string
	Tool() string
	// Pull fetches the image from a registry, or builds it locally when the
	// request carries a Containerfile.
	Pull(ctx context.Context, req OCIRequest) error
}

// ErrMissingTool indicates a required external tool is not installed.
var ErrMissingTool = errors.New("required tool not installed")

// MissingToolError names the absent tool. It is a fatal precondition failure,
// raised once before any item is processed.
type MissingToolError struct {
	Tool string
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("required tool %q not found in PATH", e.Tool)
}

// Is implements error matching against ErrMissingTool.
func (e *MissingToolError) Is(target error) bool {
	return target == ErrMissingTool
}

// ErrUnknownProvider indicates a provider kind outside the supported set.
var ErrUnknownProvider = errors.New("unknown provider")

// ForModels returns the adapter for the given model provider kind.
func ForModels(kind Kind, log *logrus.Entry) (ModelProvider, error) {
	switch kind {
	case KindLlamaCpp:
		return &hfProvider{execProvider{log: log, run: runTool}}, nil
	case KindOllama:
		return &ollamaProvider{execProvider{log: log, run: runTool}}, nil
	case KindRamalama:
		return &ramalamaProvider{execProvider{log: log, run: runTool}}, nil
	default:
		return nil, fmt.Errorf("%w: model provider %q", ErrUnknownProvider, kind)
	}
}

// ForOCI returns the adapter for the given OCI provider kind.
func ForOCI(kind Kind, log *logrus.Entry) (OCIProvider, error) {
	switch kind {
	case KindPodman:
		return &podmanProvider{log: log, run: runTool}, nil
	default:
		return nil, fmt.Errorf("%w: oci provider %q", ErrUnknownProvider, kind)
	}
}

// CheckTools verifies that every named tool resolves in PATH. It is called
// once before any item is processed; a missing tool aborts the whole run.
func CheckTools(tools ...string) error {
	seen := make(map[string]bool, len(tools))
	for _, tool := range tools {
		if tool == "" || seen[tool] {
			continue
		}
		seen[tool] = true
		if _, err := exec.LookPath(tool); err != nil {
			return &MissingToolError{Tool: tool}
		}
	}
	return nil
}

// runFunc executes an external command; injectable for tests.
type runFunc func(ctx context.Context, name string, args ...string) error

// runTool runs the tool with its output streamed to the terminal, the way the
// wrapped tools expect to render their own progress.
func runTool(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", name, err)
	}
	return nil
}

// splitExtraArgs splits a free-form argument string into argv words.
func splitExtraArgs(extra string) ([]string, error) {
	if extra == "" {
		return nil, nil
	}
	words, err := shellwords.Parse(extra)
	if err != nil {
		return nil, fmt.Errorf("parsing extra_args %q: %w", extra, err)
	}
	return words, nil
}
