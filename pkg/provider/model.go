package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// execProvider is the shared base for tool-backed model adapters.
type execProvider struct {
	log *logrus.Entry
	run runFunc
}

// ensureParent creates the destination's parent directory if absent.
func ensureParent(location string) error {
	dir := filepath.Dir(location)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating destination directory %q: %w", dir, err)
	}
	return nil
}

// hfProvider serves the llama.cpp model provider. Artifacts are plain GGUF
// files fetched from the hub with the hf CLI.
type hfProvider struct {
	execProvider
}

func (p *hfProvider) Name() string { return string(KindLlamaCpp) }
func (p *hfProvider) Tool() string { return "hf" }

func (p *hfProvider) Pull(ctx context.Context, req ModelRequest) error {
	if err := ensureParent(req.Location); err != nil {
		return err
	}
	args := []string{"download", req.Repo, req.Artifact, "--local-dir", filepath.Dir(req.Location)}
	extra, err := splitExtraArgs(req.ExtraArgs)
	if err != nil {
		return err
	}
	args = append(args, extra...)
	p.log.WithFields(logrus.Fields{"repo": req.Repo, "artifact": req.Artifact}).Info("downloading model with hf")
	return p.run(ctx, p.Tool(), args...)
}

// ollamaProvider pulls models into the local ollama store.
type ollamaProvider struct {
	execProvider
}

func (p *ollamaProvider) Name() string { return string(KindOllama) }
func (p *ollamaProvider) Tool() string { return "ollama" }

func (p *ollamaProvider) Pull(ctx context.Context, req ModelRequest) error {
	if err := ensureParent(req.Location); err != nil {
		return err
	}
	args := []string{"pull", req.Repo}
	extra, err := splitExtraArgs(req.ExtraArgs)
	if err != nil {
		return err
	}
	args = append(args, extra...)
	p.log.WithField("repo", req.Repo).Info("pulling model with ollama")
	return p.run(ctx, p.Tool(), args...)
}

// ramalamaProvider pulls models with the ramalama CLI.
type ramalamaProvider struct {
	execProvider
}

func (p *ramalamaProvider) Name() string { return string(KindRamalama) }
func (p *ramalamaProvider) Tool() string { return "ramalama" }

func (p *ramalamaProvider) Pull(ctx context.Context, req ModelRequest) error {
	if err := ensureParent(req.Location); err != nil {
		return err
	}
	args := []string{"pull", req.Repo}
	extra, err := splitExtraArgs(req.ExtraArgs)
	if err != nil {
		return err
	}
	args = append(args, extra...)
	p.log.WithField("repo", req.Repo).Info("pulling model with ramalama")
	return p.run(ctx, p.Tool(), args...)
}
