package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// podmanProvider pulls or builds images with the podman CLI. Output is not
// parsed for partial success; a non-zero exit is a failed transfer.
type podmanProvider struct {
	log *logrus.Entry
	run runFunc
}

func (p *podmanProvider) Name() string { return string(KindPodman) }
func (p *podmanProvider) Tool() string { return "podman" }

func (p *podmanProvider) Pull(ctx context.Context, req OCIRequest) error {
	if req.Containerfile != "" {
		return p.build(ctx, req)
	}
	args := []string{"pull", req.Image}
	extra, err := splitExtraArgs(req.ExtraArgs)
	if err != nil {
		return err
	}
	args = append(args, extra...)
	p.log.WithField("image", req.Image).Info("pulling image with podman")
	return p.run(ctx, p.Tool(), args...)
}

// build runs podman build with the Containerfile's directory as context and
// the build arguments in the order supplied.
func (p *podmanProvider) build(ctx context.Context, req OCIRequest) error {
	if _, err := os.Stat(req.Containerfile); err != nil {
		return fmt.Errorf("containerfile %q: %w", req.Containerfile, err)
	}
	args := []string{"build", "-t", req.Image}
	for _, a := range req.BuildArgs {
		args = append(args, "--build-arg", a)
	}
	extra, err := splitExtraArgs(req.ExtraArgs)
	if err != nil {
		return err
	}
	args = append(args, extra...)
	args = append(args, "-f", req.Containerfile, filepath.Dir(req.Containerfile))
	p.log.WithFields(logrus.Fields{"image": req.Image, "containerfile": req.Containerfile}).Info("building image with podman")
	return p.run(ctx, p.Tool(), args...)
}
