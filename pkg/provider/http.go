package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/thecodenomad/neurobik/pkg/internal/progress"
	"github.com/thecodenomad/neurobik/pkg/transport/resumable"
)

// HTTPProvider downloads a model artifact directly from a URL-style
// repository reference. Transfers go through a resumable transport so a cut
// connection continues instead of restarting.
type HTTPProvider struct {
	log    *logrus.Entry
	client *http.Client
}

// NewHTTPProvider returns an HTTPProvider. When client is nil, a default
// client with a resumable transport is used.
func NewHTTPProvider(log *logrus.Entry, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Transport: resumable.New(nil)}
	}
	return &HTTPProvider{log: log, client: client}
}

func (p *HTTPProvider) Name() string { return "http" }

// Tool returns "" since direct downloads need no external binary.
func (p *HTTPProvider) Tool() string { return "" }

// Pull streams the artifact to its target location. A partially written file
// is left in place on failure; the absent completion marker is what causes a
// retry on the next run.
func (p *HTTPProvider) Pull(ctx context.Context, req ModelRequest) error {
	if err := ensureParent(req.Location); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Repo, nil)
	if err != nil {
		return fmt.Errorf("building request for %q: %w", req.Repo, err)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("fetching %q: %w", req.Repo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %q: unexpected status %s", req.Repo, resp.Status)
	}

	f, err := os.Create(req.Location)
	if err != nil {
		return fmt.Errorf("creating destination file %q: %w", req.Location, err)
	}
	defer f.Close()

	log := p.log.WithField("artifact", req.Artifact)
	total := resp.ContentLength
	r := progress.NewReader(resp.Body, func(transferred int64) {
		if total > 0 {
			log.Infof("downloaded %s of %s", units.HumanSize(float64(transferred)), units.HumanSize(float64(total)))
		} else {
			log.Infof("downloaded %s", units.HumanSize(float64(transferred)))
		}
	})
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing %q: %w", req.Location, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", req.Location, err)
	}
	log.WithField("size", units.HumanSize(float64(r.Transferred()))).Info("download complete")
	return nil
}
