// Package download sequences selected items through provider adapters,
// updates completion state, and maintains the default-model link. Processing
// is strictly sequential: one transfer at a time, no timeouts imposed here
// (the wrapped tools manage their own), and one item's failure never aborts
// the rest of the run.
package download

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thecodenomad/neurobik/pkg/config"
	"github.com/thecodenomad/neurobik/pkg/confirm"
	"github.com/thecodenomad/neurobik/pkg/provider"
	"github.com/thecodenomad/neurobik/pkg/verify"
)

// Orchestrator owns one run's filesystem state and in-memory result list.
type Orchestrator struct {
	cfg    *config.Config
	store  confirm.Store
	log    *logrus.Entry
	models provider.ModelProvider
	direct provider.ModelProvider
	oci    provider.OCIProvider
}

// Options configures an Orchestrator. Providers may be nil when the config
// carries no items of the corresponding kind.
type Options struct {
	Log *logrus.Entry
	// Models handles provider-managed model pulls.
	Models provider.ModelProvider
	// Direct handles URL-style model references. Defaults to an HTTPProvider
	// with a resumable transport.
	Direct provider.ModelProvider
	// OCI handles image pulls and builds.
	OCI provider.OCIProvider
}

// New creates an Orchestrator for the given validated configuration.
func New(cfg *config.Config, opts Options) *Orchestrator {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	direct := opts.Direct
	if direct == nil {
		direct = provider.NewHTTPProvider(log.WithField("component", "http-provider"), nil)
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  confirm.Store{},
		log:    log,
		models: opts.Models,
		direct: direct,
		oci:    opts.OCI,
	}
}

// Candidates returns the items still eligible for action, in config order.
func (o *Orchestrator) Candidates() []Item {
	return SelectCandidates(o.cfg, o.store)
}

// RequiredTools returns the external binaries the given selection depends on.
// The caller checks them once, before any item is processed.
func (o *Orchestrator) RequiredTools(selection []Item) []string {
	var tools []string
	for _, item := range selection {
		switch item.Kind {
		case KindModel:
			for _, m := range o.cfg.Models {
				if m.ModelName == item.Name && !m.Direct() && o.models != nil {
					tools = append(tools, o.models.Tool())
				}
			}
		case KindOCI:
			if o.oci != nil {
				tools = append(tools, o.oci.Tool())
			}
		}
	}
	return tools
}

// Run processes the selected items sequentially in original config order
// (the selection surface imposes none) and returns the aggregated summary.
func (o *Orchestrator) Run(ctx context.Context, selection []Item) Summary {
	summary := Summary{RunID: uuid.NewString()}
	log := o.log.WithField("run", summary.RunID)

	selected := make(map[Item]bool, len(selection))
	for _, item := range selection {
		selected[item] = true
	}

	for _, m := range o.cfg.Models {
		item := Item{Kind: KindModel, Name: m.ModelName}
		if !selected[item] {
			continue
		}
		res := o.processModel(ctx, log, m)
		if res.Outcome == OutcomeSuccess {
			path, err := updateDefaultLink(o.cfg, o.store, log)
			if err != nil {
				// The download itself completed and its marker stands; only
				// the link maintenance failed. Operator intervention is the
				// recovery path, so surface it as this item's failure.
				res = failed(item, err)
			} else {
				summary.DefaultModelPath = path
			}
		}
		if res.Outcome == OutcomeFailed {
			log.WithField("item", item.String()).WithError(res.Err).Error("item failed")
		}
		summary.Results = append(summary.Results, res)
	}

	for _, oc := range o.cfg.OCI {
		item := Item{Kind: KindOCI, Name: oc.Image}
		if !selected[item] {
			continue
		}
		res := o.processOCI(ctx, log, oc)
		if res.Outcome == OutcomeFailed {
			log.WithField("item", item.String()).WithError(res.Err).Error("item failed")
		}
		summary.Results = append(summary.Results, res)
	}

	return summary
}

func (o *Orchestrator) processModel(ctx context.Context, log *logrus.Entry, m config.ModelItem) TransferResult {
	item := Item{Kind: KindModel, Name: m.ModelName}
	if o.store.Exists(m.ConfirmationFile) {
		log.WithField("model", m.ModelName).Info("already downloaded, skipping")
		return TransferResult{Item: item, Outcome: OutcomeSkipped}
	}

	p := o.models
	if m.Direct() {
		p = o.direct
	}
	if p == nil {
		return failed(item, fmt.Errorf("no model provider configured for %q", m.ModelName))
	}

	req := provider.ModelRequest{
		Repo:      m.RepoName,
		Artifact:  m.ModelName,
		Location:  m.Location,
		ExtraArgs: m.ExtraArgs,
	}
	if err := p.Pull(ctx, req); err != nil {
		return failed(item, fmt.Errorf("pulling model %q: %w", m.ModelName, err))
	}

	// A mismatch withholds the marker so the next run re-attempts the
	// transfer; the downloaded file stays on disk for diagnosis.
	if err := verify.File(m.Location, m.Checksum); err != nil {
		return failed(item, err)
	}

	if err := o.store.Create(m.ConfirmationFile); err != nil {
		return failed(item, err)
	}
	return TransferResult{Item: item, Outcome: OutcomeSuccess}
}

func (o *Orchestrator) processOCI(ctx context.Context, log *logrus.Entry, oc config.OciItem) TransferResult {
	item := Item{Kind: KindOCI, Name: oc.Image}
	if o.oci == nil {
		return failed(item, fmt.Errorf("no oci provider configured for %q", oc.Image))
	}
	req := provider.OCIRequest{
		Image:         oc.Image,
		Containerfile: oc.Containerfile,
		BuildArgs:     oc.BuildArgs,
		ExtraArgs:     oc.ExtraArgs,
	}
	if err := o.oci.Pull(ctx, req); err != nil {
		return failed(item, fmt.Errorf("materializing image %q: %w", oc.Image, err))
	}
	if err := o.store.Create(oc.ConfirmationFile); err != nil {
		return failed(item, err)
	}
	return TransferResult{Item: item, Outcome: OutcomeSuccess}
}
