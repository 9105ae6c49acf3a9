package download

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/thecodenomad/neurobik/pkg/config"
	"github.com/thecodenomad/neurobik/pkg/confirm"
)

// defaultLinkPrefix is the stable name downstream consumers reference; the
// extension follows the chosen model's file extension.
const defaultLinkPrefix = "default-model"

// resolveDefaultModel picks the model the default link should point at: the
// configured default when its marker exists, otherwise the first model in
// config order whose marker exists. The second return is false when no marked
// model exists yet.
func resolveDefaultModel(cfg *config.Config, store confirm.Store) (config.ModelItem, bool) {
	if cfg.DefaultModel != "" {
		for _, m := range cfg.Models {
			if m.ModelName == cfg.DefaultModel && store.Exists(m.ConfirmationFile) {
				return m, true
			}
		}
	}
	for _, m := range cfg.Models {
		if store.Exists(m.ConfirmationFile) {
			return m, true
		}
	}
	return config.ModelItem{}, false
}

// updateDefaultLink maintains the default-model symlink inside the models
// directory and the per-provider readiness marker next to it. It returns the
// absolute path the link resolves to.
//
// The link target is written relative to the link's directory so the layout
// survives mount or container path changes. Replacement of an existing link
// is remove-then-recreate; the tool is single-instance by design, so the
// non-atomic window is accepted.
func updateDefaultLink(cfg *config.Config, store confirm.Store, log *logrus.Entry) (string, error) {
	model, ok := resolveDefaultModel(cfg, store)
	if !ok {
		return "", nil
	}

	modelsDir := cfg.ModelsDir()
	ext := filepath.Ext(model.ModelName)
	if ext == "" {
		ext = filepath.Ext(model.Location)
	}
	linkPath := filepath.Join(modelsDir, defaultLinkPrefix+ext)
	target, err := filepath.Rel(modelsDir, model.Location)
	if err != nil {
		return "", fmt.Errorf("computing relative link target for %q: %w", model.Location, err)
	}

	// At most one default-model link may exist per models directory; sweep
	// links left behind by a default with a different extension.
	if stale, err := filepath.Glob(filepath.Join(modelsDir, defaultLinkPrefix+".*")); err == nil {
		for _, p := range stale {
			if p == linkPath {
				continue
			}
			if fi, err := os.Lstat(p); err == nil && fi.Mode()&os.ModeSymlink != 0 {
				os.Remove(p)
			}
		}
	}

	if fi, err := os.Lstat(linkPath); err == nil {
		if fi.Mode()&os.ModeSymlink == 0 {
			return "", &LinkConflictError{Path: linkPath}
		}
		if existing, err := os.Readlink(linkPath); err == nil && existing == target {
			return model.Location, ensureReadyMarker(cfg, store)
		}
		if err := os.Remove(linkPath); err != nil {
			return "", fmt.Errorf("removing existing link %q: %w", linkPath, err)
		}
	}
	if err := os.Symlink(target, linkPath); err != nil {
		return "", fmt.Errorf("creating link %q -> %q: %w", linkPath, target, err)
	}
	log.WithFields(logrus.Fields{"link": linkPath, "target": target}).Info("default model link updated")

	return model.Location, ensureReadyMarker(cfg, store)
}

// ensureReadyMarker creates the provider-scope readiness marker if absent.
func ensureReadyMarker(cfg *config.Config, store confirm.Store) error {
	marker := cfg.ProviderConfirmationFile()
	if marker == "" || store.Exists(marker) {
		return nil
	}
	return store.Create(marker)
}
