package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/thecodenomad/neurobik/pkg/config"
	"github.com/thecodenomad/neurobik/pkg/confirm"
	"github.com/thecodenomad/neurobik/pkg/provider"
	"github.com/thecodenomad/neurobik/pkg/verify"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakeModelProvider writes deterministic artifact content instead of invoking
// an external tool.
type fakeModelProvider struct {
	pulls   []provider.ModelRequest
	fail    map[string]error  // artifact name -> error
	content map[string]string // artifact name -> bytes to write
}

func (f *fakeModelProvider) Name() string { return "fake" }
func (f *fakeModelProvider) Tool() string { return "faketool" }

func (f *fakeModelProvider) Pull(_ context.Context, req provider.ModelRequest) error {
	f.pulls = append(f.pulls, req)
	if err := f.fail[req.Artifact]; err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(req.Location), 0o755); err != nil {
		return err
	}
	content, ok := f.content[req.Artifact]
	if !ok {
		content = "weights of " + req.Artifact
	}
	return os.WriteFile(req.Location, []byte(content), 0o644)
}

type fakeOCIProvider struct {
	pulls []provider.OCIRequest
	fail  map[string]error
}

func (f *fakeOCIProvider) Name() string { return "podman" }
func (f *fakeOCIProvider) Tool() string { return "podman" }

func (f *fakeOCIProvider) Pull(_ context.Context, req provider.OCIRequest) error {
	f.pulls = append(f.pulls, req)
	return f.fail[req.Image]
}

// testConfig builds a two-model, one-image configuration rooted in dir.
func testConfig(dir string) *config.Config {
	modelsDir := filepath.Join(dir, "models")
	return &config.Config{
		ModelProvider: "llama.cpp",
		OCIProvider:   "podman",
		Models: []config.ModelItem{
			{
				RepoName:         "example/repo-a",
				ModelName:        "a.gguf",
				Location:         filepath.Join(modelsDir, "a.gguf"),
				ConfirmationFile: filepath.Join(modelsDir, "a.gguf.confirmed"),
			},
			{
				RepoName:         "example/repo-b",
				ModelName:        "b.gguf",
				Location:         filepath.Join(modelsDir, "b.gguf"),
				ConfirmationFile: filepath.Join(modelsDir, "b.gguf.confirmed"),
			},
		},
		OCI: []config.OciItem{
			{
				Image:            "localhost/comfyui:latest",
				ConfirmationFile: filepath.Join(dir, "oci", "comfyui.confirmed"),
			},
		},
	}
}

func newTestOrchestrator(cfg *config.Config, models *fakeModelProvider, oci *fakeOCIProvider) *Orchestrator {
	return New(cfg, Options{Log: testLog(), Models: models, OCI: oci})
}

func sha256hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func requireLink(t *testing.T, link, wantTarget string) {
	t.Helper()
	fi, err := os.Lstat(link)
	require.NoError(t, err, "default link should exist")
	require.NotZero(t, fi.Mode()&os.ModeSymlink, "default link should be a symlink")
	target, err := os.Readlink(link)
	require.NoError(t, err)
	require.Equal(t, wantTarget, target, "link target should be relative")
}

func TestRunFullScenario(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	models := &fakeModelProvider{}
	oci := &fakeOCIProvider{}
	orch := newTestOrchestrator(cfg, models, oci)
	store := confirm.Store{}

	summary := orch.Run(context.Background(), orch.Candidates())

	require.Len(t, summary.Results, 3)
	for _, res := range summary.Results {
		require.Equal(t, OutcomeSuccess, res.Outcome, "item %s", res.Item)
	}

	// Per-item markers for both models and the image.
	require.True(t, store.Exists(cfg.Models[0].ConfirmationFile))
	require.True(t, store.Exists(cfg.Models[1].ConfirmationFile))
	require.True(t, store.Exists(cfg.OCI[0].ConfirmationFile))

	// Provider-scope readiness marker.
	require.True(t, store.Exists(cfg.ProviderConfirmationFile()))

	// Default link points at the first configured model, relative-encoded.
	requireLink(t, filepath.Join(cfg.ModelsDir(), "default-model.gguf"), "a.gguf")
	require.Equal(t, cfg.Models[0].Location, summary.DefaultModelPath)

	t.Run("second run is idempotent", func(t *testing.T) {
		candidates := orch.Candidates()
		require.Equal(t, []Item{{Kind: KindOCI, Name: "localhost/comfyui:latest"}}, candidates,
			"only the image should be re-offered")

		// Explicitly re-selecting a completed model skips it.
		summary := orch.Run(context.Background(), []Item{{Kind: KindModel, Name: "a.gguf"}})
		require.Len(t, summary.Results, 1)
		require.Equal(t, OutcomeSkipped, summary.Results[0].Outcome)
		require.Len(t, models.pulls, 2, "no new transfer should happen")
	})
}

func TestRunContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	models := &fakeModelProvider{fail: map[string]error{"a.gguf": errors.New("network cut")}}
	oci := &fakeOCIProvider{}
	orch := newTestOrchestrator(cfg, models, oci)
	store := confirm.Store{}

	summary := orch.Run(context.Background(), orch.Candidates())

	require.Len(t, summary.Results, 3)
	require.Equal(t, OutcomeFailed, summary.Results[0].Outcome)
	require.Equal(t, OutcomeSuccess, summary.Results[1].Outcome)
	require.Equal(t, OutcomeSuccess, summary.Results[2].Outcome)
	require.True(t, summary.Failed())

	require.False(t, store.Exists(cfg.Models[0].ConfirmationFile))
	require.True(t, store.Exists(cfg.Models[1].ConfirmationFile))

	// The link points at the first model in config order whose marker
	// exists, which is B while A is broken.
	requireLink(t, filepath.Join(cfg.ModelsDir(), "default-model.gguf"), "b.gguf")
	require.Equal(t, cfg.Models[1].Location, summary.DefaultModelPath)

	t.Run("rerun after fixing the first model", func(t *testing.T) {
		candidates := orch.Candidates()
		require.Contains(t, candidates, Item{Kind: KindModel, Name: "a.gguf"})
		require.NotContains(t, candidates, Item{Kind: KindModel, Name: "b.gguf"})

		models.fail = nil
		summary := orch.Run(context.Background(), []Item{{Kind: KindModel, Name: "a.gguf"}})
		require.False(t, summary.Failed())

		require.True(t, store.Exists(cfg.Models[0].ConfirmationFile))
		requireLink(t, filepath.Join(cfg.ModelsDir(), "default-model.gguf"), "a.gguf")
		require.Equal(t, cfg.Models[0].Location, summary.DefaultModelPath)
	})
}

func TestChecksumMismatchWithholdsMarker(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Models[0].Checksum = sha256hex("different bytes")
	models := &fakeModelProvider{}
	orch := newTestOrchestrator(cfg, models, &fakeOCIProvider{})
	store := confirm.Store{}

	summary := orch.Run(context.Background(), []Item{{Kind: KindModel, Name: "a.gguf"}})

	require.Len(t, summary.Results, 1)
	require.Equal(t, OutcomeFailed, summary.Results[0].Outcome)
	require.ErrorIs(t, summary.Results[0].Err, verify.ErrChecksumMismatch)

	// No marker, but the file stays on disk for diagnosis.
	require.False(t, store.Exists(cfg.Models[0].ConfirmationFile))
	_, err := os.Stat(cfg.Models[0].Location)
	require.NoError(t, err)

	// The failed item is re-offered next run.
	require.Contains(t, orch.Candidates(), Item{Kind: KindModel, Name: "a.gguf"})
}

func TestChecksumMatch(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Models[0].Checksum = sha256hex("weights of a.gguf")
	orch := newTestOrchestrator(cfg, &fakeModelProvider{}, &fakeOCIProvider{})
	store := confirm.Store{}

	summary := orch.Run(context.Background(), []Item{{Kind: KindModel, Name: "a.gguf"}})
	require.Equal(t, OutcomeSuccess, summary.Results[0].Outcome)
	require.True(t, store.Exists(cfg.Models[0].ConfirmationFile))
}

func TestDefaultLinkConflict(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	require.NoError(t, os.MkdirAll(cfg.ModelsDir(), 0o755))
	conflict := filepath.Join(cfg.ModelsDir(), "default-model.gguf")
	require.NoError(t, os.WriteFile(conflict, []byte("not a link"), 0o644))

	orch := newTestOrchestrator(cfg, &fakeModelProvider{}, &fakeOCIProvider{})
	store := confirm.Store{}

	summary := orch.Run(context.Background(), []Item{{Kind: KindModel, Name: "a.gguf"}})

	require.Equal(t, OutcomeFailed, summary.Results[0].Outcome)
	require.ErrorIs(t, summary.Results[0].Err, ErrDefaultLinkConflict)

	// The regular file is never overwritten.
	data, err := os.ReadFile(conflict)
	require.NoError(t, err)
	require.Equal(t, "not a link", string(data))

	// The download itself completed; only operator intervention can resolve
	// the conflict.
	require.True(t, store.Exists(cfg.Models[0].ConfirmationFile))
}

func TestDefaultLinkReplacement(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	require.NoError(t, os.MkdirAll(cfg.ModelsDir(), 0o755))
	link := filepath.Join(cfg.ModelsDir(), "default-model.gguf")
	require.NoError(t, os.Symlink("elsewhere.gguf", link))

	orch := newTestOrchestrator(cfg, &fakeModelProvider{}, &fakeOCIProvider{})

	summary := orch.Run(context.Background(), []Item{{Kind: KindModel, Name: "a.gguf"}})
	require.Equal(t, OutcomeSuccess, summary.Results[0].Outcome)
	requireLink(t, link, "a.gguf")
}

func TestDefaultModelOverride(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.DefaultModel = "b.gguf"
	orch := newTestOrchestrator(cfg, &fakeModelProvider{}, &fakeOCIProvider{})

	summary := orch.Run(context.Background(), []Item{
		{Kind: KindModel, Name: "a.gguf"},
		{Kind: KindModel, Name: "b.gguf"},
	})
	require.False(t, summary.Failed())
	requireLink(t, filepath.Join(cfg.ModelsDir(), "default-model.gguf"), "b.gguf")
	require.Equal(t, cfg.Models[1].Location, summary.DefaultModelPath)
}

func TestUpdateDefaultLinkWithoutMarkedModels(t *testing.T) {
	cfg := testConfig(t.TempDir())
	path, err := updateDefaultLink(cfg, confirm.Store{}, testLog())
	require.NoError(t, err)
	require.Empty(t, path)
	_, lerr := os.Lstat(filepath.Join(cfg.ModelsDir(), "default-model.gguf"))
	require.True(t, errors.Is(lerr, os.ErrNotExist), "no link may exist before any model is marked")
}

func TestOrderReimposedOnSelection(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	orch := newTestOrchestrator(cfg, &fakeModelProvider{}, &fakeOCIProvider{})

	// Selection arrives reversed; processing must follow config order.
	summary := orch.Run(context.Background(), []Item{
		{Kind: KindOCI, Name: "localhost/comfyui:latest"},
		{Kind: KindModel, Name: "b.gguf"},
		{Kind: KindModel, Name: "a.gguf"},
	})
	require.Len(t, summary.Results, 3)
	require.Equal(t, Item{Kind: KindModel, Name: "a.gguf"}, summary.Results[0].Item)
	require.Equal(t, Item{Kind: KindModel, Name: "b.gguf"}, summary.Results[1].Item)
	require.Equal(t, Item{Kind: KindOCI, Name: "localhost/comfyui:latest"}, summary.Results[2].Item)
}

func TestRequiredTools(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Models[0].RepoName = "https://example.com/a.gguf" // direct download, no tool
	orch := newTestOrchestrator(cfg, &fakeModelProvider{}, &fakeOCIProvider{})

	tools := orch.RequiredTools([]Item{
		{Kind: KindModel, Name: "a.gguf"},
		{Kind: KindModel, Name: "b.gguf"},
		{Kind: KindOCI, Name: "localhost/comfyui:latest"},
	})
	require.Equal(t, []string{"faketool", "podman"}, tools)

	tools = orch.RequiredTools([]Item{{Kind: KindModel, Name: "a.gguf"}})
	require.Empty(t, tools)
}

func TestOCIFailureRecorded(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	oci := &fakeOCIProvider{fail: map[string]error{"localhost/comfyui:latest": errors.New("pull denied")}}
	orch := newTestOrchestrator(cfg, &fakeModelProvider{}, oci)
	store := confirm.Store{}

	summary := orch.Run(context.Background(), []Item{{Kind: KindOCI, Name: "localhost/comfyui:latest"}})
	require.Equal(t, OutcomeFailed, summary.Results[0].Outcome)
	require.False(t, store.Exists(cfg.OCI[0].ConfirmationFile))
	require.Empty(t, summary.DefaultModelPath, "no model succeeded")
}
