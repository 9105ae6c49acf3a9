// Package config defines the declarative download configuration: which model
// artifacts to fetch, which OCI images to pull or build, and where completion
// state lives on disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"gopkg.in/yaml.v3"
)

// ProviderMarkerName is the per-provider completion marker created in a models
// directory once at least one model in it has been fully downloaded.
const ProviderMarkerName = ".neurobik-ready"

// ModelItem describes a single model artifact to download.
type ModelItem struct {
	// RepoName is the provider-side repository reference, or an http(s) URL
	// for direct downloads.
	RepoName string `yaml:"repo_name"`
	// ModelName is the artifact file name within the repository.
	ModelName string `yaml:"model_name"`
	// Location is the absolute path the artifact is stored at.
	Location string `yaml:"location"`
	// ConfirmationFile is the absolute path of the per-item completion marker.
	ConfirmationFile string `yaml:"confirmation_file"`
	// Checksum is an optional expected digest ("sha256:..." or bare hex).
	Checksum string `yaml:"checksum,omitempty"`
	// ExtraArgs are additional arguments appended to the provider tool
	// invocation, split with shell word rules.
	ExtraArgs string `yaml:"extra_args,omitempty"`
}

// Direct reports whether the item is fetched over plain HTTP instead of a
// provider-managed pull.
func (m ModelItem) Direct() bool {
	return strings.HasPrefix(m.RepoName, "http://") || strings.HasPrefix(m.RepoName, "https://")
}

// OciItem describes a single OCI image to pull or build.
type OciItem struct {
	Image            string `yaml:"image"`
	ConfirmationFile string `yaml:"confirmation_file"`
	// Containerfile, when set, switches the item from a registry pull to a
	// local build. The build context is the Containerfile's directory.
	Containerfile string   `yaml:"containerfile,omitempty"`
	BuildArgs     []string `yaml:"build_args,omitempty"`
	ExtraArgs     string   `yaml:"extra_args,omitempty"`
}

// Config is the root of the declarative download configuration.
type Config struct {
	ModelProvider string `yaml:"model_provider,omitempty"`
	OCIProvider   string `yaml:"oci_provider,omitempty"`
	// DefaultModel optionally names the model (by model_name) the
	// default-model symlink should prefer. When empty, the first configured
	// model wins.
	DefaultModel string      `yaml:"default_gguf,omitempty"`
	Models       []ModelItem `yaml:"models,omitempty"`
	OCI          []OciItem   `yaml:"oci,omitempty"`
}

var modelProviders = map[string]bool{
	"ollama":    true,
	"llama.cpp": true,
	"ramalama":  true,
}

// Load reads, expands, and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	if cfg.OCIProvider == "" {
		cfg.OCIProvider = "podman"
	}
	cfg.expandEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

// expandEnv expands environment variable references in all filesystem paths.
func (c *Config) expandEnv() {
	for i := range c.Models {
		c.Models[i].Location = os.ExpandEnv(c.Models[i].Location)
		c.Models[i].ConfirmationFile = os.ExpandEnv(c.Models[i].ConfirmationFile)
	}
	for i := range c.OCI {
		c.OCI[i].ConfirmationFile = os.ExpandEnv(c.OCI[i].ConfirmationFile)
		c.OCI[i].Containerfile = os.ExpandEnv(c.OCI[i].Containerfile)
	}
}

// Validate checks provider names, path absoluteness, image references, and
// the default model designation.
func (c *Config) Validate() error {
	if len(c.Models) > 0 {
		if c.ModelProvider != "" && !modelProviders[c.ModelProvider] {
			return fmt.Errorf("unsupported model_provider: %q", c.ModelProvider)
		}
	}
	if len(c.OCI) > 0 && c.OCIProvider != "podman" {
		return fmt.Errorf("unsupported oci_provider: %q (only podman is supported)", c.OCIProvider)
	}
	for _, m := range c.Models {
		if m.RepoName == "" || m.ModelName == "" {
			return fmt.Errorf("model %q: repo_name and model_name are required", m.ModelName)
		}
		if !filepath.IsAbs(m.Location) {
			return fmt.Errorf("model %q: location %q is not absolute after expansion", m.ModelName, m.Location)
		}
		if !filepath.IsAbs(m.ConfirmationFile) {
			return fmt.Errorf("model %q: confirmation_file %q is not absolute after expansion", m.ModelName, m.ConfirmationFile)
		}
	}
	for _, o := range c.OCI {
		if o.Image == "" {
			return fmt.Errorf("oci item: image is required")
		}
		if _, err := name.ParseReference(o.Image); err != nil {
			return fmt.Errorf("oci item %q: invalid image reference: %w", o.Image, err)
		}
		if !filepath.IsAbs(o.ConfirmationFile) {
			return fmt.Errorf("oci item %q: confirmation_file %q is not absolute after expansion", o.Image, o.ConfirmationFile)
		}
	}
	if c.DefaultModel != "" && len(c.Models) > 0 {
		found := false
		for _, m := range c.Models {
			if m.ModelName == c.DefaultModel {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("default model %q not found in configured models", c.DefaultModel)
		}
	}
	return nil
}

// ModelsDir returns the directory holding model completion markers, derived
// from the first configured model. Empty when no models are configured.
func (c *Config) ModelsDir() string {
	if len(c.Models) == 0 {
		return ""
	}
	return filepath.Dir(c.Models[0].ConfirmationFile)
}

// ProviderConfirmationFile returns the path of the per-provider readiness
// marker, or "" when no models are configured.
func (c *Config) ProviderConfirmationFile() string {
	dir := c.ModelsDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, ProviderMarkerName)
}
