package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDriver   = "ath10k"
	DefaultManifest = "WHENCE"
	DefaultRef      = "master"
	DefaultInfoTool = "ath10k-fwencoder"
)

// Config represents the complete fwsync configuration
type Config struct {
	Repo     RepoConfig     `yaml:"repo"`
	Paths    PathsConfig    `yaml:"paths"`
	Install  InstallConfig  `yaml:"install"`
	External ExternalConfig `yaml:"external"`
}

// RepoConfig configures an optional remote firmware repository. When URL is
// empty the local paths.source_dir is scanned instead.
type RepoConfig struct {
	URL string `yaml:"url"`
	Ref string `yaml:"ref"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	SourceDir string `yaml:"source_dir"`
	DestDir   string `yaml:"dest_dir"`
	StateDir  string `yaml:"state_dir"`
}

// InstallConfig configures how firmware is installed into the destination tree
type InstallConfig struct {
	Driver    string   `yaml:"driver"`
	Subdir    string   `yaml:"subdir"`
	Manifest  string   `yaml:"manifest"`
	Commit    bool     `yaml:"commit"`
	Blacklist []string `yaml:"blacklist"`
}

// ExternalConfig configures external helper tools
type ExternalConfig struct {
	InfoTool string `yaml:"info_tool"`
}

// Load reads, prepares and validates the configuration file
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read parses the configuration file without applying defaults or
// validating, so callers can merge in overrides first.
func Read(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Prepare expands environment variables, applies defaults, makes paths
// absolute and validates the result.
func (c *Config) Prepare() error {
	c.expandEnv()
	c.applyDefaults()

	if err := c.absPaths(); err != nil {
		return err
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// expandEnv expands environment variables in all path-like fields
func (c *Config) expandEnv() {
	c.Repo.URL = os.ExpandEnv(c.Repo.URL)
	c.Repo.Ref = os.ExpandEnv(c.Repo.Ref)
	c.Paths.SourceDir = os.ExpandEnv(c.Paths.SourceDir)
	c.Paths.DestDir = os.ExpandEnv(c.Paths.DestDir)
	c.Paths.StateDir = os.ExpandEnv(c.Paths.StateDir)
	c.Install.Subdir = os.ExpandEnv(c.Install.Subdir)
	c.Install.Manifest = os.ExpandEnv(c.Install.Manifest)
	c.External.InfoTool = os.ExpandEnv(c.External.InfoTool)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Repo.URL != "" && c.Repo.Ref == "" {
		c.Repo.Ref = DefaultRef
	}
	if c.Install.Driver == "" {
		c.Install.Driver = DefaultDriver
	}
	if c.Install.Manifest == "" {
		c.Install.Manifest = DefaultManifest
	}
	if c.External.InfoTool == "" {
		c.External.InfoTool = DefaultInfoTool
	}
}

func (c *Config) absPaths() error {
	for _, p := range []*string{&c.Paths.SourceDir, &c.Paths.DestDir, &c.Paths.StateDir} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// Validate checks the configuration for errors. A missing firmware source is
// not an error here: commands that scan a repository check SourceDir.
func (c *Config) Validate() error {
	if c.Repo.URL != "" {
		if c.Repo.Ref == "" {
			return fmt.Errorf("repo.ref is required when repo.url is set")
		}
		if c.Paths.StateDir == "" {
			return fmt.Errorf("paths.state_dir is required when repo.url is set")
		}
	}

	if c.Install.Driver == "" {
		return fmt.Errorf("install.driver is required")
	}
	if c.Install.Manifest == "" {
		return fmt.Errorf("install.manifest is required")
	}
	if filepath.IsAbs(c.Install.Subdir) {
		return fmt.Errorf("install.subdir must be a relative path: %s", c.Install.Subdir)
	}
	if filepath.IsAbs(c.Install.Manifest) {
		return fmt.Errorf("install.manifest must be relative to paths.dest_dir: %s", c.Install.Manifest)
	}

	for _, pattern := range c.Install.Blacklist {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid install.blacklist pattern: %q", pattern)
		}
	}

	return nil
}

// RepoDir returns the path where a remote repository is checked out
func (c *Config) RepoDir() string {
	return filepath.Join(c.Paths.StateDir, "repo")
}

// SourceDir returns the root of the firmware repository to scan, or an empty
// string when no source is configured.
func (c *Config) SourceDir() string {
	if c.Repo.URL != "" {
		return c.RepoDir()
	}
	return c.Paths.SourceDir
}

// InstallDir returns the directory below which hardware directories are installed
func (c *Config) InstallDir() string {
	return filepath.Join(c.Paths.DestDir, c.Install.Subdir)
}

// ManifestPath returns the absolute path of the destination manifest
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Paths.DestDir, c.Install.Manifest)
}
