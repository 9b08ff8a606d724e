// Package config loads release tooling settings from a YAML file, an optional
// .env file and the process environment, in that order of increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/anvil-platform/releaseplan/internal/artifact"
	"github.com/anvil-platform/releaseplan/internal/registry"
	"github.com/anvil-platform/releaseplan/internal/workspace"
)

type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Registry  RegistryConfig  `yaml:"registry"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type WorkspaceConfig struct {
	Root  string `yaml:"root"`
	Scope string `yaml:"scope"`
	// MetadataFile replaces the cargo invocation with a saved snapshot.
	MetadataFile string `yaml:"metadataFile"`
	// MetadataRoot rebases a metadata file captured under another checkout
	// path onto this one. Empty keeps the recorded workspace root.
	MetadataRoot string `yaml:"metadataRoot"`
	Cargo        string `yaml:"cargo"`
}

type RegistryConfig struct {
	BaseURL           string        `yaml:"baseURL"`
	UserAgent         string        `yaml:"userAgent"`
	Timeout           time.Duration `yaml:"timeout"`
	Concurrency       int           `yaml:"concurrency"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	CacheSize         int           `yaml:"cacheSize"`
}

type ArtifactsConfig struct {
	Dir        string   `yaml:"dir"`
	ScratchDir string   `yaml:"scratchDir"`
	S3         S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"useSSL"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the Prometheus metrics at the end of a run.
	Textfile string `yaml:"textfile"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Workspace: WorkspaceConfig{
			Root:  ".",
			Cargo: "cargo",
		},
		Registry: RegistryConfig{
			BaseURL:           registry.DefaultBaseURL,
			UserAgent:         registry.DefaultUserAgent,
			Timeout:           registry.DefaultTimeout,
			Concurrency:       4,
			RequestsPerSecond: 1,
			Burst:             4,
			CacheSize:         1024,
		},
		Artifacts: ArtifactsConfig{
			Dir:        "target/package",
			ScratchDir: "target/releaseplan",
			S3: S3Config{
				Region: "us-east-1",
				UseSSL: true,
			},
		},
	}
}

// Load reads path (optional) and envFile (optional, ignored when missing),
// applies environment overrides and validates the result.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Workspace.Root = firstNonEmpty(env("RELEASEPLAN_WORKSPACE_ROOT"), cfg.Workspace.Root)
	cfg.Workspace.Scope = firstNonEmpty(env("RELEASEPLAN_SCOPE"), cfg.Workspace.Scope)
	cfg.Workspace.MetadataFile = firstNonEmpty(env("RELEASEPLAN_METADATA_FILE"), cfg.Workspace.MetadataFile)
	cfg.Workspace.MetadataRoot = firstNonEmpty(env("RELEASEPLAN_METADATA_ROOT"), cfg.Workspace.MetadataRoot)
	cfg.Workspace.Cargo = firstNonEmpty(env("CARGO"), cfg.Workspace.Cargo)

	cfg.Registry.BaseURL = firstNonEmpty(env("RELEASEPLAN_REGISTRY_URL"), cfg.Registry.BaseURL)
	if raw := env("RELEASEPLAN_REGISTRY_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("RELEASEPLAN_REGISTRY_TIMEOUT: %w", err)
		}
		cfg.Registry.Timeout = d
	}

	cfg.Artifacts.Dir = firstNonEmpty(env("RELEASEPLAN_ARTIFACTS_DIR"), cfg.Artifacts.Dir)
	cfg.Artifacts.ScratchDir = firstNonEmpty(env("RELEASEPLAN_SCRATCH_DIR"), cfg.Artifacts.ScratchDir)
	cfg.Metrics.Textfile = firstNonEmpty(env("RELEASEPLAN_METRICS_TEXTFILE"), cfg.Metrics.Textfile)

	s3 := &cfg.Artifacts.S3
	s3.Endpoint = firstNonEmpty(env("ARTIFACT_S3_ENDPOINT"), s3.Endpoint)
	s3.Bucket = firstNonEmpty(env("ARTIFACT_S3_BUCKET"), s3.Bucket)
	s3.Prefix = firstNonEmpty(env("ARTIFACT_S3_PREFIX"), s3.Prefix)
	s3.Region = firstNonEmpty(env("ARTIFACT_S3_REGION"), s3.Region)
	s3.AccessKey = firstNonEmpty(env("ARTIFACT_S3_ACCESS_KEY"), s3.AccessKey)
	s3.SecretKey = firstNonEmpty(env("ARTIFACT_S3_SECRET_KEY"), s3.SecretKey)
	if raw := env("ARTIFACT_S3_USE_SSL"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("ARTIFACT_S3_USE_SSL: %w", err)
		}
		s3.UseSSL = v
	}
	if s3.Endpoint != "" {
		s3.Enabled = true
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Workspace.Root) == "" {
		return errors.New("workspace.root must not be empty")
	}
	if c.Registry.Timeout <= 0 {
		return fmt.Errorf("registry.timeout must be positive, got %s", c.Registry.Timeout)
	}
	if c.Registry.Concurrency <= 0 {
		return fmt.Errorf("registry.concurrency must be positive, got %d", c.Registry.Concurrency)
	}
	if c.Artifacts.S3.Enabled && (c.Artifacts.S3.Endpoint == "" || c.Artifacts.S3.Bucket == "") {
		return errors.New("artifacts.s3 requires endpoint and bucket when enabled")
	}
	return nil
}

// Path resolves p against the workspace root unless it is absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Workspace.Root, p)
}

func (c *Config) RegistryOptions() registry.Options {
	return registry.Options{
		BaseURL:           c.Registry.BaseURL,
		UserAgent:         c.Registry.UserAgent,
		Timeout:           c.Registry.Timeout,
		RequestsPerSecond: c.Registry.RequestsPerSecond,
		Burst:             c.Registry.Burst,
		CacheSize:         c.Registry.CacheSize,
	}
}

// MetadataSource returns the snapshot file source when one is configured and
// the cargo source otherwise.
func (c *Config) MetadataSource() workspace.MetadataSource {
	if c.Workspace.MetadataFile != "" {
		return &workspace.FileMetadataSource{
			Path: c.Path(c.Workspace.MetadataFile),
			Root: c.Workspace.MetadataRoot,
		}
	}
	return &workspace.CargoMetadataSource{Root: c.Workspace.Root, Cargo: c.Workspace.Cargo}
}

// ArtifactSource returns the S3 source when enabled and the local directory
// source otherwise.
func (c *Config) ArtifactSource() (artifact.Source, error) {
	if !c.Artifacts.S3.Enabled {
		return &artifact.LocalSource{Dir: c.Path(c.Artifacts.Dir)}, nil
	}
	s3 := c.Artifacts.S3
	src, err := artifact.NewS3Source(artifact.S3Config{
		Endpoint:   s3.Endpoint,
		Region:     s3.Region,
		AccessKey:  s3.AccessKey,
		SecretKey:  s3.SecretKey,
		Bucket:     s3.Bucket,
		Prefix:     s3.Prefix,
		UseSSL:     s3.UseSSL,
		StagingDir: c.Path(c.Artifacts.Dir),
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
