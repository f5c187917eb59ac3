package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/sokinpui/sandpatch/internal/fs"
)

const (
	// DefaultFile is looked up in the working directory when no config
	// path is given.
	DefaultFile = ".sandpatch.yaml"

	DefaultListen = "127.0.0.1:7878"
)

// Config is the file-backed configuration, after environment overrides.
type Config struct {
	Root         string `yaml:"root"`
	Listen       string `yaml:"listen"`
	APIKey       string `yaml:"api_key"`
	TrackOffsets bool   `yaml:"track_offsets"`
	Nvim         bool   `yaml:"nvim"`
	StateDir     string `yaml:"state_dir"`
}

// Load reads the YAML file at path and applies SANDPATCH_* environment
// overrides. A missing file is not an error. A relative root in the file is
// taken relative to the file's directory.
func Load(path string) (Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	return cfg, nil
}

func readFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("SANDPATCH_ROOT")); v != "" {
		cfg.Root = v
	}
	if v := strings.TrimSpace(os.Getenv("SANDPATCH_LISTEN")); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("SANDPATCH_API_KEY")); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("SANDPATCH_TRACK_OFFSETS")); v != "" {
		cfg.TrackOffsets = parseEnvBool(v)
	}
}

func parseEnvBool(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true") || v == "1"
}

// RootFunc returns a root provider that consults the environment and the
// config file on every call, falling back to fallback. Editing the file
// re-targets a running engine on its next request.
func RootFunc(path, fallback string) fs.RootFunc {
	return func() (string, error) {
		cfg, err := Load(path)
		if err != nil {
			return "", err
		}
		if cfg.Root != "" {
			return cfg.Root, nil
		}
		if fallback == "" {
			return "", errors.New("no sandbox root configured")
		}
		return fallback, nil
	}
}

// DefaultStateDir returns the per-root journal directory under the user
// cache directory.
func DefaultStateDir(root string) (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("could not locate cache directory: %w", err)
	}
	return filepath.Join(cache, "sandpatch", fs.HashBytes([]byte(root))[:16]), nil
}
