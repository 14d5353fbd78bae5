package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up in the working directory.
const DefaultPath = "cpp2puml.yaml"

type Config struct {
	Output struct {
		Path  string `yaml:"path"`
		Force bool   `yaml:"force"`
	} `yaml:"output"`
	Render struct {
		Title      string `yaml:"title"`
		Icons      bool   `yaml:"icons"`
		CStyle     bool   `yaml:"cstyle"`
		NoPackages bool   `yaml:"no_packages"`
	} `yaml:"render"`
	Parser struct {
		Engine string `yaml:"engine"`
	} `yaml:"parser"`
	Scan struct {
		Workers  int      `yaml:"workers"`
		Excludes []string `yaml:"excludes"`
	} `yaml:"scan"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Watch struct {
		DebounceMS int `yaml:"debounce_ms"`
	} `yaml:"watch"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Output.Path = "out.puml"
	cfg.Parser.Engine = "native"
	cfg.Storage.Path = "cpp2puml.db"
	cfg.Watch.DebounceMS = 250
	return &cfg
}

// LoadConfig reads path on top of the defaults. A missing file is not an
// error; environment overrides apply either way.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if out := os.Getenv("CPP2PUML_OUT"); out != "" {
		cfg.Output.Path = out
	}
	if engine := os.Getenv("CPP2PUML_ENGINE"); engine != "" {
		cfg.Parser.Engine = strings.ToLower(engine)
	}
	if db := os.Getenv("CPP2PUML_DB"); db != "" {
		cfg.Storage.Path = db
	}

	return cfg, nil
}
