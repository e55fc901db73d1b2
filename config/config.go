package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every environment-driven setting.
type Config struct {
	// KieAPIKey authenticates against api.kie.ai.
	KieAPIKey string `envconfig:"KIE_API_KEY"`

	// GoogleAPIKey authenticates against the Gemini generative language API.
	GoogleAPIKey string `envconfig:"GOOGLE_API_KEY"`

	// WaveSpeedAPIKey authenticates against api.wavespeed.ai.
	WaveSpeedAPIKey string `envconfig:"WAVESPEED_API_KEY"`

	// HiggsfieldKeyID and HiggsfieldKeySecret form the "Key id:secret"
	// authorization pair for Higgsfield AI.
	HiggsfieldKeyID     string `envconfig:"HIGGSFIELD_API_KEY_ID"`
	HiggsfieldKeySecret string `envconfig:"HIGGSFIELD_API_KEY_SECRET"`

	// OutputDir is where locally hosted artifacts are written.
	OutputDir string `envconfig:"MEDIAFLOW_OUTPUT_DIR" default:"outputs"`

	// PriceOverridePath points at an optional YAML price override file.
	PriceOverridePath string `envconfig:"MEDIAFLOW_PRICE_OVERRIDES"`

	// MetricsNamespace prefixes all Prometheus metric names.
	MetricsNamespace string `envconfig:"MEDIAFLOW_METRICS_NAMESPACE" default:"mediaflow"`
}

// Load reads the nearest .env file (if any) and then the environment.
// Real environment variables win over .env entries.
func Load() (*Config, error) {
	if path := findDotenv(); path != "" {
		// Load does not override variables already set in the environment.
		_ = godotenv.Load(path)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &cfg, nil
}

// findDotenv walks from the working directory upward looking for a .env
// file, so commands run from a subdirectory still pick up project
// credentials.
func findDotenv() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// CheckCredentials reports the names of credentials that are missing for
// the providers the caller intends to use. An empty slice means every
// configured provider is usable. At least one image-capable vendor key
// must be present.
func (c *Config) CheckCredentials() []string {
	var missing []string
	if c.KieAPIKey == "" && c.GoogleAPIKey == "" {
		missing = append(missing, "KIE_API_KEY or GOOGLE_API_KEY")
	}
	if (c.HiggsfieldKeyID == "") != (c.HiggsfieldKeySecret == "") {
		missing = append(missing, "HIGGSFIELD_API_KEY_ID and HIGGSFIELD_API_KEY_SECRET (both required together)")
	}
	return missing
}

// HasKie reports whether Kie.ai credentials are configured.
func (c *Config) HasKie() bool { return c.KieAPIKey != "" }

// HasGoogle reports whether Gemini credentials are configured.
func (c *Config) HasGoogle() bool { return c.GoogleAPIKey != "" }

// HasWaveSpeed reports whether WaveSpeed credentials are configured.
func (c *Config) HasWaveSpeed() bool { return c.WaveSpeedAPIKey != "" }

// HasHiggsfield reports whether the Higgsfield key pair is configured.
func (c *Config) HasHiggsfield() bool {
	return c.HiggsfieldKeyID != "" && c.HiggsfieldKeySecret != ""
}
