package kie

import "time"

// Config holds Kie AI settings.
type Config struct {
	APIKey    string        `json:"api_key" yaml:"api_key"`
	CreateURL string        `json:"create_url" yaml:"create_url"`
	StatusURL string        `json:"status_url" yaml:"status_url"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns the production endpoints.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:    apiKey,
		CreateURL: "https://api.kie.ai/api/v1/jobs/createTask",
		StatusURL: "https://api.kie.ai/api/v1/jobs/recordInfo",
		Timeout:   60 * time.Second,
	}
}
