package wavespeed

import "time"

// Config holds WaveSpeed AI settings.
type Config struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns the production endpoint.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: "https://api.wavespeed.ai/api/v3",
		Timeout: 120 * time.Second,
	}
}
