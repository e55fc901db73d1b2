package gen

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PriceOverride names one (model, provider) price.
type PriceOverride struct {
	Model    string  `yaml:"model" json:"model"`
	Provider string  `yaml:"provider" json:"provider"`
	Cost     float64 `yaml:"cost" json:"cost"`
}

// PriceOverrideFile is the on-disk price override format. Entries merge
// over the built-in tables; anything not listed keeps its default.
type PriceOverrideFile struct {
	Retail []PriceOverride `yaml:"retail"`
	Actual []PriceOverride `yaml:"actual"`
}

// LoadOverridesFile merges a YAML price file over the built-in tables.
func (p *Pricing) LoadOverridesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read price overrides: %w", err)
	}
	var file PriceOverrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse price overrides: %w", err)
	}
	p.ApplyOverrides(&file)
	return nil
}

// ApplyOverrides merges parsed overrides over the built-in tables.
func (p *Pricing) ApplyOverrides(file *PriceOverrideFile) {
	for _, o := range file.Retail {
		p.SetPrice(o.Model, o.Provider, o.Cost)
	}
	for _, o := range file.Actual {
		p.SetActualPrice(o.Model, o.Provider, o.Cost)
	}
}
