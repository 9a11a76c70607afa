package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fortuna/internal/engine"
)

//go:embed universe.yaml
var defaultUniverseYAML []byte

type universeFile struct {
	Assets []assetSpec `yaml:"assets"`
}

type assetSpec struct {
	Symbol     string  `yaml:"symbol"`
	Name       string  `yaml:"name"`
	Category   string  `yaml:"category"`
	Price      float64 `yaml:"price"`
	Floor      float64 `yaml:"floor"`
	Volatility struct {
		Kind  string  `yaml:"kind"`
		Param float64 `yaml:"param"`
	} `yaml:"volatility"`
	Dividend struct {
		PerShare     float64 `yaml:"per_share"`
		IntervalDays int     `yaml:"interval_days"`
		FirstDay     int     `yaml:"first_day"`
		DRIP         bool    `yaml:"drip"`
	} `yaml:"dividend"`
	Weights map[string]float64 `yaml:"weights"`
}

// LoadUniverse builds the asset universe from a YAML file, falling back to
// the embedded default catalog when path is empty or missing.
func LoadUniverse(path string) (*engine.Universe, error) {
	raw := defaultUniverseYAML
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read universe file: %w", err)
		}
		if len(data) > 0 {
			raw = data
		}
	}

	var file universeFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse universe file: %w", err)
	}
	if len(file.Assets) == 0 {
		return nil, fmt.Errorf("universe file defines no assets")
	}

	assets := make([]*engine.Asset, 0, len(file.Assets))
	for _, spec := range file.Assets {
		if spec.Symbol == "" || spec.Price <= 0 {
			return nil, fmt.Errorf("asset %q: symbol and positive price are required", spec.Symbol)
		}
		kind := engine.DistUniform
		if spec.Volatility.Kind == string(engine.DistGaussian) {
			kind = engine.DistGaussian
		}
		assets = append(assets, &engine.Asset{
			Symbol:                spec.Symbol,
			Name:                  spec.Name,
			Category:              spec.Category,
			PriceCents:            engine.DollarsToCents(spec.Price),
			FloorCents:            engine.DollarsToCents(spec.Floor),
			Volatility:            engine.Volatility{Kind: kind, Param: spec.Volatility.Param},
			DividendPerShareCents: engine.DollarsToCents(spec.Dividend.PerShare),
			DividendIntervalDays:  spec.Dividend.IntervalDays,
			NextDividendDay:       spec.Dividend.FirstDay,
			DRIP:                  spec.Dividend.DRIP,
			Weights:               spec.Weights,
		})
	}
	return engine.NewUniverse(assets...), nil
}
