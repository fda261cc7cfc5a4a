package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/sightings-map/internal/domain"
	"gopkg.in/yaml.v3"
)

// thresholdFile mirrors the YAML schema for threshold overrides:
//
//	no_data: "#bdbdbd"
//	layers:
//	  by_density:
//	    format: ratio
//	    buckets:
//	      - {lower: 0, color: "#ffeda0"}
//	      - {lower: 0.00002, color: "#800026"}
type thresholdFile struct {
	NoData string                        `yaml:"no_data"`
	Layers map[string]thresholdTableYAML `yaml:"layers"`
}

type thresholdTableYAML struct {
	Format  string          `yaml:"format"`
	NoData  string          `yaml:"no_data"`
	Buckets []domain.Bucket `yaml:"buckets"`
}

// LoadThresholds returns the built-in tables with any layers named in the
// YAML file at path replaced. An empty path returns the built-in tables.
func LoadThresholds(path string) (domain.Tables, error) {
	if path == "" {
		return domain.DefaultTables(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds file: %w", err)
	}
	tables, err := ParseThresholds(data)
	if err != nil {
		return nil, fmt.Errorf("thresholds file %s: %w", path, err)
	}
	return tables, nil
}

// ParseThresholds applies YAML overrides on top of the built-in tables. A
// file-level no_data colour applies to every table that does not set its own.
func ParseThresholds(data []byte) (domain.Tables, error) {
	var file thresholdFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse thresholds: %w", err)
	}

	tables := domain.DefaultTables()
	for kind, t := range tables {
		if _, overridden := file.Layers[string(kind)]; overridden || file.NoData == "" {
			continue
		}
		rebuilt, err := domain.NewThresholdTable(kind, t.Format, file.NoData, t.Buckets)
		if err != nil {
			return nil, err
		}
		tables[kind] = rebuilt
	}

	for name, override := range file.Layers {
		kind, ok := domain.ParseLayerKind(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownLayer, name)
		}
		format := domain.LabelFormat(override.Format)
		if format == "" {
			format = tables[kind].Format
		}
		noData := override.NoData
		if noData == "" {
			noData = file.NoData
		}
		table, err := domain.NewThresholdTable(kind, format, noData, override.Buckets)
		if err != nil {
			return nil, err
		}
		tables[kind] = table
	}
	return tables, nil
}
