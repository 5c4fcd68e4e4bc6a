// Package yaml provides YAML-based overlay configuration parsing.
package yaml

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
)

// yamlOverlay represents the raw YAML structure
type yamlOverlay struct {
	Permissions []string        `yaml:"permissions"`
	Booleans    []yamlBool      `yaml:"booleans"`
	Strings     []yamlString    `yaml:"strings"`
	Integers    []yamlInteger   `yaml:"integers"`
	Arrays      []yamlArray     `yaml:"arrays"`
	Services    []yamlComponent `yaml:"services"`
	Receivers   []yamlComponent `yaml:"receivers"`
	Providers   []yamlComponent `yaml:"providers"`
}

type yamlBool struct {
	Name  string `yaml:"name"`
	Value bool   `yaml:"value"`
}

type yamlString struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type yamlInteger struct {
	Name  string `yaml:"name"`
	Value int    `yaml:"value"`
}

type yamlArray struct {
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

type yamlComponent struct {
	Name     string            `yaml:"name"`
	Exported bool              `yaml:"exported"`
	Attrs    map[string]string `yaml:"attrs"`
}

// OverlayParser parses YAML overlay configuration files
type OverlayParser struct{}

// NewOverlayParser creates a new YAML parser
func NewOverlayParser() *OverlayParser {
	return &OverlayParser{}
}

// ParseFile parses a YAML overlay file into an OverlaySet. Callers merge
// the result atop the built-in set for the selected mode.
func (p *OverlayParser) ParseFile(filePath string) (entities.OverlaySet, error) {
	//nolint:gosec // G304: filePath is an overlay configuration path from the caller
	data, err := os.ReadFile(filePath)
	if err != nil {
		return entities.OverlaySet{}, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	return p.Parse(data)
}

// Parse parses raw YAML bytes into an OverlaySet
func (p *OverlayParser) Parse(data []byte) (entities.OverlaySet, error) {
	var raw yamlOverlay
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return entities.OverlaySet{}, fmt.Errorf("failed to parse overlay config: %w", err)
	}
	return raw.toEntity(), nil
}

func (y yamlOverlay) toEntity() entities.OverlaySet {
	set := entities.OverlaySet{Permissions: y.Permissions}
	for _, b := range y.Booleans {
		set.Booleans = append(set.Booleans, entities.BoolResource{Name: b.Name, Value: b.Value})
	}
	for _, s := range y.Strings {
		set.Strings = append(set.Strings, entities.StringResource{Name: s.Name, Value: s.Value})
	}
	for _, i := range y.Integers {
		set.Integers = append(set.Integers, entities.IntegerResource{Name: i.Name, Value: i.Value})
	}
	for _, a := range y.Arrays {
		set.Arrays = append(set.Arrays, entities.ArrayResource{Name: a.Name, Items: a.Items})
	}
	set.Services = toComponents(y.Services)
	set.Receivers = toComponents(y.Receivers)
	set.Providers = toComponents(y.Providers)
	return set
}

func toComponents(raw []yamlComponent) []entities.Component {
	var out []entities.Component
	for _, c := range raw {
		component := entities.Component{Name: c.Name, Exported: c.Exported}
		keys := make([]string, 0, len(c.Attrs))
		for key := range c.Attrs {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			component.Attrs = append(component.Attrs, entities.Attr{Key: key, Value: c.Attrs[key]})
		}
		out = append(out, component)
	}
	return out
}
