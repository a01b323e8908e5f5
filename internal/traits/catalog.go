// Package traits resolves selected personality traits into a coaching profile.
package traits

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MaxSelected is the number of traits a session may combine.
const MaxSelected = 3

//go:embed catalog.yaml
var catalogYAML []byte

// Trait is one catalog entry. Pointer fields distinguish "not declared" from zero values.
type Trait struct {
	ID             string   `yaml:"id" json:"id"`
	Label          string   `yaml:"label" json:"label"`
	Category       string   `yaml:"-" json:"category"`
	Tone           string   `yaml:"tone,omitempty" json:"tone,omitempty"`
	QuestionRatio  *float64 `yaml:"question_ratio,omitempty" json:"question_ratio,omitempty"`
	StructureLevel string   `yaml:"structure_level,omitempty" json:"structure_level,omitempty"`
	FrameworkUsage bool     `yaml:"framework_usage,omitempty" json:"framework_usage,omitempty"`
	Pacing         string   `yaml:"pacing,omitempty" json:"pacing,omitempty"`
}

// Category groups related traits.
type Category struct {
	Name   string  `yaml:"name" json:"name"`
	Traits []Trait `yaml:"traits" json:"traits"`
}

// Catalog is the fixed set of selectable traits.
type Catalog struct {
	Categories []Category `yaml:"categories" json:"categories"`
	byID       map[string]Trait
}

// ParseCatalog decodes a YAML catalog and indexes it by trait id.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode trait catalog: %w", err)
	}

	c.byID = make(map[string]Trait)
	for ci := range c.Categories {
		cat := &c.Categories[ci]
		for ti := range cat.Traits {
			t := &cat.Traits[ti]
			if t.ID == "" {
				return nil, fmt.Errorf("trait in category %q has no id", cat.Name)
			}
			if _, dup := c.byID[t.ID]; dup {
				return nil, fmt.Errorf("duplicate trait id %q", t.ID)
			}
			if t.QuestionRatio != nil && (*t.QuestionRatio < 0 || *t.QuestionRatio > 1) {
				return nil, fmt.Errorf("trait %q question_ratio %v outside [0,1]", t.ID, *t.QuestionRatio)
			}
			t.Category = cat.Name
			c.byID[t.ID] = *t
		}
	}
	return &c, nil
}

var defaultCatalog = mustParse(catalogYAML)

func mustParse(data []byte) *Catalog {
	c, err := ParseCatalog(data)
	if err != nil {
		panic("traits: " + err.Error())
	}
	return c
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return defaultCatalog
}

// Lookup returns the trait with the given id.
func (c *Catalog) Lookup(id string) (Trait, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Known reports whether id is in the catalog.
func (c *Catalog) Known(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// IDs returns every trait id in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for _, cat := range c.Categories {
		for _, t := range cat.Traits {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
