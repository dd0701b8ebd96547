package quota

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed plans/default.yaml
var defaultPlansYAML []byte

// Limits maps each category to its monthly limit; nil is unlimited.
type Limits map[Category]*int

// Plans is the plan catalog.
type Plans struct {
	Default string            `yaml:"default"`
	Plans   map[string]Limits `yaml:"plans"`
}

// DefaultPlans returns the built-in catalog.
func DefaultPlans() (*Plans, error) {
	return ParsePlans(defaultPlansYAML)
}

// LoadPlans reads a catalog from path, or the built-in one when path is empty.
func LoadPlans(path string) (*Plans, error) {
	if path == "" {
		return DefaultPlans()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("quota: read plans %s: %w", path, err)
	}
	return ParsePlans(b)
}

func ParsePlans(b []byte) (*Plans, error) {
	var p Plans
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("quota: parse plans: %w", err)
	}
	if len(p.Plans) == 0 {
		return nil, fmt.Errorf("quota: no plans defined")
	}
	if _, ok := p.Plans[p.Default]; !ok {
		return nil, fmt.Errorf("quota: default plan %q is not defined", p.Default)
	}
	for name, limits := range p.Plans {
		for cat, limit := range limits {
			if _, err := ParseCategory(string(cat)); err != nil {
				return nil, fmt.Errorf("quota: plan %q: %w", name, err)
			}
			if limit != nil && *limit < 0 {
				return nil, fmt.Errorf("quota: plan %q: negative limit for %s", name, cat)
			}
		}
	}
	return &p, nil
}

// LimitFor returns the limit of category on plan. Unknown plans fall back to
// the default plan; a category the plan does not list has limit 0.
func (p *Plans) LimitFor(plan string, category Category) *int {
	limits, ok := p.Plans[plan]
	if !ok {
		limits = p.Plans[p.Default]
	}
	limit, listed := limits[category]
	if !listed {
		zero := 0
		return &zero
	}
	return limit
}
