package core

import "strings"

// Environment is the deployment environment. It selects log format and gin mode.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the environment corresponds to production.
func (e Environment) IsProduction() bool {
	return e == Production
}

// Decode lets envconfig read ENVIRONMENT straight into an Environment.
func (e *Environment) Decode(v string) error {
	*e = ParseEnvironment(v)
	return nil
}

// ParseEnvironment normalises v. Unknown values fall back to Development.
func ParseEnvironment(v string) Environment {
	switch env := Environment(strings.ToLower(strings.TrimSpace(v))); env {
	case Production, Staging, Testing:
		return env
	default:
		return Development
	}
}
