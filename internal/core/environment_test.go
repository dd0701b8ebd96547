package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvironment(t *testing.T) {
	tests := map[string]Environment{
		"production":    Production,
		" Production ":  Production,
		"staging":       Staging,
		"testing":       Testing,
		"":              Development,
		"local-laptop":  Development,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseEnvironment(in), "input %q", in)
	}
	assert.True(t, Production.IsProduction())
	assert.False(t, Staging.IsProduction())
}

func TestEnvironmentDecode(t *testing.T) {
	var env Environment
	assert.NoError(t, env.Decode("STAGING"))
	assert.Equal(t, Staging, env)
	assert.NoError(t, env.Decode("qa"))
	assert.Equal(t, Development, env)
}
