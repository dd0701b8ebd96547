package logx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wiresense/server/internal/core"
)

func TestProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(LoggerOpts{Environment: core.Production, Output: &buf})
	t.Cleanup(func() { Init() })

	Debug().Msg("hidden")
	Info().Str("sessionID", "s1").Msg("created")
	lg := Logger().With().Str("component", "test").Logger()
	lg.Warn().Msg("derived")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"sessionID":"s1"`)
	assert.Contains(t, out, `"component":"test"`)
}
