package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/wiresense/server/internal/core/error"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		params   Params
		want     Action
		wantCode errx.Code
	}{
		{name: "chat", action: "chat", params: Params{Message: " hi "}, want: Chat{Message: "hi"}},
		{name: "chat with diagram", action: "CHAT", params: Params{Message: "hi", DiagramURL: "d.png"}, want: Chat{Message: "hi", DiagramRef: "d.png"}},
		{name: "chat without message", action: "chat", wantCode: errx.CodeInvalidArgument},
		{name: "photo", action: "photo", params: Params{ImageURL: "p.jpg", TechComment: "burnt"}, want: Photo{ImageRef: "p.jpg", Comment: "burnt"}},
		{name: "photo comment from message", action: "photo", params: Params{ImageURL: "p.jpg", Message: "look"}, want: Photo{ImageRef: "p.jpg", Comment: "look"}},
		{name: "photo without image", action: "photo", params: Params{TechComment: "burnt"}, wantCode: errx.CodeInvalidArgument},
		{name: "explain", action: "explain", params: Params{Message: "why the relay"}, want: Explain{Topic: "why the relay"}},
		{name: "explain without topic", action: "explain", wantCode: errx.CodeInvalidArgument},
		{name: "reassess", action: "reassess", want: Reassess{}},
		{name: "diagnose", action: "diagnose", params: Params{Message: "no crank"}, want: Diagnose{Symptom: "no crank"}},
		{name: "diagnose without symptom", action: "diagnose", wantCode: errx.CodeInvalidArgument},
		{name: "unknown", action: "delete", wantCode: errx.CodeInvalidAction},
		{name: "empty", action: "", wantCode: errx.CodeInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.action, tt.params)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errx.CodeOf(err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActionNames(t *testing.T) {
	for _, a := range []Action{Chat{}, Photo{}, Explain{}, Reassess{}, Diagnose{}} {
		_, err := ParseAction(a.Name(), Params{Message: "m", ImageURL: "i"})
		assert.NoError(t, err, a.Name())
	}
}
