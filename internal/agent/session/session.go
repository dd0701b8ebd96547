// Package session holds the diagnostic conversation state machine: the
// Session value, the closed set of actions that move it forward, the Engine
// that turns an action into model calls, and the Registry that serializes
// updates per session id over a Store.
package session

import (
	"maps"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/wiresense/server/internal/agent/model"
)

// Session is one diagnostic conversation. History is append-only and is
// replayed to the model in order.
type Session struct {
	ID             string                `json:"sessionId"`
	Vehicle        model.VehicleContext  `json:"vehicleContext"`
	History        []*schema.Message     `json:"chatHistory"`
	ProbableCauses []model.ProbableCause `json:"probableCauses"`
	SuggestedTests []model.SuggestedTest `json:"suggestedTests"`
	// Version counts committed updates; stores compare it before writing.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New returns a session in its initial state.
func New(id string, vehicle model.VehicleContext, now time.Time) *Session {
	return &Session{
		ID:             id,
		Vehicle:        vehicle,
		History:        []*schema.Message{},
		ProbableCauses: []model.ProbableCause{},
		SuggestedTests: []model.SuggestedTest{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy safe to mutate.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.History = make([]*schema.Message, 0, len(s.History)+2)
	for _, m := range s.History {
		if m == nil {
			continue
		}
		c := *m
		if m.Extra != nil {
			c.Extra = maps.Clone(m.Extra)
		}
		out.History = append(out.History, &c)
	}
	out.ProbableCauses = append(make([]model.ProbableCause, 0, len(s.ProbableCauses)), s.ProbableCauses...)
	out.SuggestedTests = append(make([]model.SuggestedTest, 0, len(s.SuggestedTests)), s.SuggestedTests...)
	return &out
}
