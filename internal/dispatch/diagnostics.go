// Package dispatch is the framework-free entry point for the two action
// surfaces. It validates the request, gates it on the quota ledger, runs it
// and records usage once it succeeded.
package dispatch

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/wiresense/server/internal/agent/model"
	"github.com/wiresense/server/internal/agent/session"
	errx "github.com/wiresense/server/internal/core/error"
	"github.com/wiresense/server/internal/quota"
	logx "github.com/wiresense/server/pkg/logger"
)

// Ledger is the part of the quota ledger dispatch needs.
type Ledger interface {
	Enforce(ctx context.Context, userID string, category quota.Category) (quota.State, error)
	RecordAsync(ctx context.Context, userID string, category quota.Category, metadata map[string]any)
}

// VehicleInfo is the vehicle as sent by the client.
type VehicleInfo struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	VehicleClass string `json:"vehicleClass"`
}

// DiagnosticRequest is one action against a diagnostic session.
type DiagnosticRequest struct {
	UserID      string       `json:"-"`
	SessionID   string       `json:"sessionId"`
	Action      string       `json:"action"`
	Message     string       `json:"message,omitempty"`
	ImageURL    string       `json:"imageUrl,omitempty"`
	DiagramURL  string       `json:"diagramUrl,omitempty"`
	TechComment string       `json:"techComment,omitempty"`
	VehicleInfo *VehicleInfo `json:"vehicleInfo,omitempty"`
}

// DiagnosticResponse is the action result plus the session it left behind.
type DiagnosticResponse struct {
	SessionID      string                `json:"sessionId"`
	Result         *session.Result       `json:"result"`
	ProbableCauses []model.ProbableCause `json:"probableCauses"`
	SuggestedTests []model.SuggestedTest `json:"suggestedTests"`
	Version        int64                 `json:"version"`
}

// Diagnostics dispatches diagnostic session actions.
type Diagnostics struct {
	ledger   Ledger
	registry *session.Registry
	engine   *session.Engine
}

func NewDiagnostics(ledger Ledger, registry *session.Registry, engine *session.Engine) *Diagnostics {
	return &Diagnostics{ledger: ledger, registry: registry, engine: engine}
}

// Handle runs one action. Invalid requests fail before the ledger is
// consulted; a quota rejection is a *quota.ExceededError and no model call
// is made.
func (d *Diagnostics) Handle(ctx context.Context, req DiagnosticRequest) (*DiagnosticResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, errx.Unauthorized("user id is required")
	}
	action, err := session.ParseAction(req.Action, session.Params{
		Message:     req.Message,
		ImageURL:    req.ImageURL,
		DiagramURL:  req.DiagramURL,
		TechComment: req.TechComment,
	})
	if err != nil {
		return nil, err
	}
	vehicle, err := vehicleContext(req.VehicleInfo)
	if err != nil {
		return nil, err
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if _, err := d.ledger.Enforce(ctx, req.UserID, quota.AIAnalyses); err != nil {
		return nil, err
	}

	var result *session.Result
	s, err := d.registry.Update(ctx, sessionID, vehicle, func(ctx context.Context, cur *session.Session) (*session.Session, error) {
		next, res, err := d.engine.Apply(ctx, cur, action)
		result = res
		return next, err
	})
	if err != nil {
		logx.Warn().
			Err(err).
			Str("sessionID", sessionID).
			Str("action", action.Name()).
			Str("error_code", string(errx.CodeOf(err))).
			Msg("diagnostic action failed")
		return nil, err
	}

	d.ledger.RecordAsync(ctx, req.UserID, quota.AIAnalyses, map[string]any{
		"sessionId": sessionID,
		"action":    action.Name(),
		"model":     result.Model,
		"tokens":    result.Usage.TotalTokens,
	})
	return &DiagnosticResponse{
		SessionID:      s.ID,
		Result:         result,
		ProbableCauses: s.ProbableCauses,
		SuggestedTests: s.SuggestedTests,
		Version:        s.Version,
	}, nil
}

// Session returns the stored session.
func (d *Diagnostics) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	return d.registry.Get(ctx, sessionID)
}

func vehicleContext(info *VehicleInfo) (model.VehicleContext, error) {
	if info == nil {
		return model.VehicleContext{Class: model.Automotive}, nil
	}
	class, err := model.ParseVehicleClass(info.VehicleClass)
	if err != nil {
		return model.VehicleContext{}, errx.InvalidArgument("%v", err)
	}
	return model.VehicleContext{
		Make:  strings.TrimSpace(info.Make),
		Model: strings.TrimSpace(info.Model),
		Class: class,
	}, nil
}
