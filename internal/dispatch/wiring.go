package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/wiresense/server/internal/agent/model"
	errx "github.com/wiresense/server/internal/core/error"
	"github.com/wiresense/server/internal/quota"
	logx "github.com/wiresense/server/pkg/logger"
)

// Wire-tracing operation names accepted on the wire.
const (
	OpExtractComponents = "extract_components"
	OpTracePath         = "trace_path"
	OpAnalyzeComponent  = "analyze_component"
	OpAnalyzeComponents = "analyze_components"
)

// WiringEngine runs the wire-tracing operations.
type WiringEngine interface {
	ExtractComponents(ctx context.Context, imageRef string) ([]model.Component, error)
	TracePath(ctx context.Context, imageRef, startID, endID string, known []model.Component) (*model.WirePath, error)
	AnalyzeComponent(ctx context.Context, imageRef, componentID string) (*model.ComponentAnalysis, error)
	AnalyzeComponents(ctx context.Context, imageRef string, ids []string) ([]*model.ComponentAnalysis, error)
}

// DiagramResolver maps a diagram id to its image reference.
type DiagramResolver interface {
	ImageRef(ctx context.Context, diagramID string) (string, error)
}

// ComponentCatalog stores the components extracted from each diagram.
type ComponentCatalog interface {
	Known(ctx context.Context, diagramID string) ([]model.Component, error)
	Replace(ctx context.Context, diagramID string, components []model.Component) error
}

// WireTracingRequest is one wire-tracing operation on a stored diagram.
type WireTracingRequest struct {
	UserID         string   `json:"-"`
	Action         string   `json:"action"`
	DiagramID      string   `json:"diagramId"`
	StartComponent string   `json:"startComponent,omitempty"`
	EndComponent   string   `json:"endComponent,omitempty"`
	ComponentID    string   `json:"componentId,omitempty"`
	ComponentIDs   []string `json:"componentIds,omitempty"`
}

// WireTracingResponse holds the result of exactly one operation. Only the
// field belonging to Action is rendered: components is always a list, and
// path is null when the path could not be traced.
type WireTracingResponse struct {
	Action     string                     `json:"action"`
	DiagramID  string                     `json:"diagramId"`
	Components []model.Component          `json:"components,omitempty"`
	Path       *model.WirePath            `json:"path,omitempty"`
	Analysis   *model.ComponentAnalysis   `json:"analysis,omitempty"`
	Analyses   []*model.ComponentAnalysis `json:"analyses,omitempty"`
}

func (r WireTracingResponse) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"action":    r.Action,
		"diagramId": r.DiagramID,
	}
	switch r.Action {
	case OpExtractComponents:
		components := r.Components
		if components == nil {
			components = []model.Component{}
		}
		out["components"] = components
	case OpTracePath:
		out["path"] = r.Path
	case OpAnalyzeComponent:
		out["analysis"] = r.Analysis
	case OpAnalyzeComponents:
		analyses := r.Analyses
		if analyses == nil {
			analyses = []*model.ComponentAnalysis{}
		}
		out["analyses"] = analyses
	}
	return json.Marshal(out)
}

// Operation is the closed set of wire-tracing requests.
type Operation interface {
	name() string
}

type extractOp struct{}

type traceOp struct{ start, end string }

type analyzeOp struct{ componentID string }

type analyzeBatchOp struct{ componentIDs []string }

func (extractOp) name() string      { return OpExtractComponents }
func (traceOp) name() string        { return OpTracePath }
func (analyzeOp) name() string      { return OpAnalyzeComponent }
func (analyzeBatchOp) name() string { return OpAnalyzeComponents }

// ParseOperation validates a wire-tracing request into an Operation.
func ParseOperation(req WireTracingRequest) (Operation, error) {
	if strings.TrimSpace(req.DiagramID) == "" {
		return nil, errx.InvalidArgument("diagramId is required")
	}
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case OpExtractComponents:
		return extractOp{}, nil
	case OpTracePath:
		start, end := strings.TrimSpace(req.StartComponent), strings.TrimSpace(req.EndComponent)
		if start == "" || end == "" {
			return nil, errx.InvalidArgument("trace_path requires startComponent and endComponent")
		}
		return traceOp{start: start, end: end}, nil
	case OpAnalyzeComponent:
		id := strings.TrimSpace(req.ComponentID)
		if id == "" {
			return nil, errx.InvalidArgument("analyze_component requires componentId")
		}
		return analyzeOp{componentID: id}, nil
	case OpAnalyzeComponents:
		ids := make([]string, 0, len(req.ComponentIDs))
		for _, id := range req.ComponentIDs {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil, errx.InvalidArgument("analyze_components requires componentIds")
		}
		return analyzeBatchOp{componentIDs: ids}, nil
	default:
		return nil, errx.InvalidAction(req.Action)
	}
}

// WireTracing dispatches wire-tracing operations.
type WireTracing struct {
	ledger   Ledger
	engine   WiringEngine
	diagrams DiagramResolver
	catalog  ComponentCatalog
}

func NewWireTracing(ledger Ledger, engine WiringEngine, diagrams DiagramResolver, catalog ComponentCatalog) *WireTracing {
	return &WireTracing{ledger: ledger, engine: engine, diagrams: diagrams, catalog: catalog}
}

func (w *WireTracing) Handle(ctx context.Context, req WireTracingRequest) (*WireTracingResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, errx.Unauthorized("user id is required")
	}
	op, err := ParseOperation(req)
	if err != nil {
		return nil, err
	}
	diagramID := strings.TrimSpace(req.DiagramID)
	imageRef, err := w.diagrams.ImageRef(ctx, diagramID)
	if err != nil {
		return nil, err
	}

	if _, err := w.ledger.Enforce(ctx, req.UserID, quota.AIAnalyses); err != nil {
		return nil, err
	}

	resp := &WireTracingResponse{Action: op.name(), DiagramID: diagramID}
	metered := true
	switch o := op.(type) {
	case extractOp:
		resp.Components, err = w.engine.ExtractComponents(ctx, imageRef)
		if err == nil {
			if len(resp.Components) > 0 {
				if cerr := w.catalog.Replace(ctx, diagramID, resp.Components); cerr != nil {
					logx.Error().Err(cerr).Str("diagram_id", diagramID).Msg("failed to store extracted components")
				}
			}
		}
	case traceOp:
		var known []model.Component
		known, err = w.catalog.Known(ctx, diagramID)
		if err == nil {
			_, okStart := model.FindComponent(known, o.start)
			_, okEnd := model.FindComponent(known, o.end)
			// unresolved endpoints never reach the model
			metered = okStart && okEnd
			resp.Path, err = w.engine.TracePath(ctx, imageRef, o.start, o.end, known)
		}
	case analyzeOp:
		resp.Analysis, err = w.engine.AnalyzeComponent(ctx, imageRef, o.componentID)
	case analyzeBatchOp:
		resp.Analyses, err = w.engine.AnalyzeComponents(ctx, imageRef, o.componentIDs)
	}
	if err != nil {
		logx.Warn().
			Err(err).
			Str("diagram_id", diagramID).
			Str("action", op.name()).
			Str("error_code", string(errx.CodeOf(err))).
			Msg("wire-tracing action failed")
		return nil, err
	}

	if metered {
		w.ledger.RecordAsync(ctx, req.UserID, quota.AIAnalyses, map[string]any{
			"diagramId": diagramID,
			"action":    op.name(),
		})
	}
	return resp, nil
}
