// Package wiring reads circuit diagrams: it extracts components, traces paths
// between them and analyses single components. Model output is parsed
// leniently and parse failures degrade to empty, nil or "Analysis failed"
// results; gateway failures are returned as errors.
package wiring

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/wiresense/server/internal/agent/inference"
	"github.com/wiresense/server/internal/agent/model"
	"github.com/wiresense/server/internal/agent/parsers"
	"github.com/wiresense/server/internal/agent/prompts"
	errx "github.com/wiresense/server/internal/core/error"
	logx "github.com/wiresense/server/pkg/logger"
)

const defaultBatchConcurrency = 4

// Engine runs the wire-tracing operations. It holds no per-diagram state.
type Engine struct {
	gateway          inference.Gateway
	batchConcurrency int
}

func NewEngine(gateway inference.Gateway, cfg model.WiringConfig) *Engine {
	n := cfg.BatchConcurrency
	if n <= 0 {
		n = defaultBatchConcurrency
	}
	return &Engine{gateway: gateway, batchConcurrency: n}
}

// ExtractComponents lists the components visible on the diagram. An
// unparsable answer yields an empty, non-nil slice.
func (e *Engine) ExtractComponents(ctx context.Context, imageRef string) ([]model.Component, error) {
	if err := requireImage(imageRef); err != nil {
		return nil, err
	}
	text, err := prompts.ExtractComponents(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := e.call(ctx, "wiring.extract_components", text, imageRef)
	if err != nil {
		return nil, err
	}

	outcome := parsers.DecodeArray[componentDTO]("extract_components", resp.Text)
	dtos, ok := outcome.Get()
	if !ok {
		logx.Warn().Str("reason", outcome.Reason()).Msg("component extraction unparsable, returning none")
		return []model.Component{}, nil
	}
	components := make([]model.Component, 0, len(dtos))
	seen := make(map[string]struct{}, len(dtos))
	for _, d := range dtos {
		c := d.toComponent()
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		components = append(components, c)
	}
	return components, nil
}

// TracePath traces startID to endID. Both ids must resolve against known;
// otherwise, or when the answer is unparsable, it returns nil without error.
// A non-nil result with an empty Path means no connection was found.
func (e *Engine) TracePath(ctx context.Context, imageRef, startID, endID string, known []model.Component) (*model.WirePath, error) {
	if err := requireImage(imageRef); err != nil {
		return nil, err
	}
	from, okFrom := model.FindComponent(known, strings.TrimSpace(startID))
	to, okTo := model.FindComponent(known, strings.TrimSpace(endID))
	if !okFrom || !okTo {
		logx.Debug().
			Str("start", startID).
			Str("end", endID).
			Bool("start_known", okFrom).
			Bool("end_known", okTo).
			Msg("trace endpoints not in component list")
		return nil, nil
	}

	text, err := prompts.TracePath(ctx, from, to, known)
	if err != nil {
		return nil, err
	}
	resp, err := e.call(ctx, "wiring.trace_path", text, imageRef)
	if err != nil {
		return nil, err
	}

	outcome := parsers.DecodeObject[pathDTO]("trace_path", resp.Text)
	dto, ok := outcome.Get()
	if !ok || dto.Path == nil {
		logx.Warn().Str("reason", outcome.Reason()).Msg("path trace unparsable")
		return nil, nil
	}
	return &model.WirePath{
		From:      from,
		To:        to,
		Path:      dto.Path.Strings(),
		WireColor: strings.TrimSpace(string(dto.WireColor)),
		WireGauge: strings.TrimSpace(string(dto.WireGauge)),
	}, nil
}

// AnalyzeComponent describes one component. An unparsable answer yields the
// degenerate "Analysis failed" result.
func (e *Engine) AnalyzeComponent(ctx context.Context, imageRef, componentID string) (*model.ComponentAnalysis, error) {
	if err := requireImage(imageRef); err != nil {
		return nil, err
	}
	componentID = strings.TrimSpace(componentID)
	if componentID == "" {
		return nil, errx.InvalidArgument("componentId is required")
	}
	text, err := prompts.AnalyzeComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	resp, err := e.call(ctx, "wiring.analyze_component", text, imageRef)
	if err != nil {
		return nil, err
	}

	outcome := parsers.DecodeObject[analysisDTO]("analyze_component", resp.Text)
	dto, ok := outcome.Get()
	if !ok || strings.TrimSpace(string(dto.Description)) == "" {
		logx.Warn().Str("component_id", componentID).Str("reason", outcome.Reason()).Msg("component analysis unparsable")
		return model.FailedAnalysis(componentID), nil
	}
	return dto.toAnalysis(componentID), nil
}

// AnalyzeComponents analyses ids in parallel, at most batchConcurrency at a
// time. A component that fails gets the degenerate result and the batch
// carries on, except for configuration failures, which abort the batch.
// Results keep input order.
func (e *Engine) AnalyzeComponents(ctx context.Context, imageRef string, ids []string) ([]*model.ComponentAnalysis, error) {
	if err := requireImage(imageRef); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errx.InvalidArgument("componentIds is required")
	}

	results := make([]*model.ComponentAnalysis, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.batchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := e.AnalyzeComponent(gctx, imageRef, id)
			if err != nil {
				if errx.CodeOf(err) == errx.CodeConfiguration {
					return err
				}
				logx.Warn().Err(err).Str("component_id", id).Msg("component analysis failed, continuing batch")
				a = model.FailedAnalysis(strings.TrimSpace(id))
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) call(ctx context.Context, operation, text, imageRef string) (*inference.Response, error) {
	system, err := prompts.WiringSystem(ctx)
	if err != nil {
		return nil, err
	}
	return e.gateway.Generate(ctx, inference.Request{
		Operation: operation,
		Messages:  []*schema.Message{system, inference.VisionMessage(text, imageRef)},
		Expect:    inference.ExpectJSON,
	})
}

func requireImage(imageRef string) error {
	if strings.TrimSpace(imageRef) == "" {
		return errx.InvalidArgument("diagram image reference is required")
	}
	return nil
}
