package wiring

import (
	"strings"

	"github.com/wiresense/server/internal/agent/model"
	"github.com/wiresense/server/internal/agent/parsers"
)

// Wire shapes as the model returns them; scalar fields tolerate numbers and
// lists tolerate comma-separated strings.

type componentDTO struct {
	ID          parsers.FlexString `json:"id"`
	Name        parsers.FlexString `json:"name"`
	Type        parsers.FlexString `json:"type"`
	Location    parsers.FlexString `json:"location"`
	Connections parsers.StringList `json:"connections"`
}

func (d componentDTO) toComponent() model.Component {
	return model.Component{
		ID:          strings.TrimSpace(string(d.ID)),
		Name:        strings.TrimSpace(string(d.Name)),
		Type:        strings.TrimSpace(string(d.Type)),
		Location:    strings.TrimSpace(string(d.Location)),
		Connections: d.Connections.Strings(),
	}
}

type pathDTO struct {
	Path      parsers.StringList `json:"path"`
	WireColor parsers.FlexString `json:"wireColor"`
	WireGauge parsers.FlexString `json:"wireGauge"`
}

type analysisDTO struct {
	Description    parsers.FlexString `json:"description"`
	Specifications parsers.StringMap  `json:"specifications"`
	Connections    parsers.StringList `json:"connections"`
	Warnings       parsers.StringList `json:"warnings"`
}

func (d analysisDTO) toAnalysis(componentID string) *model.ComponentAnalysis {
	a := &model.ComponentAnalysis{
		ComponentID: componentID,
		Description: strings.TrimSpace(string(d.Description)),
		Connections: d.Connections.Strings(),
	}
	if len(d.Specifications) > 0 {
		a.Specifications = map[string]string(d.Specifications)
	}
	if len(d.Warnings) > 0 {
		a.Warnings = d.Warnings.Strings()
	}
	return a
}
