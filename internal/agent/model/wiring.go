package model

// Component is one element read off a wiring diagram. IDs are only unique
// within the diagram they were extracted from.
type Component struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Location    string   `json:"location,omitempty"`
	Connections []string `json:"connections"`
}

// WirePath is a traced route between two components. An empty Path means the
// trace ran but found no connection.
type WirePath struct {
	From      Component `json:"from"`
	To        Component `json:"to"`
	Path      []string  `json:"path"`
	WireColor string    `json:"wireColor,omitempty"`
	WireGauge string    `json:"wireGauge,omitempty"`
}

// ComponentAnalysis describes a single component in detail.
type ComponentAnalysis struct {
	ComponentID    string            `json:"componentId,omitempty"`
	Description    string            `json:"description"`
	Specifications map[string]string `json:"specifications,omitempty"`
	Connections    []string          `json:"connections"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// AnalysisFailedDescription marks a degenerate ComponentAnalysis.
const AnalysisFailedDescription = "Analysis failed"

// FailedAnalysis is returned when a component could not be analysed.
func FailedAnalysis(componentID string) *ComponentAnalysis {
	return &ComponentAnalysis{
		ComponentID: componentID,
		Description: AnalysisFailedDescription,
		Connections: []string{},
	}
}

// FindComponent returns the component with the given id.
func FindComponent(components []Component, id string) (Component, bool) {
	for _, c := range components {
		if c.ID == id {
			return c, true
		}
	}
	return Component{}, false
}
