package session

import (
	"strings"

	errx "github.com/wiresense/server/internal/core/error"
)

// Action names accepted on the wire.
const (
	ActionChat     = "chat"
	ActionPhoto    = "photo"
	ActionExplain  = "explain"
	ActionReassess = "reassess"
	ActionDiagnose = "diagnose"
)

// Action is the closed set of session transitions. Only the types in this
// file implement it.
type Action interface {
	Name() string
	isAction()
}

// Chat continues the conversation, optionally about a diagram image.
type Chat struct {
	Message    string
	DiagramRef string
}

// Photo submits a photo taken by the technician.
type Photo struct {
	ImageRef string
	Comment  string
}

// Explain asks for the reasoning behind one claim of the diagnosis.
type Explain struct {
	Topic string
}

// Reassess rebuilds causes and tests from the whole conversation.
type Reassess struct{}

// Diagnose runs the initial analysis of a reported symptom.
type Diagnose struct {
	Symptom    string
	DiagramRef string
}

func (Chat) Name() string     { return ActionChat }
func (Photo) Name() string    { return ActionPhoto }
func (Explain) Name() string  { return ActionExplain }
func (Reassess) Name() string { return ActionReassess }
func (Diagnose) Name() string { return ActionDiagnose }

func (Chat) isAction()     {}
func (Photo) isAction()    {}
func (Explain) isAction()  {}
func (Reassess) isAction() {}
func (Diagnose) isAction() {}

// Params are the optional request fields an action may draw from.
type Params struct {
	Message     string
	ImageURL    string
	DiagramURL  string
	TechComment string
}

// ParseAction maps a wire action name and its parameters to an Action. An
// unknown name is an invalid action; a missing required field is an invalid
// argument.
func ParseAction(name string, p Params) (Action, error) {
	message := strings.TrimSpace(p.Message)
	diagram := strings.TrimSpace(p.DiagramURL)

	switch strings.ToLower(strings.TrimSpace(name)) {
	case ActionChat:
		if message == "" {
			return nil, errx.InvalidArgument("chat requires a message")
		}
		return Chat{Message: message, DiagramRef: diagram}, nil
	case ActionPhoto:
		image := strings.TrimSpace(p.ImageURL)
		if image == "" {
			return nil, errx.InvalidArgument("photo requires an imageUrl")
		}
		comment := strings.TrimSpace(p.TechComment)
		if comment == "" {
			comment = message
		}
		return Photo{ImageRef: image, Comment: comment}, nil
	case ActionExplain:
		if message == "" {
			return nil, errx.InvalidArgument("explain requires a message naming the topic")
		}
		return Explain{Topic: message}, nil
	case ActionReassess:
		return Reassess{}, nil
	case ActionDiagnose:
		if message == "" {
			return nil, errx.InvalidArgument("diagnose requires a message describing the symptom")
		}
		return Diagnose{Symptom: message, DiagramRef: diagram}, nil
	default:
		return nil, errx.InvalidAction(name)
	}
}
