// Package inference is the single choke point for model calls. It turns a
// structured prompt into raw text plus call metadata and classifies
// failures; parsing, retries and caching belong to callers.
package inference

import (
	"context"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/wiresense/server/internal/agent/model"
)

// Expectation is the rough response shape a caller asks for.
type Expectation int

const (
	ExpectText Expectation = iota
	ExpectJSON
)

func (e Expectation) String() string {
	if e == ExpectJSON {
		return "json"
	}
	return "text"
}

// Request is one model call: system framing plus ordered turns. Vision turns
// carry their image as a MultiContent part (see VisionMessage).
type Request struct {
	// Operation names the caller for logs and callbacks, e.g. "session.chat".
	Operation string
	Messages  []*schema.Message
	Expect    Expectation
}

// Response is the raw model text and basic observability metadata.
type Response struct {
	Text    string           `json:"text"`
	Model   string           `json:"model"`
	Usage   model.TokenUsage `json:"usage"`
	CostUSD float64          `json:"costUsd"`
	Latency time.Duration    `json:"latency"`
}

// Gateway performs model calls. Errors are errx.CodeConfiguration (fatal) or
// errx.CodeInference (retryable).
type Gateway interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, req Request) (*Response, error)

func (f GatewayFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

const imageRefKey = "image_ref"

// VisionMessage builds a user turn holding text and an image reference.
func VisionMessage(text, imageRef string) *schema.Message {
	parts := make([]schema.ChatMessagePart, 0, 2)
	if strings.TrimSpace(text) != "" {
		parts = append(parts, schema.ChatMessagePart{Type: schema.ChatMessagePartTypeText, Text: text})
	}
	parts = append(parts, schema.ChatMessagePart{
		Type: schema.ChatMessagePartTypeImageURL,
		ImageURL: &schema.ChatMessageImageURL{
			URL:      imageRef,
			URI:      imageRef,
			MIMEType: GuessImageMIME(imageRef),
		},
	})
	return &schema.Message{
		Role:         schema.User,
		Content:      text,
		MultiContent: parts,
		Extra:        map[string]any{imageRefKey: imageRef},
	}
}

// ImageRefOf returns the image reference attached to a message, if any.
func ImageRefOf(m *schema.Message) string {
	if m == nil || m.Extra == nil {
		return ""
	}
	ref, _ := m.Extra[imageRefKey].(string)
	return ref
}

// TagImageRef records an image reference on a history entry without
// making it a vision turn.
func TagImageRef(m *schema.Message, imageRef string) *schema.Message {
	if imageRef == "" {
		return m
	}
	if m.Extra == nil {
		m.Extra = map[string]any{}
	}
	m.Extra[imageRefKey] = imageRef
	return m
}

// GuessImageMIME infers a MIME type from the reference's extension, falling
// back to image/png.
func GuessImageMIME(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		if end := strings.IndexAny(ref, ";,"); end > len("data:") {
			return ref[len("data:"):end]
		}
	}
	clean := ref
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(clean))); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/png"
}
