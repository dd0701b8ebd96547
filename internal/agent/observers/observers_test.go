package observers

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestLastUserContent(t *testing.T) {
	msgs := []*schema.Message{
		schema.SystemMessage("framing"),
		schema.UserMessage(" first "),
		nil,
		schema.AssistantMessage("reply", nil),
		schema.UserMessage(" second "),
	}
	assert.Equal(t, "second", lastUserContent(msgs))
	assert.Equal(t, "", lastUserContent([]*schema.Message{schema.SystemMessage("x")}))
}

func TestCountImages(t *testing.T) {
	msgs := []*schema.Message{
		schema.UserMessage("text only"),
		{Role: schema.User, MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: "look"},
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: "https://x/y.png"}},
		}},
	}
	assert.Equal(t, 1, countImages(msgs))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", maxLoggedContent+10)
	got := truncate(long)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, "short", truncate("  short "))
}

func TestNewAllCallbacks(t *testing.T) {
	assert.NotNil(t, NewAllCallbacks())
}
