package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSDKMessages_Roles(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
		{Role: "", Content: "defaults to user"},
	})
	assert.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
}

func TestToSDKSystemBlocks_CacheControl(t *testing.T) {
	blocks := toSDKSystemBlocks([]SystemBlock{
		{Text: "plain"},
		{Text: "cached", CacheControl: &CacheControl{TTL: "1h"}},
	})
	assert.Len(t, blocks, 2)
	assert.Equal(t, "plain", blocks[0].Text)
	assert.Equal(t, "1h", string(blocks[1].CacheControl.TTL))
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 4.80, u.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
	assert.InDelta(t, 18.00, u.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
	assert.Equal(t, 0.0, u.EstimateCost("unknown-model"))
}

func TestEstimateCost_CacheTokens(t *testing.T) {
	u := TokenUsage{CacheCreationInputTokens: 1_000_000, CacheReadInputTokens: 1_000_000}
	// haiku: 0.80 * 1.25 + 0.80 * 0.1
	assert.InDelta(t, 1.08, u.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
}
