package ai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"whatsapp-assistant/backend/pkg/logger"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	replies  []string
	errs     []error
	requests []openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return openai.ChatCompletionResponse{}, f.errs[i]
	}
	reply := ""
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: reply}}},
	}, nil
}

func newTestClient(api ChatCompleter, cfg Config) (*Client, *[]time.Duration) {
	c := NewClient(api, cfg, logger.Nop())
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	c.jitter = func(int64) int64 { return 0 }
	return c, &slept
}

func TestGenerate_SystemPromptHistoryAndUserTurn(t *testing.T) {
	api := &fakeCompleter{replies: []string{"  Olá!  "}}
	cfg := DefaultConfig()
	cfg.Instructions = "be brief"
	c, _ := newTestClient(api, cfg)

	reply := c.Generate(context.Background(), "oi", []Turn{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
	})

	assert.Equal(t, "Olá!", reply)
	require.Len(t, api.requests, 1)
	msgs := api.requests[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, "be brief", msgs[0].Content)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "second", msgs[2].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[3].Role)
	assert.Equal(t, "oi", msgs[3].Content)
	assert.Equal(t, "gpt-4o-mini", api.requests[0].Model)
}

func TestGenerate_RetriesWithIncreasingBackoff(t *testing.T) {
	boom := errors.New("upstream 503")
	api := &fakeCompleter{errs: []error{boom, boom}, replies: []string{"", "", "ok"}}
	cfg := DefaultConfig()
	cfg.BackoffBase = 100 * time.Millisecond
	c, slept := newTestClient(api, cfg)

	reply := c.Generate(context.Background(), "hi", nil)

	assert.Equal(t, "ok", reply)
	assert.Len(t, api.requests, 3)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *slept)
}

func TestGenerate_ApologyAfterExhaustion(t *testing.T) {
	boom := errors.New("timeout")
	api := &fakeCompleter{errs: []error{boom, boom, boom, boom}}
	c, slept := newTestClient(api, DefaultConfig())

	reply := c.Generate(context.Background(), "hi", nil)

	assert.Equal(t, ApologyMessage, reply)
	assert.Len(t, api.requests, 3)
	assert.Len(t, *slept, 2)
}

func TestGenerate_EmptyCompletionIsNotRetried(t *testing.T) {
	api := &fakeCompleter{replies: []string{"   "}}
	c, _ := newTestClient(api, DefaultConfig())

	assert.Equal(t, "", c.Generate(context.Background(), "hi", nil))
	assert.Len(t, api.requests, 1)
}

func TestGenerate_StopsWhenContextCancelled(t *testing.T) {
	api := &fakeCompleter{errs: []error{errors.New("x"), errors.New("x"), errors.New("x")}}
	c := NewClient(api, DefaultConfig(), logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, ApologyMessage, c.Generate(ctx, "hi", nil))
	assert.Len(t, api.requests, 1)
}

func TestBackoff_JitterBoundGrowsWithAttempt(t *testing.T) {
	c := NewClient(&fakeCompleter{}, DefaultConfig(), logger.Nop())
	var spans []int64
	c.jitter = func(n int64) int64 {
		spans = append(spans, n)
		return n - 1
	}

	d1 := c.backoff(1)
	d2 := c.backoff(2)

	assert.Equal(t, []int64{int64(250 * time.Millisecond), int64(500 * time.Millisecond)}, spans)
	assert.Greater(t, d2, d1)
}

func TestTrimHistory(t *testing.T) {
	history := []Turn{
		{Role: "user", Content: "1"},
		{Role: "bogus", Content: "dropped"},
		{Role: "assistant", Content: "   "},
		{Role: "", Content: "dropped"},
		{Role: "assistant", Content: "2"},
		{Role: "user", Content: "3"},
	}

	assert.Equal(t, []Turn{{Role: "assistant", Content: "2"}, {Role: "user", Content: "3"}}, TrimHistory(history, 2))
	assert.Len(t, TrimHistory(history, 20), 3)
	assert.Empty(t, TrimHistory(history, 0))
}

func TestTrimHistory_TrimsRoles(t *testing.T) {
	history := []Turn{
		{Role: " user ", Content: "1"},
		{Role: "assistant\n", Content: "2"},
		{Role: "   ", Content: "dropped"},
	}

	assert.Equal(t, []Turn{{Role: "user", Content: "1"}, {Role: "assistant", Content: "2"}}, TrimHistory(history, 20))
}

func TestTrimHistory_KeepsLastTwentyOfTwentyFive(t *testing.T) {
	var history []Turn
	for i := 0; i < 25; i++ {
		history = append(history, Turn{Role: "user", Content: string(rune('a' + i))})
	}

	got := TrimHistory(history, 20)
	require.Len(t, got, 20)
	assert.Equal(t, history[5], got[0])
	assert.Equal(t, history[24], got[19])
}

func TestLoadInstructions(t *testing.T) {
	assert.Equal(t, "line1\nline2", LoadInstructions(`line1\nline2`, ""))

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  from file \n"), 0o600))
	assert.Equal(t, "from file", LoadInstructions("", path))

	assert.Equal(t, FallbackInstructions, LoadInstructions("", filepath.Join(t.TempDir(), "missing.txt")))
	assert.Equal(t, FallbackInstructions, LoadInstructions("   ", ""))
}
