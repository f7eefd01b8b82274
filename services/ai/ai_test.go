package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct{ name string }

func (f fakeCompleter) Complete(context.Context, Request) (string, error) { return f.name, nil }

func TestRouterDispatch(t *testing.T) {
	r := &Router{
		Anthropic:  fakeCompleter{"anthropic"},
		Gemini:     fakeCompleter{"gemini"},
		OpenRouter: fakeCompleter{"openrouter"},
	}
	for model, want := range map[string]string{
		"claude-3-haiku-20240307":     "anthropic",
		"gemini-2.5-pro":              "gemini",
		"google/gemini-2.5-pro":       "gemini",
		"anthropic/claude-3.5-sonnet": "openrouter",
		"moonshotai/kimi-k2":          "openrouter",
	} {
		got, err := r.Complete(context.Background(), Request{Model: model})
		require.NoError(t, err, model)
		assert.Equal(t, want, got, model)
	}

	_, err := (&Router{}).Complete(context.Background(), Request{Model: "claude-3"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAnthropicRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sys", body.System)
		assert.Equal(t, 1024, body.MaxTokens)

		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"  Score: 8  "}]}`))
	}))
	defer srv.Close()

	c := NewAnthropic("k", srv.URL, 5*time.Second, 3, time.Millisecond)
	out, err := c.Complete(context.Background(), Request{Model: "claude-3-haiku-20240307", System: "sys", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Score: 8", out)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestOpenRouterDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad model"}`))
	}))
	defer srv.Close()

	c := NewOpenRouter("k", srv.URL, 5*time.Second, 3, time.Millisecond)
	_, err := c.Complete(context.Background(), Request{Model: "x/y", Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestOpenRouterSendsSystemAndJSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		msgs := body["messages"].([]any)
		assert.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "json_object", body["response_format"].(map[string]any)["type"])
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"score\":7}"}}]}`))
	}))
	defer srv.Close()

	out, err := NewOpenRouter("k", srv.URL, time.Second, 1, time.Millisecond).
		Complete(context.Background(), Request{Model: "x/y", System: "s", Prompt: "p", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"score":7}`, out)
}

func TestMissingKeyIsNotConfigured(t *testing.T) {
	_, err := NewAnthropic("", "http://unused", time.Second, 1, time.Millisecond).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	g, err := NewGemini(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, g)
}

func TestParseCallText(t *testing.T) {
	a := ParseCallText("Score: 8\nToken Type: Utility\nLegitimacy Factor: HIGH\nReasoning: solid team")
	assert.Equal(t, 8.0, a.Score)
	assert.Equal(t, "utility", a.TokenType)
	assert.Equal(t, "High", a.LegitimacyFactor)

	d := ParseCallText("no structure here")
	assert.Equal(t, 5.0, d.Score)
	assert.Equal(t, "meme", d.TokenType)
	assert.Equal(t, "Medium", d.LegitimacyFactor)
}

func TestParseCallJSON(t *testing.T) {
	a, err := ParseCallJSON("```json\n{\"score\": 3, \"legitimacy_factor\": \"Low\", \"reasoning\": \"hype\", \"token_type\": \"Meme\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, 3.0, a.Score)
	assert.Equal(t, "Low", a.LegitimacyFactor)
	assert.Equal(t, "meme", a.TokenType)

	a, err = ParseCallJSON(`{"reasoning":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, 5.0, a.Score)
	assert.Equal(t, "Medium", a.LegitimacyFactor)

	_, err = ParseCallJSON("nothing")
	assert.Error(t, err)
}

func TestParseBatchRequiresExactCount(t *testing.T) {
	text := `[{"score":7,"token_type":"Utility","legitimacy_factor":"High","reasoning":"a"},{"score":2,"token_type":"meme","legitimacy_factor":"Low","reasoning":"b"}]`
	out, err := ParseBatch(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "utility", out[0].TokenType)
	assert.Equal(t, 2.0, out[1].Score)

	_, err = ParseBatch(text, 3)
	assert.ErrorContains(t, err, "expected 3 results, got 2")

	_, err = ParseBatch("{}", 1)
	assert.ErrorContains(t, err, "no JSON array")
}

func TestParseX(t *testing.T) {
	text := `Score: 7
Token Type: Utility

Key positive signals:
- Active dev updates
- Real partnerships
• Growing holders
- Fourth signal dropped

Red flags or concerns:
- Some bot replies
- Anonymous team
- Third flag dropped

Overall assessment: Legit early community.`

	x := ParseX(text, 12)
	assert.Equal(t, 7.0, x.Score)
	assert.Equal(t, "utility", x.TokenType)
	assert.Equal(t, []string{"Active dev updates", "Real partnerships", "Growing holders"}, x.PositiveSignals)
	assert.Equal(t, []string{"Some bot replies", "Anonymous team"}, x.RedFlags)
	assert.Equal(t, "Legit early community.", x.Assessment)

	assert.Equal(t, "• Active dev updates\n• Real partnerships\n• Growing holders\n\nRED FLAGS:\n• Some bot replies\n• Anonymous team", x.Summary())
}

func TestParseXDefaults(t *testing.T) {
	x := ParseX("nothing useful", 4)
	assert.Equal(t, 1.0, x.Score)
	assert.Equal(t, []string{"Analysis complete"}, x.PositiveSignals)
	assert.Equal(t, []string{"None identified"}, x.RedFlags)
	assert.Equal(t, "Scored 1/10 based on 4 tweets", x.Assessment)

	n := NoTweetsAnalysis()
	assert.Equal(t, 1.0, n.Score)
	assert.True(t, strings.HasPrefix(n.Summary(), "• No social media presence found"))
}

func TestPromptsIncludeCallData(t *testing.T) {
	in := CallInput{Ticker: "PEPE", Contract: "0xabc", Group: "Zeus"}
	assert.Contains(t, CallPrompt(in), "- Token: PEPE")
	assert.Contains(t, CallPrompt(in), "- Message: No message")
	assert.Contains(t, ReanalysisPrompt(in), "Contract: 0xabc")

	b := BatchPrompt([]CallInput{in, {Ticker: "DOGE"}})
	assert.Contains(t, b, "Analyze these 2 calls")
	assert.Contains(t, b, "Call 2:\n- Token: DOGE")
	assert.Contains(t, b, "exactly 2 objects")
	assert.Equal(t, "Batch analysis of 2 calls", BatchPromptLabel(2))

	assert.Equal(t, "Analyze these tweets about PEPE (contract: 0xabc):\n\nTweet 1: a\n\nTweet 2: b", XPrompt("PEPE", "0xabc", []string{"a", "b"}))
}

func TestParseWebsite(t *testing.T) {
	w, err := ParseWebsite(`Here: {"score": 6, "tier": "solid", "reasoning": "ok"}`)
	require.NoError(t, err)
	assert.Equal(t, 6.0, w.Score)
	assert.Equal(t, "SOLID", w.Tier)
}

func TestParseXRescore(t *testing.T) {
	text := "Score: 7\nToken Type: Utility\nLegitimacy Factor: high\nBest Tweet: v2 mainnet ships friday\nKey Observations:\n- devs active\nReasoning: Real builders with steady updates."
	r := ParseXRescore(text)
	assert.Equal(t, 7.0, r.Score)
	assert.Equal(t, "utility", r.TokenType)
	assert.Equal(t, "High", r.LegitimacyFactor)
	assert.Equal(t, "v2 mainnet ships friday", r.BestTweet)
	assert.Equal(t, "Real builders with steady updates.", r.Reasoning)

	d := ParseXRescore("no structure here")
	assert.Equal(t, 1.0, d.Score)
	assert.Equal(t, "meme", d.TokenType)
	assert.Equal(t, "Low", d.LegitimacyFactor)
	assert.Equal(t, "no structure here", d.Reasoning)
}

func TestXRescorePrompt(t *testing.T) {
	p := XRescorePrompt("PEPE", "", []string{"gm", "wagmi"})
	assert.Equal(t, "Analyze these tweets about PEPE token (captured at unknown time):\n\nTweet 1: gm\nTweet 2: wagmi", p)
}
