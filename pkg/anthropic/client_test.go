package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageServer(t *testing.T, check func(body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		if check != nil {
			check(body)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"entities":[]`},
				{"type": "text", "text": `,"tokens":[]}`},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 12, "output_tokens": 7},
		})
	}))
}

func TestCreateMessage(t *testing.T) {
	ts := messageServer(t, func(body map[string]any) {
		assert.Equal(t, "claude-haiku-4-5-20251001", body["model"])
		assert.EqualValues(t, 512, body["max_tokens"])
		system := body["system"].([]any)
		assert.Equal(t, "annotate", system[0].(map[string]any)["text"])
	})
	defer ts.Close()

	c := NewClient("test-key", WithBaseURL(ts.URL), WithMaxRetries(0))
	resp, err := c.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 512,
		System:    "annotate",
		Messages:  []Message{{Role: "user", Content: "Who wrote War and Peace?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, `{"entities":[],"tokens":[]}`, resp.Text())
	assert.Equal(t, int64(12), resp.Usage.InputTokens)
	assert.Equal(t, int64(7), resp.Usage.OutputTokens)
}

func TestCreateMessageWithoutSystem(t *testing.T) {
	ts := messageServer(t, func(body map[string]any) {
		assert.NotContains(t, body, "system")
	})
	defer ts.Close()

	c := NewClient("test-key", WithBaseURL(ts.URL), WithMaxRetries(0))
	_, err := c.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 64,
		Messages:  []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
}

func TestCreateMessageAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	c := NewClient("test-key", WithBaseURL(ts.URL), WithMaxRetries(0))
	_, err := c.CreateMessage(context.Background(), MessageRequest{Model: "m", MaxTokens: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}

func TestToSDKMessagesRoles(t *testing.T) {
	out := toSDKMessages([]Message{{Role: "user", Content: "q"}, {Role: "assistant", Content: "a"}})
	require.Len(t, out, 2)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
}

func TestResponseTextSkipsNonText(t *testing.T) {
	r := &MessageResponse{Content: []ContentBlock{{Type: "tool_use"}, {Type: "text", Text: "ok"}}}
	assert.Equal(t, "ok", r.Text())
}
