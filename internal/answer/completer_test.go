package answer

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

const chatReply = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "grok-2-1212",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "  期中考试在第8周。  "}
	}]
}`

// chatServer answers every request with reply and hands the decoded request
// body to the test.
func chatServer(t *testing.T, reply string) (*httptest.Server, <-chan map[string]any) {
	t.Helper()
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		select {
		case bodies <- body:
		default:
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, bodies
}

func TestNewOpenAICompleter_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAICompleter(CompleterConfig{})
	assert.Error(t, err)
}

func TestNewOpenAICompleter_Defaults(t *testing.T) {
	c, err := NewOpenAICompleter(CompleterConfig{APIKey: "xai-test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.model)
	assert.Equal(t, DefaultMaxTokens, c.maxTokens)
	assert.Equal(t, DefaultTemperature, c.temperature)
}

func TestOpenAICompleter_SendsZeroTemperature(t *testing.T) {
	srv, bodies := chatServer(t, chatReply)

	zero := 0.0
	c, err := NewOpenAICompleter(CompleterConfig{
		APIKey:      "xai-test",
		BaseURL:     srv.URL + "/v1/",
		Temperature: &zero,
	})
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), Prompt{System: "system", User: "期中考试什么时候"})
	require.NoError(t, err)
	assert.Equal(t, "期中考试在第8周。", got)

	body := <-bodies
	temperature, ok := body["temperature"]
	require.True(t, ok, "temperature must be sent even when zero")
	assert.Equal(t, 0.0, temperature)
	assert.Equal(t, DefaultModel, body["model"])
	assert.Len(t, body["messages"], 2)
}

func TestOpenAICompleter_EmptyChoiceIsNoContent(t *testing.T) {
	srv, _ := chatServer(t, `{"id":"x","object":"chat.completion","created":0,"model":"m","choices":[]}`)

	c, err := NewOpenAICompleter(CompleterConfig{APIKey: "xai-test", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Prompt{User: "hi"})
	assert.ErrorIs(t, err, ErrNoContent)
}
