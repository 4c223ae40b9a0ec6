package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendd/attendd/pkg/types"
)

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func TestClassify(t *testing.T) {
	srv := chatServer(t, `{"command_id":"volume_up","confidence":0.92,"parameters":{"delta":10}}`, http.StatusOK)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "test-key"})
	cls, err := c.Classify(context.Background(), "crank it up a bit", []types.CommandSpec{{ID: "volume_up"}})
	require.NoError(t, err)
	assert.Equal(t, "volume_up", cls.CommandID)
	assert.InDelta(t, 0.92, cls.Confidence, 1e-9)
	assert.Equal(t, float64(10), cls.Parameters["delta"])
}

func TestClassifyNullCommand(t *testing.T) {
	srv := chatServer(t, `{"command_id":null,"confidence":0.1,"parameters":{}}`, http.StatusOK)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "test-key"})
	cls, err := c.Classify(context.Background(), "mumble", nil)
	require.NoError(t, err)
	assert.Empty(t, cls.CommandID)
}

func TestClassifyHTTPError(t *testing.T) {
	srv := chatServer(t, "", http.StatusBadGateway)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "test-key"})
	_, err := c.Classify(context.Background(), "anything", nil)
	assert.Error(t, err)
}

func TestParseClassificationCodeFence(t *testing.T) {
	cls, err := parseClassification("```json\n{\"command_id\":\"lock_screen\",\"confidence\":0.9}\n```")
	require.NoError(t, err)
	assert.Equal(t, "lock_screen", cls.CommandID)
	assert.NotNil(t, cls.Parameters)
}

func TestParseClassificationGarbage(t *testing.T) {
	_, err := parseClassification("sure, I'd say volume_up")
	assert.Error(t, err)
}
