// Package groq implements intent.Classifier against a Groq (or any
// OpenAI-compatible) chat-completions endpoint. The provider only ever
// classifies; results it produces carry no deterministic score and can
// never reach execution directly.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/attendd/attendd/internal/intent"
	"github.com/attendd/attendd/pkg/types"
)

const systemPrompt = `You classify a voice transcript against a fixed list of desktop commands.
Reply with ONLY a JSON object:
{"command_id": "<id or null>", "confidence": 0.0, "parameters": {}}
Pick a command only when the transcript clearly asks for it. Confidence is in [0,1].
Parameters may only contain integer values mentioned in the transcript.`

// Client calls the chat-completions API.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
}

// Config configures a Client. BaseURL defaults to the Groq endpoint,
// Timeout to 10s.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify implements intent.Classifier.
func (c *Client) Classify(ctx context.Context, transcript string, commands []types.CommandSpec) (intent.Classification, error) {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(&sb, "- id=%s description=%q examples=%q\n", cmd.ID, cmd.Description, strings.Join(cmd.Examples, " | "))
	}
	fmt.Fprintf(&sb, "\nTranscript: %q\n", transcript)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: sb.String()},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return intent.Classification{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return intent.Classification{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return intent.Classification{}, fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return intent.Classification{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return intent.Classification{}, fmt.Errorf("classifier status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return intent.Classification{}, fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return intent.Classification{}, fmt.Errorf("classifier returned no choices")
	}
	return parseClassification(cr.Choices[0].Message.Content)
}

// parseClassification decodes the model's JSON payload. A null or missing
// command_id is a valid "no match".
func parseClassification(content string) (intent.Classification, error) {
	content = strings.TrimSpace(content)
	// Some models wrap JSON in a code fence despite the response format.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw struct {
		CommandID  *string        `json:"command_id"`
		Confidence float64        `json:"confidence"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return intent.Classification{}, fmt.Errorf("decode classification: %w", err)
	}
	cls := intent.Classification{Confidence: raw.Confidence, Parameters: raw.Parameters}
	if raw.CommandID != nil && *raw.CommandID != "null" {
		cls.CommandID = *raw.CommandID
	}
	if cls.Parameters == nil {
		cls.Parameters = map[string]any{}
	}
	return cls, nil
}
