// Package openai extracts workplace facts from free text with an OpenAI
// chat model. The output is the same field map the extraction callback
// accepts, so it feeds straight into facts.Service.Ingest.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/warp/workfacts/config"
	"github.com/warp/workfacts/facts"
)

const extractionPrompt = `You extract an employee's workplace facts from a message they wrote.

Known fields:
%s
Rules:
- Only include a field when the message states its current value.
- Numbers are plain JSON numbers without units. Dates are "YYYY-MM-DD".
- Do not guess. Omit anything not stated.

Return ONLY a valid JSON object, no other text. Return {} if nothing applies.

Example:
Input: "I still have 12.5 days of annual leave and my bonus comes on 2025-09-22."
Output: {"leave_days": 12.5, "next_bonus_date": "2025-09-22"}`

// Client implements extraction using OpenAI.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new OpenAI extraction client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: openai.NewClientWithConfig(oc),
		model:  model,
	}, nil
}

// Extract returns the known fields found in text, keyed by external key.
// Unknown keys and nulls in the model's answer are dropped.
func (c *Client) Extract(ctx context.Context, text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &facts.ValidationError{Field: "text", Reason: "required"}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := cleanJSONResponse(resp.Choices[0].Message.Content)

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parsing extraction JSON: %w (response: %s)", err, content)
	}

	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if _, ok := facts.Resolve(k); ok && v != nil {
			out[k] = v
		}
	}
	return out, nil
}

func systemPrompt() string {
	var b strings.Builder
	for _, f := range facts.Fields() {
		kind := "number"
		if f.ValueKind == facts.KindDate {
			kind = "date"
		}
		fmt.Fprintf(&b, "- %s (%s, %s): %s\n", f.ExternalKey, kind, f.Unit, f.Description)
	}
	return fmt.Sprintf(extractionPrompt, b.String())
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
