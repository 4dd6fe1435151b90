// Package collab talks to the external language-model collaborator. It
// implements drafting, revision, and semantic analysis on top of an
// OpenAI-compatible chat endpoint. Every call is context-bounded and every
// failure comes back as COLLABORATOR_UNAVAILABLE so callers can degrade.
package collab

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/zoudejun0319/novelkeeper/internal/config"
	"github.com/zoudejun0319/novelkeeper/internal/errs"
)

// Client wraps one chat model.
type Client struct {
	llm llms.Model
}

// New builds a client from the collaborator config.
func New(cfg config.Collaborator) (*Client, error) {
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCollaboratorUnavailable, err, "init chat model %q", cfg.Model)
	}
	return &Client{llm: llm}, nil
}

// complete sends one system+user exchange and returns the first choice.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	})
	if err != nil {
		return "", errs.Wrap(errs.CodeCollaboratorUnavailable, err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errs.New(errs.CodeCollaboratorUnavailable, "chat completion returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// decodeJSON parses a model reply into out, tolerating markdown code
// fences around the payload.
func decodeJSON(reply string, out any) error {
	s := strings.TrimSpace(reply)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), out); err != nil {
		return errs.Wrap(errs.CodeCollaboratorUnavailable, err, "malformed collaborator reply")
	}
	return nil
}
