package gemini

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// Client wraps the Gemini SDK for summarization and embedding calls.
type Client struct {
	genai           *genai.Client
	model           string
	embeddingModel  string
	embeddingDim    int32
	inputCharBudget int
}

// CallLog captures per-call usage for the ai_logs collection.
type CallLog struct {
	Operation    string
	ModelName    string
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	DurationMs   int64
	Excerpt      string
	RequestedAt  time.Time
	CompletedAt  time.Time
}

type Options struct {
	APIKey          string
	Model           string
	EmbeddingModel  string
	EmbeddingDim    int
	InputCharBudget int
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not set")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{
		genai:           gc,
		model:           opts.Model,
		embeddingModel:  opts.EmbeddingModel,
		embeddingDim:    int32(opts.EmbeddingDim),
		inputCharBudget: opts.InputCharBudget,
	}, nil
}

func (c *Client) Model() string          { return c.model }
func (c *Client) EmbeddingModel() string { return c.embeddingModel }

// truncate enforces the input character budget before any LLM call.
func (c *Client) truncate(text string) string {
	if c.inputCharBudget <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= c.inputCharBudget {
		return text
	}
	return string(runes[:c.inputCharBudget])
}

func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
