package gemini

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"ai-news-pipeline/pipeline"
)

// Embed produces a fixed-dimension vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, *CallLog, error) {
	input := c.truncate(text)
	requestedAt := time.Now().UTC()

	dim := c.embeddingDim
	result, err := c.genai.Models.EmbedContent(
		ctx,
		c.embeddingModel,
		genai.Text(input),
		&genai.EmbedContentConfig{
			OutputDimensionality: &dim,
		},
	)
	if err != nil {
		return nil, nil, classifyError(err)
	}

	callLog := &CallLog{
		Operation:   "embed",
		ModelName:   c.embeddingModel,
		DurationMs:  time.Since(requestedAt).Milliseconds(),
		RequestedAt: requestedAt,
		CompletedAt: time.Now().UTC(),
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, callLog, pipeline.Permanent(fmt.Errorf("empty embedding response"))
	}

	vector := result.Embeddings[0].Values
	if dim > 0 && len(vector) != int(dim) {
		return nil, callLog, pipeline.Permanent(fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vector), dim))
	}

	return vector, callLog, nil
}
