package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"ai-news-pipeline/pipeline"
)

// SummarizeResult is the structured output of one summarization call.
type SummarizeResult struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Error     *string  `json:"error,omitempty"`
}

const summarizeSystemInstruction = `
You are a content summarization assistant for technology news articles.
Your task is to analyze the provided text and produce a structured summary.
The response MUST be a valid JSON object with three keys:

1. summary: A concise summary of the article, no more than 600 characters.
2. key_points: A list of 3-5 short bullet points covering the article's main claims.
3. error: An optional string field. If the content contains a security check
   (e.g., "I'm not a bot," "Are you human?") or is otherwise not summarizable,
   set this field to a descriptive error message. Otherwise, set it to 'null'.

Additional constraints:
- You MUST NOT wrap the JSON output in a markdown code block (e.g., ` + "```json ... ```" + `).
- The response should contain ONLY the raw JSON string.
- If summarization fails, set the 'error' field and provide an empty string for
  'summary' and an empty array for 'key_points'.
`

// Summarize runs one summarization call over the extracted text. A
// malformed or refused response is a permanent failure; quota and server
// errors are transient.
func (c *Client) Summarize(ctx context.Context, text string) (*SummarizeResult, *CallLog, error) {
	input := c.truncate(text)
	requestedAt := time.Now().UTC()

	result, err := c.genai.Models.GenerateContent(
		ctx,
		c.model,
		genai.Text(input),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: summarizeSystemInstruction}}},
		},
	)
	if err != nil {
		return nil, nil, classifyError(err)
	}

	callLog := &CallLog{
		Operation:   "summarize",
		ModelName:   c.model,
		DurationMs:  time.Since(requestedAt).Milliseconds(),
		RequestedAt: requestedAt,
		CompletedAt: time.Now().UTC(),
	}
	if result.UsageMetadata != nil {
		callLog.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		callLog.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		callLog.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
	}

	var summary SummarizeResult
	if err := json.Unmarshal([]byte(result.Text()), &summary); err != nil {
		return nil, callLog, pipeline.Permanent(fmt.Errorf("malformed summarization response: %w", err))
	}
	callLog.Excerpt = excerpt(summary.Summary, 200)

	if summary.Error != nil {
		return &summary, callLog, pipeline.Permanent(fmt.Errorf("model refused to summarize: %s", *summary.Error))
	}
	if summary.Summary == "" {
		return &summary, callLog, pipeline.Permanent(fmt.Errorf("empty summary in response"))
	}

	return &summary, callLog, nil
}
