package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"ai-news-pipeline/pipeline"
)

// classifyError maps SDK errors onto the pipeline taxonomy. Quota and
// server-side failures are transient; client errors are permanent.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pipeline.Transient(fmt.Errorf("gemini call timed out: %w", err))
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return pipeline.Transient(fmt.Errorf("gemini rate limited: %w", err))
		case apiErr.Code >= 500:
			return pipeline.Transient(fmt.Errorf("gemini server error: %w", err))
		case apiErr.Code >= 400:
			return pipeline.Permanent(fmt.Errorf("gemini request rejected: %w", err))
		}
	}

	// Network-level failures (connection reset, DNS) default to transient.
	return pipeline.Transient(fmt.Errorf("gemini call failed: %w", err))
}
