package prompt

import (
	"context"
	"fmt"
	"strings"

	"videokit/internal/domain"
)

const timestampSystemPrompt = `You are a timestamp validator for video prompts. Your task is to fix any timestamp sequences that are out of order.

Rules:
1. Each [Cut] line has format: [Cut] MM:SS.mm–MM:SS.mm (Xs) — description
2. The start time of each cut MUST equal the end time of the previous cut
3. Keep the duration in parentheses accurate (end time - start time)
4. Do NOT change any text except the timestamps
5. Return ONLY the corrected prompt text, nothing else - no explanations, no markdown

Example input:
[Cut] 00:00.00–00:00.35 (0.35s) — First scene
[Cut] 00:00.35–00:01.00 (0.65s) — Second scene
[Cut] 00:02.00–00:02.50 (0.5s) — Third scene (ERROR: should start at 00:01.00)

Example output:
[Cut] 00:00.00–00:00.35 (0.35s) — First scene
[Cut] 00:00.35–00:01.00 (0.65s) — Second scene
[Cut] 00:01.00–00:01.50 (0.5s) — Third scene`

const timestampUserPrefix = "Fix the timestamps in this video prompt so they are sequential:\n\n"

// FixResult is the rewritten prompt and whether it differs from the input.
type FixResult struct {
	FixedPrompt string `json:"fixedPrompt"`
	WasModified bool   `json:"wasModified"`
}

// FixTimestamps asks the model to make the [Cut] timeline of a video prompt contiguous.
// The key is checked before the prompt so an unconfigured server always reports that first.
func (c *Client) FixTimestamps(ctx context.Context, prompt string) (*FixResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}
	text, err := c.complete(ctx, timestampSystemPrompt, timestampUserPrefix+prompt)
	if err != nil {
		return nil, err
	}
	fixed := strings.TrimSpace(text)
	if fixed != prompt {
		c.logger.Info().Int("prompt_len", len(prompt)).Msg("timestamps rewritten")
	}
	return &FixResult{FixedPrompt: fixed, WasModified: fixed != prompt}, nil
}
