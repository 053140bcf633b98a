package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiExtractionClient is the concrete ExtractionClient backed by the
// Gemini API. It replays the full conversation history on every call so
// corrective re-prompting works without server-side session state.
type GeminiExtractionClient struct {
	model string
}

func NewGeminiExtractionClient(model string) *GeminiExtractionClient {
	return &GeminiExtractionClient{model: model}
}

var _ ExtractionClient = (*GeminiExtractionClient)(nil)

// Extract sends the accumulated conversation to the model and decodes its
// reply into an ExtractedStatement.
func (c *GeminiExtractionClient) Extract(ctx context.Context, turns []Turn) (*ExtractedStatement, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("Extract: create genai client: %w", err)
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		contents = append(contents, &genai.Content{
			Role:  string(turn.Role),
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Extract: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("Extract: empty response from model")
	}

	return DecodeModelResponse(rawText)
}

// DecodeModelResponse strips markdown fences from a model reply and decodes
// the strict-JSON statement object.
func DecodeModelResponse(raw string) (*ExtractedStatement, error) {
	clean := cleanModelJSON(raw)

	var ext ExtractedStatement
	if err := json.Unmarshal([]byte(clean), &ext); err != nil {
		return nil, fmt.Errorf("DecodeModelResponse: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	ext.Raw = raw
	return &ext, nil
}

// cleanModelJSON removes ```json fences and surrounding junk when the model
// ignores the raw-JSON instruction, keeping the outermost {...} object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
