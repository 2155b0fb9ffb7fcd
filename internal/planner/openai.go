package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"

	"github.com/videoforge/videoforge/internal/config"
)

const breakdownSystemPrompt = `You are a video production planner. Given a script and a target
duration in seconds, respond with JSON only, no prose, in this shape:
{"title": string, "total_duration": number, "scenes": [{"scene_number": number,
"scene_description": string, "duration": number, "candidate_urls": [string],
"image_prompt": string}]}`

// OpenAIProvider implements Provider against any OpenAI-compatible
// chat-completions endpoint (OpenAI, Groq, vLLM).
type OpenAIProvider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewOpenAIProvider(cfg config.OpenAIConfig) *OpenAIProvider {
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Model outputs sometimes wrap the JSON in prose or code fences; take the
// outermost object, as the original planner did.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

func (p *OpenAIProvider) BreakDown(ctx context.Context, script string, duration float64) (*Plan, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: breakdownSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Target duration: %.0f seconds.\n\nScript:\n%s", duration, script)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	u := p.cfg.BaseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	raw := jsonObject.FindString(cr.Choices[0].Message.Content)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrInvalidResponse)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(plan.Scenes) == 0 {
		return nil, fmt.Errorf("%w: plan has no scenes", ErrInvalidResponse)
	}
	return &plan, nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return fmt.Errorf("calling planner: %w", err)
}

var _ Provider = (*OpenAIProvider)(nil)
