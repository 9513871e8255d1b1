package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAI talks to an OpenAI-compatible /chat/completions endpoint.
type OpenAI struct {
	http        *resty.Client
	model       string
	temperature float64
	maxTokens   int
}

func NewOpenAI(baseURL, apiKey, model string, temperature float64, maxTokens int) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetTimeout(30 * time.Second)
	return &OpenAI{http: c, model: model, temperature: temperature, maxTokens: maxTokens}
}

func (o *OpenAI) Close() error { return nil }

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Complete(ctx context.Context, msgs []Message) (string, error) {
	var out chatResponse

	resp, err := o.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       o.model,
			Messages:    msgs,
			Temperature: o.temperature,
			MaxTokens:   o.maxTokens,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("chat api: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat api: empty choices")
	}
	return out.Choices[0].Message.Content, nil
}
