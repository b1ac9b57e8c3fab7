package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/af-corp/prediction-orchestrator/internal/config"
	"github.com/af-corp/prediction-orchestrator/internal/failure"
	"github.com/af-corp/prediction-orchestrator/internal/types"
)

// contentFunc extracts the answer text from one choice's message.
type contentFunc func(msg openAIMessage) string

// OpenAIAdapter handles communication with OpenAI-compatible chat completion APIs
// (Together, Synthetic and most hosted open-weight vendors).
type OpenAIAdapter struct {
	name    string
	cfg     config.ProviderConfig
	client  *http.Client
	content contentFunc
}

func NewOpenAIAdapter(cfg config.ProviderConfig, client *http.Client) *OpenAIAdapter {
	return &OpenAIAdapter{name: "openai", cfg: cfg, client: client, content: plainContent}
}

// NewSyntheticAdapter handles Synthetic.new, which for some reasoning models
// returns the whole answer in reasoning_content and leaves content empty.
func NewSyntheticAdapter(cfg config.ProviderConfig, client *http.Client) *OpenAIAdapter {
	return &OpenAIAdapter{name: "synthetic", cfg: cfg, client: client, content: reasoningAwareContent}
}

func (a *OpenAIAdapter) Name() string { return a.name }

func (a *OpenAIAdapter) TransformRequest(ctx context.Context, req *types.CompletionRequest) (*http.Request, error) {
	body := openAIRequestBody{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", a.name, err)
	}

	url := strings.TrimRight(a.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	for k, v := range a.cfg.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	return httpReq, nil
}

func (a *OpenAIAdapter) TransformResponse(ctx context.Context, resp *http.Response) (*types.Completion, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", a.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp, body)
	}

	var oaiResp openAIResponseBody
	if err := json.Unmarshal(body, &oaiResp); err != nil {
		return nil, fmt.Errorf("unmarshal %s response: %w", a.name, err)
	}

	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("%s: no choices: %w", a.name, failure.ErrEmptyResponse)
	}

	choice := oaiResp.Choices[0]
	content := a.content(choice.Message)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%s: finish_reason=%q: %w", a.name, choice.FinishReason, failure.ErrEmptyResponse)
	}

	return &types.Completion{
		Model:        oaiResp.Model,
		Provider:     a.name,
		Content:      content,
		FinishReason: choice.FinishReason,
		Usage: types.Usage{
			PromptTokens:     oaiResp.Usage.PromptTokens,
			CompletionTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:      oaiResp.Usage.TotalTokens,
		},
	}, nil
}

func (a *OpenAIAdapter) SendRequest(req *http.Request) (*http.Response, error) {
	return a.client.Do(req)
}

func plainContent(msg openAIMessage) string {
	return msg.Content
}

func reasoningAwareContent(msg openAIMessage) string {
	reasoning := msg.ReasoningContent
	if reasoning == "" {
		reasoning = msg.Reasoning
	}
	if strings.TrimSpace(msg.Content) == "" {
		return reasoning
	}
	return wrapReasoning(reasoning, msg.Content)
}

type openAIRequestBody struct {
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
	Reasoning        string `json:"reasoning,omitempty"`
}

type openAIResponseBody struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
