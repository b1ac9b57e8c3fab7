package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/af-corp/prediction-orchestrator/internal/config"
	"github.com/af-corp/prediction-orchestrator/internal/failure"
	"github.com/af-corp/prediction-orchestrator/internal/types"
)

func chatRequest() *types.CompletionRequest {
	temp := 0.2
	return &types.CompletionRequest{
		Model:       "m",
		Temperature: &temp,
		Messages: []types.Message{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "predict"},
		},
	}
}

func roundTrip(t *testing.T, a ProviderAdapter, srv *httptest.Server) (*types.Completion, error) {
	t.Helper()
	req, err := a.TransformRequest(context.Background(), chatRequest())
	if err != nil {
		t.Fatalf("TransformRequest: %v", err)
	}
	resp, err := a.SendRequest(req)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	return a.TransformResponse(context.Background(), resp)
}

func TestOpenAIAdapter_RoundTrip(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody openAIRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"{\"home_score\":1}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	}))
	defer srv.Close()

	a := NewOpenAIAdapter(config.ProviderConfig{BaseURL: srv.URL + "/v1/", APIKey: "k"}, srv.Client())
	c, err := roundTrip(t, a, srv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer k" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Errorf("unexpected request messages: %+v", gotBody.Messages)
	}
	if c.Content != `{"home_score":1}` || c.Usage.TotalTokens != 15 || c.Provider != "openai" {
		t.Errorf("unexpected completion: %+v", c)
	}
}

func TestOpenAIAdapter_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"slow down"}`)
	}))
	defer srv.Close()

	a := NewOpenAIAdapter(config.ProviderConfig{BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	_, err := roundTrip(t, a, srv)
	var st *failure.StatusError
	if !errors.As(err, &st) {
		t.Fatalf("expected *failure.StatusError, got %v", err)
	}
	if st.StatusCode != 429 || st.RetryAfter != 7*time.Second || !st.Transient() {
		t.Errorf("unexpected status error: %+v", st)
	}
}

func TestOpenAIAdapter_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"","reasoning_content":"{\"a\":1}"},"finish_reason":"length"}]}`)
	}))
	defer srv.Close()

	a := NewOpenAIAdapter(config.ProviderConfig{BaseURL: srv.URL}, srv.Client())
	_, err := roundTrip(t, a, srv)
	if !errors.Is(err, failure.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestSyntheticAdapter_ReasoningContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"","reasoning_content":"{\"a\":1}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	a := NewSyntheticAdapter(config.ProviderConfig{BaseURL: srv.URL}, srv.Client())
	c, err := roundTrip(t, a, srv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Content != `{"a":1}` || c.Provider != "synthetic" {
		t.Errorf("unexpected completion: %+v", c)
	}
}

func TestSyntheticAdapter_WrapsReasoning(t *testing.T) {
	got := reasoningAwareContent(openAIMessage{Content: "{}", ReasoningContent: "hmm"})
	if got != "<think>hmm</think>{}" {
		t.Errorf("got %q", got)
	}
}

func TestAnthropicAdapter_RoundTrip(t *testing.T) {
	var got anthropicRequestBody
	var gotKey, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"model":"claude","content":[{"type":"thinking","thinking":"consider"},{"type":"text","text":"{}"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`)
	}))
	defer srv.Close()

	a := NewAnthropicAdapter(config.ProviderConfig{BaseURL: srv.URL, APIKey: "ak"}, srv.Client())
	c, err := roundTrip(t, a, srv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.System != "sys" || len(got.Messages) != 1 || got.MaxTokens != 4096 {
		t.Errorf("unexpected request: %+v", got)
	}
	if gotKey != "ak" || gotVersion != defaultAnthropicVersion {
		t.Errorf("headers: key=%q version=%q", gotKey, gotVersion)
	}
	if !strings.HasPrefix(c.Content, "<think>consider</think>") || c.FinishReason != "stop" || c.Usage.TotalTokens != 7 {
		t.Errorf("unexpected completion: %+v", c)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("3"); d != 3*time.Second {
		t.Errorf("got %s", d)
	}
	if d := parseRetryAfter(""); d != 0 {
		t.Errorf("got %s", d)
	}
	if d := parseRetryAfter("soon"); d != 0 {
		t.Errorf("got %s", d)
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if d := parseRetryAfter(future); d <= 0 || d > time.Minute {
		t.Errorf("http-date retry-after gave %s", d)
	}
}
