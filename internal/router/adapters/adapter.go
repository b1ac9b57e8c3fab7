package adapters

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/af-corp/prediction-orchestrator/internal/failure"
	"github.com/af-corp/prediction-orchestrator/internal/types"
)

// ProviderAdapter transforms requests/responses between the canonical chat format
// and a vendor's API. Vendor quirks stay inside the adapter.
type ProviderAdapter interface {
	Name() string
	TransformRequest(ctx context.Context, req *types.CompletionRequest) (*http.Request, error)
	// TransformResponse consumes and closes resp.Body. A non-2xx status is returned
	// as *failure.StatusError and a 2xx without content as failure.ErrEmptyResponse.
	TransformResponse(ctx context.Context, resp *http.Response) (*types.Completion, error)
	// SendRequest sends an HTTP request using the provider's configured client.
	SendRequest(req *http.Request) (*http.Response, error)
}

// maxErrorBody bounds how much of an error response we keep.
const maxErrorBody = 2048

func statusError(resp *http.Response, body []byte) *failure.StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &failure.StatusError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// wrapReasoning keeps separately-delivered reasoning in the text the parser sees,
// in the tag form the parser already strips.
func wrapReasoning(reasoning, content string) string {
	if strings.TrimSpace(reasoning) == "" {
		return content
	}
	return "<think>" + reasoning + "</think>" + content
}
