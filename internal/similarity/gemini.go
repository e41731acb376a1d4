package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/civicpulse/backend/internal/models"
)

// ErrUnavailable signals that the classifier could not produce a response
// within the timeout and retry budget. The caller decides what that means;
// this adapter never substitutes a verdict of its own.
var ErrUnavailable = errors.New("similarity classifier unavailable")

// GeminiClassifier speaks the generateContent REST surface. One retry on
// transient failure (network error, 5xx, 429), bounded by Timeout and by the
// caller's context, whichever is tighter.
type GeminiClassifier struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Limiter *rate.Limiter
	Client  *http.Client
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiClassifier) Classify(ctx context.Context, description string, candidates []models.NearbyIssue) (string, error) {
	if strings.TrimSpace(g.BaseURL) == "" {
		return "", fmt.Errorf("%w: base URL is not set", ErrUnavailable)
	}
	if g.Limiter != nil {
		if err := g.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}

	body, _ := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: BuildPrompt(description, candidates)}}}},
	})

	raw, err := g.doOnce(ctx, timeout, body)
	if err == nil {
		return raw, nil
	}
	if !isTransient(err) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	raw, retryErr := g.doOnce(ctx, timeout, body)
	if retryErr != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, retryErr)
	}
	return raw, nil
}

func (g *GeminiClassifier) doOnce(ctx context.Context, timeout time.Duration, body []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := g.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(g.BaseURL, "/"), model)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(g.APIKey) != "" {
		req.Header.Set("x-goog-api-key", g.APIKey)
	}

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return "", &httpStatusError{status: resp.StatusCode, body: errBody}
	}

	var r geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty classifier response")
	}
	return r.Candidates[0].Content.Parts[0].Text, nil
}

type httpStatusError struct {
	status int
	body   map[string]any
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("classifier http status %d", e.status)
}

func isTransient(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status >= 500 || statusErr.status == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
