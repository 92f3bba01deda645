package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultGoogleURL is the public endpoint used by the Google Translate web widget
const DefaultGoogleURL = "https://translate.googleapis.com/translate_a/single"

// Google translates through the keyless Google Translate endpoint
type Google struct {
	endpoint   string
	httpClient *http.Client
}

// NewGoogle creates a Google provider. Empty endpoint uses DefaultGoogleURL.
func NewGoogle(endpoint string, timeout time.Duration) *Google {
	if endpoint == "" {
		endpoint = DefaultGoogleURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Google{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *Google) Name() string {
	return ProviderGoogle
}

// Translate sends one request and joins the translated sentences.
func (g *Google) Translate(ctx context.Context, text, source, target string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return parseGoogleResponse(body)
}

// parseGoogleResponse extracts the translated segments from a response like
// [[["Hola mundo","hello world",null,null,10]],null,"en"].
func parseGoogleResponse(body []byte) (string, error) {
	var doc []json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil || len(doc) == 0 {
		return "", fmt.Errorf("unexpected response: %.100s", body)
	}

	var segments [][]any
	if err := json.Unmarshal(doc[0], &segments); err != nil {
		return "", fmt.Errorf("unexpected segments: %w", err)
	}

	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("response carried no translation")
	}
	return b.String(), nil
}
