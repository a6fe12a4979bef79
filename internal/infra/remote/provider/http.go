package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/flagfetch/internal/core/domain"
)

const (
	// DefaultServerURL is the public remote evaluation endpoint.
	DefaultServerURL = "https://api.lab.amplitude.com"

	vardataPath = "/sdk/v2/vardata?v=0"

	// Error bodies are only kept for diagnostics.
	maxErrorBody = 4 << 10
)

// Config holds HTTP provider settings.
type Config struct {
	ServerURL string
	APIKey    string

	// HTTPClient overrides the default client. Deadlines come from the
	// request context, so the client should not set its own Timeout.
	HTTPClient *http.Client
}

// HTTPProvider fetches variants from the remote evaluation service over HTTP.
type HTTPProvider struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPProvider creates a new HTTP-based provider.
func NewHTTPProvider(cfg Config) *HTTPProvider {
	serverURL := strings.TrimSuffix(cfg.ServerURL, "/")
	if serverURL == "" {
		serverURL = DefaultServerURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &HTTPProvider{
		endpoint:   serverURL + vardataPath,
		apiKey:     cfg.APIKey,
		httpClient: client,
	}
}

// Fetch makes a single remote evaluation call.
func (p *HTTPProvider) Fetch(
	ctx context.Context,
	user *domain.User,
	opts *domain.FetchOptions,
) (domain.Variants, error) {
	if user == nil {
		return nil, domain.ErrInvalidSubject
	}

	jsonData, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if err := p.setHeaders(ctx, req, opts); err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch variants: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var variants domain.Variants
	if err := json.NewDecoder(resp.Body).Decode(&variants); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if variants == nil {
		variants = domain.Variants{}
	}

	return variants, nil
}

func (p *HTTPProvider) setHeaders(ctx context.Context, req *http.Request, opts *domain.FetchOptions) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+p.apiKey)

	if id := RequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	if opts == nil {
		return nil
	}

	if len(opts.FlagKeys) > 0 {
		keys, err := json.Marshal(opts.FlagKeys)
		if err != nil {
			return fmt.Errorf("marshal flag keys: %w", err)
		}
		req.Header.Set("X-Amp-Exp-Flag-Keys", base64.StdEncoding.EncodeToString(keys))
	}
	if opts.TracksAssignment != nil {
		req.Header.Set("X-Amp-Exp-Track", trackValue(*opts.TracksAssignment))
	}
	if opts.TracksExposure != nil {
		req.Header.Set("X-Amp-Exp-Exposure-Track", trackValue(*opts.TracksExposure))
	}

	return nil
}

func trackValue(track bool) string {
	if track {
		return "track"
	}
	return "no-track"
}
