// Package featuregate asks the flag service whether a capability is enabled.
package featuregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/config"
)

// New returns the HTTP client when a flag service URL is configured and the
// static flags from the config otherwise.
func New(cfg *config.Config) (interfaces.FeatureGate, error) {
	if cfg == nil {
		return nil, errors.New("nil dependency: config")
	}
	if cfg.FeatureGate.URL == "" {
		return NewStatic(cfg.FeatureGate.Static), nil
	}
	return NewClient(cfg.FeatureGate.URL, &http.Client{Timeout: cfg.FeatureGate.Timeout})
}

// Static serves flags fixed at startup. Unknown flags are disabled.
type Static struct {
	flags map[string]bool
}

func NewStatic(flags map[string]bool) *Static {
	copied := make(map[string]bool, len(flags))
	for k, v := range flags {
		copied[k] = v
	}
	return &Static{flags: copied}
}

func (s *Static) IsEnabled(_ context.Context, key string) (bool, error) {
	return s.flags[key], nil
}

// Client queries GET {base}/flags/{key}.
type Client struct {
	base   *url.URL
	client *http.Client
}

func NewClient(base string, client *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse feature gate url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{base: u, client: client}, nil
}

type flagResponse struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// IsEnabled returns an error whenever the answer is not definitive, callers
// decide how to fail.
func (c *Client) IsEnabled(ctx context.Context, key string) (bool, error) {
	endpoint := c.base.JoinPath("flags", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return false, fmt.Errorf("build flag request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("flag %s: %w", key, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("flag %s: unexpected status %d", key, res.StatusCode)
	}

	payload := new(flagResponse)
	if err = json.NewDecoder(res.Body).Decode(payload); err != nil {
		return false, fmt.Errorf("flag %s: decode: %w", key, err)
	}

	return payload.Enabled, nil
}
