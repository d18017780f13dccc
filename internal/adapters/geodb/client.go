// Package geodb queries the GeoDB Cities catalogue on RapidAPI.
package geodb

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

// Config locates the API and authenticates against RapidAPI.
type Config struct {
	BaseURL string
	APIKey  string
	APIHost string
	Timeout time.Duration
}

// Client implements ports.GeoService.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// StatusError is an upstream answer outside 2xx.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s for url: %s", e.Code, http.StatusText(e.Code), e.URL)
}

// Cities lists cities whose name starts with namePrefix.
func (c *Client) Cities(ctx context.Context, namePrefix string) ([]json.RawMessage, error) {
	return c.get(ctx, "cities", namePrefix)
}

// Regions lists the regions of countryCode whose name starts with namePrefix.
func (c *Client) Regions(ctx context.Context, countryCode, namePrefix string) ([]json.RawMessage, error) {
	return c.get(ctx, "countries/"+url.PathEscape(countryCode)+"/regions", namePrefix)
}

func (c *Client) get(ctx context.Context, endpoint, namePrefix string) ([]json.RawMessage, error) {
	u := c.cfg.BaseURL + "/" + endpoint + "?" + url.Values{"namePrefix": {namePrefix}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", c.cfg.APIHost)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, URL: u}
	}

	var body struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geodb response: %w", err)
	}
	if body.Data == nil {
		body.Data = []json.RawMessage{}
	}
	return body.Data, nil
}
