// Package catalogapi fetches the song catalog from a remote VibeScape server.
package catalogapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
	"github.com/vibescape/vibescape-backend/internal/version"
)

const (
	// DefaultTimeout for catalog requests
	DefaultTimeout = 10 * time.Second

	// SongsPath is the catalog endpoint relative to the base URL.
	SongsPath = "/api/songs"
)

// Client implements catalog.Provider over HTTP.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid catalog url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid catalog url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch implements catalog.Provider. Relative file and artwork paths are
// resolved against the server URL so sinks can load them directly.
func (c *Client) Fetch(ctx context.Context) ([]catalog.Song, error) {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(SongsPath, "/")})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var songs []catalog.Song
	if err := json.NewDecoder(resp.Body).Decode(&songs); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	for i := range songs {
		songs[i].File = c.resolve(songs[i].File)
		songs[i].Art = c.resolve(songs[i].Art)
		songs[i].ArtistArt = c.resolve(songs[i].ArtistArt)
	}

	log.Debug().Int("songs", len(songs)).Str("url", endpoint.String()).Msg("Fetched remote catalog")
	return songs, nil
}

func (c *Client) resolve(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return c.baseURL.ResolveReference(u).String()
}
