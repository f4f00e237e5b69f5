package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/tagtube/internal/models"
)

const (
	defaultOEmbedEndpoint = "https://www.youtube.com/oembed"
	defaultHTTPTimeout    = 10 * time.Second
	userAgent             = "tagtube/1.0"
)

// OEmbedClient resolves metadata through the public oEmbed endpoint. It needs
// no credentials.
type OEmbedClient struct {
	http     *http.Client
	endpoint string
	logger   *zap.Logger
}

// OEmbedOption configures an OEmbedClient
type OEmbedOption func(*OEmbedClient)

// WithOEmbedEndpoint points the client at another oEmbed endpoint
func WithOEmbedEndpoint(endpoint string) OEmbedOption {
	return func(c *OEmbedClient) { c.endpoint = endpoint }
}

// WithOEmbedHTTPClient replaces the HTTP client
func WithOEmbedHTTPClient(client *http.Client) OEmbedOption {
	return func(c *OEmbedClient) { c.http = client }
}

// NewOEmbedClient creates an oEmbed metadata provider
func NewOEmbedClient(logger *zap.Logger, opts ...OEmbedOption) *OEmbedClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &OEmbedClient{
		http:     &http.Client{Timeout: defaultHTTPTimeout},
		endpoint: defaultOEmbedEndpoint,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Lookup fetches metadata for one video
func (c *OEmbedClient) Lookup(ctx context.Context, videoID string) (*models.Video, error) {
	query := url.Values{}
	query.Set("url", WatchURL(videoID))
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create oembed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call oembed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read oembed response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized:
		// oEmbed answers 401 for private videos and 400 for malformed ids
		return nil, fmt.Errorf("video %s: %w", videoID, ErrVideoNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, newAPIError(resp.StatusCode, body)
	}

	var payload oembedResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode oembed response: %w", err)
	}

	c.logger.Debug("oembed_lookup_completed", zap.String("video_id", videoID))

	return complete(&models.Video{
		ID:           videoID,
		Title:        payload.Title,
		Author:       payload.AuthorName,
		AuthorURL:    payload.AuthorURL,
		ThumbnailURL: payload.ThumbnailURL,
	})
}

var _ Provider = (*OEmbedClient)(nil)
