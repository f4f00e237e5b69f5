package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/benvon/tagtube/internal/models"
)

const (
	defaultDataAPIEndpoint = "https://www.googleapis.com/youtube/v3/videos"
	googleAuthURL          = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL         = "https://oauth2.googleapis.com/token"
	youtubeReadonlyScope   = "https://www.googleapis.com/auth/youtube.readonly"
	channelURLPrefix       = "https://www.youtube.com/channel/"
)

// OAuthCredentials authorize Data API calls with a long-lived refresh token
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// TokenURL overrides the Google token endpoint when set
	TokenURL string
}

// DataAPIConfig configures a DataAPIClient. Either APIKey or OAuth must be set.
type DataAPIConfig struct {
	APIKey   string
	OAuth    *OAuthCredentials
	Endpoint string
	// HTTPClient is the base transport. Under OAuth it is used both for the
	// token exchange and as the base of the authorized client.
	HTTPClient *http.Client
}

// DataAPIClient resolves metadata through the YouTube Data API v3
type DataAPIClient struct {
	http     *http.Client
	endpoint string
	apiKey   string
	logger   *zap.Logger
}

// NewDataAPIClient creates a Data API metadata provider
func NewDataAPIClient(cfg DataAPIConfig, logger *zap.Logger) (*DataAPIClient, error) {
	if cfg.APIKey == "" && cfg.OAuth == nil {
		return nil, fmt.Errorf("data api requires an api key or oauth credentials")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: defaultHTTPTimeout}
	}

	client := base
	if cfg.OAuth != nil {
		if cfg.OAuth.ClientID == "" || cfg.OAuth.RefreshToken == "" {
			return nil, fmt.Errorf("oauth client id and refresh token are required")
		}
		tokenURL := cfg.OAuth.TokenURL
		if tokenURL == "" {
			tokenURL = googleTokenURL
		}
		oauthConfig := &oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  googleAuthURL,
				TokenURL: tokenURL,
			},
			Scopes: []string{youtubeReadonlyScope},
		}
		// The token source lives for the client's lifetime, not a request's.
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		tokens := oauthConfig.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: cfg.OAuth.RefreshToken})
		client = oauth2.NewClient(tokenCtx, tokens)
		client.Timeout = base.Timeout
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultDataAPIEndpoint
	}

	return &DataAPIClient{
		http:     client,
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		logger:   logger,
	}, nil
}

type dataAPIThumbnail struct {
	URL string `json:"url"`
}

type dataAPIResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string                      `json:"title"`
			ChannelID    string                      `json:"channelId"`
			ChannelTitle string                      `json:"channelTitle"`
			Thumbnails   map[string]dataAPIThumbnail `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type dataAPIError struct {
	Error struct {
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Lookup fetches metadata for one video
func (c *DataAPIClient) Lookup(ctx context.Context, videoID string) (*models.Video, error) {
	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("id", videoID)
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create data api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("failed to refresh data api token: %w", err)
		}
		return nil, fmt.Errorf("failed to call data api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read data api response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusForbidden:
		if quotaExhausted(body) {
			return nil, ErrRateLimited
		}
		return nil, newAPIError(resp.StatusCode, body)
	case http.StatusNotFound:
		return nil, fmt.Errorf("video %s: %w", videoID, ErrVideoNotFound)
	default:
		return nil, newAPIError(resp.StatusCode, body)
	}

	var payload dataAPIResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode data api response: %w", err)
	}
	if len(payload.Items) == 0 {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrVideoNotFound)
	}

	snippet := payload.Items[0].Snippet
	video := &models.Video{
		ID:           videoID,
		Title:        snippet.Title,
		Author:       snippet.ChannelTitle,
		ThumbnailURL: bestThumbnail(snippet.Thumbnails),
	}
	if snippet.ChannelID != "" {
		video.AuthorURL = channelURLPrefix + snippet.ChannelID
	}

	c.logger.Debug("data_api_lookup_completed", zap.String("video_id", videoID))

	return complete(video)
}

func quotaExhausted(body []byte) bool {
	var apiErr dataAPIError
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&apiErr); err != nil {
		return false
	}
	for _, e := range apiErr.Error.Errors {
		switch e.Reason {
		case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return false
}

// bestThumbnail prefers the larger renditions
func bestThumbnail(thumbs map[string]dataAPIThumbnail) string {
	for _, size := range []string{"high", "medium", "standard", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

var _ Provider = (*DataAPIClient)(nil)
