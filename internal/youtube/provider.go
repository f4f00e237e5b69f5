// Package youtube looks up display metadata for YouTube video ids.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/tagtube/internal/models"
)

var (
	// ErrVideoNotFound is returned when the provider has no such video
	ErrVideoNotFound = errors.New("video not found")
	// ErrRateLimited is returned when the provider or the local limiter refuses the call
	ErrRateLimited = errors.New("metadata provider rate limited")
	// ErrMissingTitle is returned when the provider answers without a title
	ErrMissingTitle = errors.New("metadata has no title")
)

// Provider fetches metadata for a single video id
type Provider interface {
	Lookup(ctx context.Context, videoID string) (*models.Video, error)
}

// APIError is a non-2xx answer from a provider
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("metadata provider returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying later could succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500
}

const maxErrorBody = 512

func newAPIError(status int, body []byte) *APIError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return &APIError{StatusCode: status, Body: text}
}

// complete rejects metadata that must not be stored
func complete(v *models.Video) (*models.Video, error) {
	v.Title = strings.TrimSpace(v.Title)
	if v.Title == "" {
		return nil, fmt.Errorf("video %s: %w", v.ID, ErrMissingTitle)
	}
	return v, nil
}

// WatchURL returns the canonical watch page for a video id
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
