package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxLimit is the largest page size a listing will return
	MaxLimit = 500
	// MaxTagLength is the longest tag, in runes, that can be stored
	MaxTagLength = 100
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	// ErrInvalidPagination is returned for a negative skip or a non-positive limit
	ErrInvalidPagination = errors.New("invalid pagination")
	// ErrTagTooLong is returned when a tag to be stored exceeds MaxTagLength
	ErrTagTooLong = errors.New("tag too long")
)

// PageRequest is the skip/limit window of a listing call
type PageRequest struct {
	Skip  int `validate:"gte=0"`
	Limit int `validate:"gt=0"`
}

func init() {
	Validate = validator.New()
}

// ValidatePage checks a skip/limit pair and returns the limit clamped to MaxLimit.
func ValidatePage(skip, limit int) (int, error) {
	if err := Validate.Struct(PageRequest{Skip: skip, Limit: limit}); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return 0, fmt.Errorf("%w: %s must be %s %s", ErrInvalidPagination,
				strings.ToLower(validationErrors[0].Field()), validationErrors[0].Tag(), validationErrors[0].Param())
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidPagination, err)
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit, nil
}

// SanitizeText trims whitespace and removes control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// NormalizeTag lowercases and sanitizes a tag. The result may be empty.
// Length is never changed; distinct long tags stay distinct.
func NormalizeTag(tag string) string {
	return strings.ToLower(SanitizeText(tag))
}

// ValidateTags rejects normalized tags longer than MaxTagLength
func ValidateTags(tags []string) error {
	for _, tag := range tags {
		if n := utf8.RuneCountInString(tag); n > MaxTagLength {
			return fmt.Errorf("%w: %d runes, max %d", ErrTagTooLong, n, MaxTagLength)
		}
	}
	return nil
}

// NormalizeTags normalizes every tag, dropping empties and duplicates.
// First-seen order is preserved.
func NormalizeTags(tags []string) []string {
	return dedupe(tags, NormalizeTag)
}

// NormalizeVideoIDs trims video ids, dropping empties and duplicates.
// Video ids are opaque platform ids, so case is preserved.
func NormalizeVideoIDs(ids []string) []string {
	return dedupe(ids, SanitizeText)
}

func dedupe(values []string, normalize func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = normalize(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
