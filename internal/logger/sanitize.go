package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxUserIDLength caps user ids in logs
	MaxUserIDLength = 128
	// MaxVideoIDLength caps video ids in logs (YouTube ids are 11 chars)
	MaxVideoIDLength = 64
	// MaxTagLength caps tags in logs
	MaxTagLength = 100
	// MaxListItems caps how many elements of a list are logged
	MaxListItems = 20
	// MaxPathLength caps URL paths in logs
	MaxPathLength = 500
	// MaxErrorMessageLength caps error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the fallback cap
	MaxGeneralStringLength = 2000
)

// SanitizeString strips control characters, repairs UTF-8 and truncates to
// maxLength bytes on a rune boundary.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' {
			builder.WriteRune(r)
		}
	}
	s = builder.String()

	if len(s) > maxLength {
		cut := maxLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

// SanitizeError sanitizes an error message
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeUserID sanitizes a user id
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// SanitizeVideoID sanitizes a video id
func SanitizeVideoID(videoID string) string {
	return SanitizeString(videoID, MaxVideoIDLength)
}

// SanitizeTag sanitizes a tag
func SanitizeTag(tag string) string {
	return SanitizeString(tag, MaxTagLength)
}

// SanitizePath sanitizes a URL path
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeList sanitizes each element with fn and keeps at most MaxListItems
func SanitizeList(values []string, fn func(string) string) []string {
	n := min(len(values), MaxListItems)
	out := make([]string, 0, n)
	for _, v := range values[:n] {
		out = append(out, fn(v))
	}
	return out
}

// SanitizeVideoIDs sanitizes a list of video ids
func SanitizeVideoIDs(ids []string) []string {
	return SanitizeList(ids, SanitizeVideoID)
}

// SanitizeTags sanitizes a list of tags
func SanitizeTags(tags []string) []string {
	return SanitizeList(tags, SanitizeTag)
}
