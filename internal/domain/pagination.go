package domain

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// DefaultPageSize is the default results page size when none is configured.
const DefaultPageSize = 100

// MaxPageSize is the maximum allowed results page size.
const MaxPageSize = 1000

// DecodePageToken converts an opaque page token into an integer row offset.
// Returns 0 if the token is empty or invalid.
func DecodePageToken(token string) int {
	if token == "" {
		return 0
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return 0
	}
	offset, err := strconv.Atoi(string(decoded))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

// EncodePageToken creates an opaque page token from a row offset.
// Returns empty string if the offset is 0 or negative.
func EncodePageToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", offset)))
}

// NextPageToken calculates the token for the page after the current one.
// Returns empty string when the current page exhausts the result set.
func NextPageToken(offset, limit, total int) string {
	next := offset + limit
	if next >= total {
		return ""
	}
	return EncodePageToken(next)
}

// ClampPageSize returns the effective page size, clamped to [1, MaxPageSize].
func ClampPageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
