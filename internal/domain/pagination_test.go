package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageTokenRoundTrip(t *testing.T) {
	assert.Equal(t, "", EncodePageToken(0))
	assert.Equal(t, "", EncodePageToken(-5))

	token := EncodePageToken(250)
	assert.NotEmpty(t, token)
	assert.Equal(t, 250, DecodePageToken(token))
}

func TestDecodePageToken_Invalid(t *testing.T) {
	assert.Equal(t, 0, DecodePageToken(""))
	assert.Equal(t, 0, DecodePageToken("not-base64!!"))
	assert.Equal(t, 0, DecodePageToken("aGVsbG8=")) // decodes but not an int
}

func TestNextPageToken(t *testing.T) {
	assert.Equal(t, "", NextPageToken(0, 100, 50), "single page")
	assert.Equal(t, "", NextPageToken(100, 100, 200), "last page")

	token := NextPageToken(0, 100, 150)
	assert.Equal(t, 100, DecodePageToken(token))
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, ClampPageSize(0))
	assert.Equal(t, DefaultPageSize, ClampPageSize(-1))
	assert.Equal(t, 25, ClampPageSize(25))
	assert.Equal(t, MaxPageSize, ClampPageSize(MaxPageSize+1))
}
