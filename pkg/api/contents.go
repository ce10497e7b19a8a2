package api

import (
	"context"
	"encoding/base64"

	"github.com/vanderheijden86/repoview/pkg/model"
)

// Contents adapts a RawFetcher to the content/base64 contract the browser
// engine consumes.
type Contents struct {
	raw RawFetcher
}

// NewContents wraps raw.
func NewContents(raw RawFetcher) *Contents {
	return &Contents{raw: raw}
}

// GetContent fetches and decodes the document at url.
func (c *Contents) GetContent(ctx context.Context, url string) (model.Payload, error) {
	body, err := c.raw.Fetch(ctx, url)
	if err != nil {
		return model.Payload{}, err
	}
	return DecodePayload(body)
}

// GetBase64Content fetches rawURL and returns its body base64-encoded.
func (c *Contents) GetBase64Content(ctx context.Context, rawURL string) (string, error) {
	body, err := c.raw.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(body), nil
}
