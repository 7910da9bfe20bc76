package httpds

import (
	"context"
	"io"
)

// Source is a single URL input.
type Source struct {
	client *Client
	url    string
}

// NewSource binds url to client. A nil client gets default settings.
func NewSource(client *Client, url string) *Source {
	if client == nil {
		client = NewClient(Config{})
	}
	return &Source{client: client, url: url}
}

// Open starts the download.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.client.Get(ctx, s.url)
}

// Name returns the URL.
func (s *Source) Name() string { return s.url }
