package lancar

import "context"

// NewRequest builds a request for rawURL on the DefaultFactory's client for it.
func NewRequest(rawURL string) (*Request, error) {
	client, err := DefaultFactory().Get(rawURL)
	if err != nil {
		return nil, err
	}
	return client.NewRequest(rawURL)
}

// Get sends a GET to rawURL through the DefaultFactory.
func Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	return req.Get(ctx)
}

// ConfigureClient configures the DefaultFactory's client for rawURL.
func ConfigureClient(rawURL string, fn func(*Client)) error {
	return DefaultFactory().ConfigureClient(rawURL, fn)
}
