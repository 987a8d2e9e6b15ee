package httpclient

import (
	"fmt"
	"net/url"
)

// UpstreamError represents a non-2xx reply from an upstream service
type UpstreamError struct {
	StatusCode int
	Status     string
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: %s from %s", e.Status, e.URL)
}

// redact drops the query string, which may carry credentials.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
