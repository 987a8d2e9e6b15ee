package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxLineSize bounds a single buffered stream line.
const maxLineSize = 1 << 20

// HTTPClient defines the interface for an HTTP client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns a client suited to long-lived streams: no overall timeout, only a
// bound on how long upstream may take to send headers.
func New(responseHeaderTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = responseHeaderTimeout
	return &http.Client{Transport: transport}
}

// SendRequest handles the common logic of creating a request, sending it, and checking the status code.
func SendRequest(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body interface{}, response interface{}) error {
	resp, err := do(ctx, client, method, url, headers, body, "application/json")
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// OpenStream sends the request and hands back the live body once upstream
// answered 2xx. The caller owns the returned body. Accept defaults to
// text/event-stream; an Accept entry in headers replaces it.
func OpenStream(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body interface{}) (io.ReadCloser, error) {
	resp, err := do(ctx, client, method, url, headers, body, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func do(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body interface{}, accept string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", redact(url), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() {
			_ = resp.Body.Close()
		}()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       respBody,
			URL:        redact(url),
		}
	}

	return resp, nil
}

type LineProcessor func(line string) error

// ErrStop may be returned by a LineProcessor to end scanning without error.
var ErrStop = errors.New("stop scanning")

// ScanLines feeds every non-empty line of r to processLine. Partial lines are
// buffered across reads until their terminator arrives.
func ScanLines(ctx context.Context, r io.Reader, processLine LineProcessor) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		if err := processLine(line); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}
