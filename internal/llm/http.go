package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxLineSize bounds one SSE or NDJSON line
const maxLineSize = 1024 * 1024

// post sends body as JSON and returns the response when the status is 200.
// The caller closes the body.
func (c *client) post(ctx context.Context, url string, headers map[string]string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &APIError{Provider: c.name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}
	return resp, nil
}

// postJSON sends body and decodes the JSON response into out
func (c *client) postJSON(ctx context.Context, url string, headers map[string]string, body, out interface{}) error {
	resp, err := c.post(ctx, url, headers, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// readSSE calls fn with the payload of every "data:" line in r. Comments,
// event names and blank separators are ignored.
func readSSE(r io.Reader, fn func(data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if err := fn(data); err != nil {
			return err
		}
	}
	return scanner.Err()
}
