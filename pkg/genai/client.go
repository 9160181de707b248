package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Invoker opens a generation request and returns the raw response body
// stream, unmodified. Callers own closing the stream; abandonment is
// expressed by closing it. No timeout is imposed here.
type Invoker interface {
	Invoke(ctx context.Context, instruction string, documents []DocumentPayload) (io.ReadCloser, error)
}

// HTTPClient talks the wire protocol to a remote generation endpoint
// (another instance of this service, or the legacy gateway).
type HTTPClient struct {
	Endpoint string
	Client   *http.Client
}

var _ Invoker = &HTTPClient{}

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{
		Endpoint: endpoint,
		// No client timeout. The caller controls abandonment by closing the
		// returned body; a per-request deadline would kill slow streams.
		Client: &http.Client{},
	}
}

func (c *HTTPClient) Invoke(ctx context.Context, instruction string, documents []DocumentPayload) (io.ReadCloser, error) {
	payload := Request{
		Message:  instruction,
		PDFFiles: documents,
	}
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		resBody, _ := io.ReadAll(io.LimitReader(res.Body, 8*1024))
		res.Body.Close()
		return nil, &BackendRejectedError{Status: res.StatusCode, Body: string(resBody)}
	}

	return res.Body, nil
}
