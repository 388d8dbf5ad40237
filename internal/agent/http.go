package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/prompt"
)

const (
	// maxErrorBody caps how many characters of an error response end up in
	// messages.
	maxErrorBody = 512
	// maxResponseBody caps how much of a provider response is read.
	maxResponseBody = 32 << 20
)

// postJSON sends payload and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return core.ErrExecution(core.CodeAgentFailed, "request failed").WithCause(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := readLimited(resp.Body, maxResponseBody)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapHTTPError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return core.ErrExecution(core.CodeAgentFailed, "decode response").WithCause(err)
	}
	return nil
}

// readLimited reads r up to limit bytes and fails if more remain.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, core.ErrExecution(core.CodeAgentFailed,
			fmt.Sprintf("response exceeds %d bytes", limit)).WithDetail("limit", limit)
	}
	return data, nil
}

// mapHTTPError converts a provider error response into a DomainError.
func mapHTTPError(status int, body []byte) error {
	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	msg = fmt.Sprintf("provider returned %d: %s", status, msg)

	var err *core.DomainError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		err = core.ErrAuth(msg)
	case status == http.StatusTooManyRequests:
		err = core.ErrRateLimit(msg)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		err = core.ErrTimeout(msg)
	case status >= 500:
		err = core.ErrExecution(core.CodeAgentFailed, msg)
	default:
		err = core.ErrExecution(core.CodeAgentFailed, msg)
		err.Retryable = false
	}
	return err.WithDetail("status", status)
}

// errorMessage extracts error.message from OpenAI and Anthropic error bodies.
func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &detail); err == nil && detail.Message != "" {
			return prompt.Truncate(detail.Message, maxErrorBody)
		}
		var plain string
		if err := json.Unmarshal(envelope.Error, &plain); err == nil && plain != "" {
			return prompt.Truncate(plain, maxErrorBody)
		}
	}
	return prompt.Truncate(strings.ToValidUTF8(strings.TrimSpace(string(body)), "\uFFFD"), maxErrorBody)
}

// errEmptyResponse is returned when a provider answers without text.
var errEmptyResponse = errors.New("provider returned no content")
