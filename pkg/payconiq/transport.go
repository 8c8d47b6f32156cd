package payconiq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// call performs one request and decodes the JSON body into out. The returned
// status is 0 when no response was received. Any error means the body could
// not be obtained or decoded.
func (c *Client) call(ctx context.Context, op Operation, method, path string, query url.Values, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("payconiq: marshal %s body: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path, query), body)
	if err != nil {
		return 0, fmt.Errorf("payconiq: build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	c.metrics.ObserveRequestLatency(string(op), elapsed.Seconds())
	if err != nil {
		return 0, fmt.Errorf("payconiq: %s http: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("payconiq: %s read response: %w", op, err)
	}

	c.logger.Debug("payconiq request",
		"operation", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
	)

	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("payconiq: %s decode: %w", op, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	full := strings.TrimRight(c.endpoint, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}

func paymentPath(paymentID string, suffix ...string) string {
	parts := append([]string{"payments", url.PathEscape(paymentID)}, suffix...)
	return "/" + strings.Join(parts, "/")
}

func (c *Client) startSpan(ctx context.Context, op Operation, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "payconiq."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

const (
	outcomeSuccess   = "success"
	outcomeRejected  = "rejected"
	outcomeTransport = "transport_error"
)

func (c *Client) succeed(span trace.Span, op Operation) {
	c.metrics.ObserveOperation(string(op), outcomeSuccess)
	span.SetStatus(codes.Ok, "")
}

func (c *Client) fail(span trace.Span, failure *Error) error {
	outcome := outcomeRejected
	if failure.Err != nil {
		outcome = outcomeTransport
	}
	c.metrics.ObserveOperation(string(failure.Op), outcome)

	span.RecordError(failure)
	span.SetStatus(codes.Error, failure.Error())
	if failure.StatusCode != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", failure.StatusCode))
	}

	c.logger.Warn("payconiq operation failed",
		"operation", failure.Op,
		"message", failure.Message,
		"code", failure.Code,
		"status", failure.StatusCode,
		"error", failure.Err,
	)
	return failure
}
