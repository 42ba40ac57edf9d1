package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName     = "github.com/hyperjump/kensaku/internal/solr"
	maxReplyBytes  = 64 << 20
	defaultTimeout = 10 * time.Second
)

// ErrBackend is wrapped by every failed backend request.
var ErrBackend = errors.New("backend request failed")

// BackendError carries the HTTP status and Solr's message of a failed request.
// Status is zero for transport failures.
type BackendError struct {
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", ErrBackend, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrBackend, e.Message)
}

// Is makes errors.Is(err, ErrBackend) hold for every BackendError.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Backend executes a select request.
type Backend interface {
	Select(ctx context.Context, params *Params) (*Reply, error)
}

// Client is a Backend talking to the select handler of one Solr core over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
	tracer   trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout is left as given.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracerProvider sets the provider the client's tracer comes from.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewClient creates a client for <baseURL>/<core>/select.
func NewClient(baseURL, core string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse solr url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("solr url %q must be http or https", baseURL)
	}
	if core != "" {
		u = u.JoinPath(core)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		endpoint: u.JoinPath("select").String(),
		http:     &http.Client{Timeout: timeout},
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the select URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Select posts params to the select handler and decodes the JSON reply.
// Failures are returned as *BackendError and never retried.
func (c *Client) Select(ctx context.Context, params *Params) (*Reply, error) {
	ctx, span := c.tracer.Start(ctx, "solr.select",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("solr.endpoint", c.endpoint),
			attribute.String("solr.q", params.Get(ParamQuery)),
			attribute.Int("solr.params", params.Len()),
		))
	defer span.End()

	wire := params.Clone()
	wire.Set(ParamWriterType, "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(wire.Encode()))
	if err != nil {
		return nil, c.fail(span, &BackendError{Message: err.Error(), Err: err})
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(span, &BackendError{Message: err.Error(), Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, c.fail(span, &BackendError{Status: resp.StatusCode, Message: err.Error(), Err: err})
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(span, &BackendError{Status: resp.StatusCode, Message: errorMessage(body, resp.StatusCode)})
	}

	reply, err := DecodeReply(bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(span, &BackendError{Status: resp.StatusCode, Message: err.Error(), Err: err})
	}
	if reply.Error != nil {
		return nil, c.fail(span, &BackendError{Status: reply.Error.Code, Message: reply.Error.Msg})
	}

	span.SetAttributes(attribute.Int64("solr.qtime", reply.ResponseHeader.QTime))
	c.logger.Debug("solr select",
		zap.String("params", params.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))
	return reply, nil
}

func (c *Client) fail(span trace.Span, err *BackendError) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Message)
	c.logger.Warn("solr request failed", zap.String("endpoint", c.endpoint), zap.Error(err))
	return err
}

// errorMessage extracts error.msg from a Solr error body, falling back to the status text.
func errorMessage(body []byte, status int) string {
	var reply struct {
		Error *ReplyError `json:"error"`
	}
	if err := json.Unmarshal(body, &reply); err == nil && reply.Error != nil && reply.Error.Msg != "" {
		return reply.Error.Msg
	}
	return http.StatusText(status)
}
