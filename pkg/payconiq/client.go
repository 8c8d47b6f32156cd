// Package payconiq is a client for the Payconiq merchant payments API (v3).
//
// A Client holds an API key and a base endpoint. Both can be changed after
// construction with the fluent setters. The setters are not synchronized: a
// Client with a fixed configuration may be shared between goroutines, but it
// must not be reconfigured while calls are in flight.
package payconiq

import (
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/payconiq-go/pkg/logging"
)

// Environment selects one of the well-known Payconiq endpoints.
type Environment string

const (
	EnvironmentProd Environment = "prod"
	EnvironmentExt  Environment = "ext"
)

const (
	ProdEndpoint = "https://api.payconiq.com/v3"
	ExtEndpoint  = "https://api.ext.payconiq.com/v3"

	// ConnectTimeout bounds dialing the API host.
	ConnectTimeout = 20 * time.Second
	// RequestTimeout bounds a whole request, body included.
	RequestTimeout = 20 * time.Second

	// DefaultCurrency is used when a request leaves the currency empty.
	DefaultCurrency = "EUR"
	// DefaultSearchPageSize is used by GetPaymentsListByDateRange when size <= 0.
	DefaultSearchPageSize = 50
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Metrics receives per-operation instrumentation. Outcomes are "success",
// "rejected" (the response lacked the required field) and "transport_error".
type Metrics interface {
	ObserveOperation(operation, outcome string)
	ObserveRequestLatency(operation string, seconds float64)
	ObserveSearchPage()
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string) {}

func (noopMetrics) ObserveRequestLatency(string, float64) {}

func (noopMetrics) ObserveSearchPage() {}

// Client issues authenticated requests against the Payconiq API.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient Doer
	logger     *logging.Logger
	metrics    Metrics
	tracer     trace.Tracer
}

// New creates a Client for the given environment. Anything other than
// EnvironmentProd selects the external (test) endpoint. The client logs
// nothing until WithLogger is called.
func New(apiKey string, env Environment) *Client {
	return &Client{
		apiKey:     apiKey,
		endpoint:   EndpointFor(env),
		httpClient: newHTTPClient(),
		logger:     logging.Discard(),
		metrics:    noopMetrics{},
		tracer:     otel.Tracer("payconiq.pkg.payconiq"),
	}
}

// EndpointFor returns the base URL of an environment.
func EndpointFor(env Environment) string {
	if env == EnvironmentProd {
		return ProdEndpoint
	}
	return ExtEndpoint
}

func newHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: ConnectTimeout}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	return &http.Client{
		Timeout:   RequestTimeout,
		Transport: transport,
	}
}

// SetAPIKey replaces the bearer credential.
func (c *Client) SetAPIKey(apiKey string) *Client {
	c.apiKey = apiKey
	return c
}

// SetEndpoint overrides the base URL, e.g. to point at a proxy or a fake.
func (c *Client) SetEndpoint(url string) *Client {
	c.endpoint = strings.TrimRight(url, "/")
	return c
}

// SetEndpointTest switches to the external (test) endpoint.
func (c *Client) SetEndpointTest() *Client {
	c.endpoint = ExtEndpoint
	return c
}

// WithHTTPClient swaps the transport. A nil doer is ignored.
func (c *Client) WithHTTPClient(doer Doer) *Client {
	if doer != nil {
		c.httpClient = doer
	}
	return c
}

// WithLogger sets the logger. A nil logger is ignored.
func (c *Client) WithLogger(logger *logging.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithMetrics enables instrumentation. A nil value is ignored.
func (c *Client) WithMetrics(m Metrics) *Client {
	if m != nil {
		c.metrics = m
	}
	return c
}

// APIKey returns the configured bearer credential.
func (c *Client) APIKey() string {
	return c.apiKey
}

// Endpoint returns the configured base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}
