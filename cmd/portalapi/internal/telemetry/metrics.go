package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Meter names. Instruments are taken from the global MeterProvider, which is a
// no-op until an SDK provider is installed.
const (
	httpMeterName = "portalapi/http"
	dbMeterName   = "portalapi/database"
	authMeterName = "portalapi/auth"
)

// Metric attribute keys.
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"

	AttrDBOperation = "db.operation"

	AttrSessionOutcome      = "auth.session.outcome"
	AttrLoginOutcome        = "auth.login.outcome"
	AttrProvisioningOutcome = "iam.provisioning.outcome"
	AttrReviewApproved      = "iam.review.approved"
)

var (
	latencyBucketsMs = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	queryBucketsMs   = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000}
)

// instruments accumulates the first error while creating instruments from one meter.
type instruments struct {
	meter metric.Meter
	err   error
}

func (i *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := i.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	i.keep(err)
	return c
}

func (i *instruments) upDown(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := i.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	i.keep(err)
	return c
}

func (i *instruments) histogramMs(name, desc string, buckets []float64) metric.Float64Histogram {
	h, err := i.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	i.keep(err)
	return h
}

func (i *instruments) keep(err error) {
	if i.err == nil {
		i.err = err
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// ServerMetrics holds the HTTP server instruments.
// A nil *ServerMetrics is valid and records nothing.
type ServerMetrics struct {
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	connections metric.Int64UpDownCounter
	errors      metric.Int64Counter
}

// NewServerMetrics creates the HTTP server instruments.
func NewServerMetrics() (*ServerMetrics, error) {
	in := &instruments{meter: otel.Meter(httpMeterName)}
	m := &ServerMetrics{
		requests:    in.counter("http.server.request.count", "Total number of HTTP requests", "{request}"),
		duration:    in.histogramMs("http.server.request.duration", "HTTP request duration", latencyBucketsMs),
		connections: in.upDown("http.server.active_connections", "Number of open HTTP connections", "{connection}"),
		errors:      in.counter("http.server.error.count", "Total number of 5xx responses", "{error}"),
	}
	if in.err != nil {
		return nil, in.err
	}
	return m, nil
}

// RecordRequest records one served request. route is the chi route pattern.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.String(AttrHTTPStatusCode, strconv.Itoa(status)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, millis(elapsed), attrs)
	if status >= 500 {
		m.errors.Add(ctx, 1, attrs)
	}
}

// ConnectionOpened is called from http.Server.ConnState on StateNew.
func (m *ServerMetrics) ConnectionOpened(ctx context.Context) {
	if m != nil {
		m.connections.Add(ctx, 1)
	}
}

// ConnectionClosed is called from http.Server.ConnState on StateClosed or StateHijacked.
func (m *ServerMetrics) ConnectionClosed(ctx context.Context) {
	if m != nil {
		m.connections.Add(ctx, -1)
	}
}

// DatabaseMetrics holds the query instruments fed by QueryHook.
type DatabaseMetrics struct {
	queries  metric.Int64Counter
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

// NewDatabaseMetrics creates the database instruments.
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	in := &instruments{meter: otel.Meter(dbMeterName)}
	d := &DatabaseMetrics{
		queries:  in.counter("db.query.count", "Total number of database queries", "{query}"),
		duration: in.histogramMs("db.query.duration", "Database query duration", queryBucketsMs),
		failures: in.counter("db.query.error.count", "Total number of failed database queries", "{error}"),
	}
	if in.err != nil {
		return nil, in.err
	}
	return d, nil
}

// RecordQuery records a statement by its operation (SELECT, INSERT, ...).
func (d *DatabaseMetrics) RecordQuery(ctx context.Context, operation string, elapsed time.Duration, err error) {
	if d == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrDBOperation, operation))
	d.queries.Add(ctx, 1, attrs)
	d.duration.Record(ctx, millis(elapsed), attrs)
	if err != nil {
		d.failures.Add(ctx, 1, attrs)
	}
}

// AuthMetrics holds instruments for session lookups, the IdP handshake,
// provisioning and the role workflow. A nil *AuthMetrics is valid and records nothing.
type AuthMetrics struct {
	sessionLookups  metric.Int64Counter
	sessionDuration metric.Float64Histogram
	logins          metric.Int64Counter
	provisionings   metric.Int64Counter
	reviews         metric.Int64Counter
}

// NewAuthMetrics creates the authentication instruments.
func NewAuthMetrics() (*AuthMetrics, error) {
	in := &instruments{meter: otel.Meter(authMeterName)}
	a := &AuthMetrics{
		sessionLookups:  in.counter("auth.session.lookup.count", "Session cookie lookups by outcome", "{lookup}"),
		sessionDuration: in.histogramMs("auth.session.lookup.duration", "Session cookie lookup duration", latencyBucketsMs[:8]),
		logins:          in.counter("auth.login.count", "IdP handshake steps by outcome", "{login}"),
		provisionings:   in.counter("iam.provisioning.count", "Account provisioning calls by outcome", "{call}"),
		reviews:         in.counter("iam.role_request.review.count", "Resolved role change requests", "{review}"),
	}
	if in.err != nil {
		return nil, in.err
	}
	return a, nil
}

// RecordSessionLookup records a session cookie resolution. outcome is one of
// "active", "renewed", "unknown", "rejected" or "error".
func (a *AuthMetrics) RecordSessionLookup(ctx context.Context, outcome string, elapsed time.Duration) {
	if a == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrSessionOutcome, outcome))
	a.sessionLookups.Add(ctx, 1, attrs)
	a.sessionDuration.Record(ctx, millis(elapsed), attrs)
}

// RecordLogin records a handshake step: "challenged", "established", "logout" or a failure kind.
func (a *AuthMetrics) RecordLogin(ctx context.Context, outcome string) {
	if a == nil {
		return
	}
	a.logins.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrLoginOutcome, outcome)))
}

// RecordProvisioning records one EnsureAccount call. outcome is "created", "existing" or "error".
func (a *AuthMetrics) RecordProvisioning(ctx context.Context, outcome string) {
	if a == nil {
		return
	}
	a.provisionings.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrProvisioningOutcome, outcome)))
}

// RecordReview records a resolved role change request.
func (a *AuthMetrics) RecordReview(ctx context.Context, approved bool) {
	if a == nil {
		return
	}
	a.reviews.Add(ctx, 1, metric.WithAttributes(attribute.Bool(AttrReviewApproved, approved)))
}
