package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	LoginAttemptsTotal     metric.Int64Counter
	RegistrationsTotal     metric.Int64Counter
	GateRedirectsTotal     metric.Int64Counter
	AvatarUploadsTotal     metric.Int64Counter
	CityQueriesTotal       metric.Int64Counter
	DbQueryDurationSeconds metric.Float64Histogram
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*AppMetrics, error) {
	var err error
	m := &AppMetrics{}

	if m.LoginAttemptsTotal, err = meter.Int64Counter(
		"login_attempts_total",
		metric.WithDescription("Login attempts by outcome"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("login_attempts_total: %w", err)
	}

	if m.RegistrationsTotal, err = meter.Int64Counter(
		"registrations_total",
		metric.WithDescription("Completed user registrations"),
		metric.WithUnit("{user}"),
	); err != nil {
		return nil, fmt.Errorf("registrations_total: %w", err)
	}

	if m.GateRedirectsTotal, err = meter.Int64Counter(
		"gate_redirects_total",
		metric.WithDescription("Requests redirected to the login page"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("gate_redirects_total: %w", err)
	}

	if m.AvatarUploadsTotal, err = meter.Int64Counter(
		"avatar_uploads_total",
		metric.WithDescription("Avatar uploads by outcome"),
		metric.WithUnit("{upload}"),
	); err != nil {
		return nil, fmt.Errorf("avatar_uploads_total: %w", err)
	}

	if m.CityQueriesTotal, err = meter.Int64Counter(
		"city_queries_total",
		metric.WithDescription("City listing queries by sort key"),
		metric.WithUnit("{query}"),
	); err != nil {
		return nil, fmt.Errorf("city_queries_total: %w", err)
	}

	if m.DbQueryDurationSeconds, err = meter.Float64Histogram(
		"db_query_duration_seconds",
		metric.WithDescription("Duration of database queries in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("db_query_duration_seconds: %w", err)
	}

	return m, nil
}

// RecordGateRedirect satisfies appMiddleware.RedirectRecorder.
func (m *AppMetrics) RecordGateRedirect(ctx context.Context, path string) {
	m.GateRedirectsTotal.Add(ctx, 1)
}

func (m *AppMetrics) RecordLogin(ctx context.Context, success bool) {
	m.LoginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func (m *AppMetrics) RecordRegistration(ctx context.Context) {
	m.RegistrationsTotal.Add(ctx, 1)
}

func (m *AppMetrics) RecordAvatarUpload(ctx context.Context, success bool) {
	m.AvatarUploadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func (m *AppMetrics) RecordCityQuery(ctx context.Context, sortKey string) {
	m.CityQueriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("sort", sortKey)))
}

// ObserveQuery records the time elapsed since start for the named query.
func (m *AppMetrics) ObserveQuery(ctx context.Context, name string, start time.Time) {
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("query", name)))
}
