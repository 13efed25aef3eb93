package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthzMetrics holds metric instruments for authorization decisions.
type AuthzMetrics struct {
	Decisions metric.Int64Counter // Total decisions by scope, role and outcome
}

// NewAuthzMetrics creates metric instruments for the authorization evaluator.
func NewAuthzMetrics() (*AuthzMetrics, error) {
	meter := otel.Meter("societyapi/authz")

	decisions, err := meter.Int64Counter(
		"authz.decision.count",
		metric.WithDescription("Total number of authorization decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}
	return &AuthzMetrics{Decisions: decisions}, nil
}

// RecordDecision records one authorization outcome. Safe on a nil receiver.
func (m *AuthzMetrics) RecordDecision(ctx context.Context, scope, role string, allowed bool) {
	if m == nil {
		return
	}
	m.Decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAuthzScope, scope),
		attribute.String(AttrPrincipalRole, role),
		attribute.Bool(AttrAuthzAllowed, allowed),
	))
}

// AuditMetrics holds metric instruments for the asynchronous audit writer.
type AuditMetrics struct {
	Written  metric.Int64Counter // Entries persisted
	Failures metric.Int64Counter // Entries the store rejected
	Dropped  metric.Int64Counter // Entries dropped because the queue was full
}

// NewAuditMetrics creates metric instruments for the audit writer.
func NewAuditMetrics() (*AuditMetrics, error) {
	meter := otel.Meter("societyapi/audit")

	written, err := meter.Int64Counter(
		"audit.write.count",
		metric.WithDescription("Total number of audit entries persisted"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"audit.write.failure.count",
		metric.WithDescription("Total number of audit entries that failed to persist"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"audit.dropped.count",
		metric.WithDescription("Total number of audit entries dropped on a full queue"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &AuditMetrics{Written: written, Failures: failures, Dropped: dropped}, nil
}

func (m *AuditMetrics) record(ctx context.Context, c metric.Int64Counter, entityType string) {
	if m == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrAuditEntityType, entityType)))
}

// RecordWritten counts a persisted entry. Safe on a nil receiver.
func (m *AuditMetrics) RecordWritten(ctx context.Context, entityType string) {
	if m != nil {
		m.record(ctx, m.Written, entityType)
	}
}

// RecordFailure counts an entry the store rejected. Safe on a nil receiver.
func (m *AuditMetrics) RecordFailure(ctx context.Context, entityType string) {
	if m != nil {
		m.record(ctx, m.Failures, entityType)
	}
}

// RecordDropped counts an entry dropped before reaching the store. Safe on a nil receiver.
func (m *AuditMetrics) RecordDropped(ctx context.Context, entityType string) {
	if m != nil {
		m.record(ctx, m.Dropped, entityType)
	}
}

// AuthMetrics holds metric instruments for authentication operations.
type AuthMetrics struct {
	AuthAttempts metric.Int64Counter // Total auth attempts
	AuthFailures metric.Int64Counter // Failed auth attempts
}

// NewAuthMetrics creates metric instruments for principal resolution.
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("societyapi/auth")

	authAttempts, err := meter.Int64Counter(
		"auth.attempt.count",
		metric.WithDescription("Total number of authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	authFailures, err := meter.Int64Counter(
		"auth.failure.count",
		metric.WithDescription("Total number of failed authentication attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{AuthAttempts: authAttempts, AuthFailures: authFailures}, nil
}

// RecordAuth records an authentication attempt. reason is empty on success. Safe on a nil receiver.
func (a *AuthMetrics) RecordAuth(ctx context.Context, success bool, reason string) {
	if a == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Bool("auth.success", success),
		attribute.String("auth.reason", reason),
	)
	a.AuthAttempts.Add(ctx, 1, attrs)
	if !success {
		a.AuthFailures.Add(ctx, 1, attrs)
	}
}
