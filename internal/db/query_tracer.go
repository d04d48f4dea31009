package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/jackc/pgx/v5"

	"github.com/promoshop/promoshop/internal/observability"
)

type queryTraceContextKey struct{}

type queryTrace struct {
	span      *sentry.Span
	operation string
	table     string
	startedAt time.Time
}

// queryTracer opens a span per statement when the caller is already traced
// and records statement latency on the request meter.
type queryTracer struct {
	now func() time.Time
}

func newQueryTracer() *queryTracer {
	return &queryTracer{now: time.Now}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if sentry.SpanFromContext(ctx) == nil {
		return ctx
	}

	query := normalizeQuery(data.SQL)
	trace := &queryTrace{
		operation: queryOperation(query),
		table:     queryTable(query),
		startedAt: t.now(),
	}
	trace.span = sentry.StartSpan(
		ctx,
		"db.query",
		sentry.WithDescription(query),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	trace.span.SetData("db.system", "postgresql")
	if trace.operation != "" {
		trace.span.SetData("db.operation", trace.operation)
	}
	if trace.table != "" {
		trace.span.SetData("db.collection.name", trace.table)
	}

	return context.WithValue(trace.span.Context(), queryTraceContextKey{}, trace)
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	trace, _ := ctx.Value(queryTraceContextKey{}).(*queryTrace)
	if trace == nil {
		return
	}

	outcome := "ok"
	switch {
	case data.Err == nil:
		trace.span.Status = sentry.SpanStatusOK
	case errors.Is(data.Err, pgx.ErrNoRows):
		// Lookups and compare-and-set updates report misses this way.
		trace.span.Status = sentry.SpanStatusNotFound
		outcome = "no_rows"
	default:
		trace.span.Status = sentry.SpanStatusInternalError
		trace.span.SetData("db.error", data.Err.Error())
		outcome = "error"
	}

	if rowsAffected := data.CommandTag.RowsAffected(); rowsAffected >= 0 {
		trace.span.SetData("db.rows_affected", rowsAffected)
	}
	trace.span.Finish()

	elapsed := t.now().Sub(trace.startedAt)
	observability.MeterFromContext(ctx).Distribution(
		"db.query.duration_ms",
		float64(elapsed.Microseconds())/1000,
		sentry.WithAttributes(
			attribute.String("operation", trace.operation),
			attribute.String("table", trace.table),
			attribute.String("outcome", outcome),
		),
	)
}

func normalizeQuery(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	if normalized == "" {
		return "sql.query"
	}

	const maxLen = 512
	if len(normalized) > maxLen {
		return normalized[:maxLen]
	}
	return normalized
}

func queryOperation(query string) string {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return ""
	}
	return strings.ToUpper(parts[0])
}

// queryTable returns the first table named after FROM, INTO, UPDATE or TABLE.
func queryTable(query string) string {
	parts := strings.Fields(query)
	for i := 0; i < len(parts)-1; i++ {
		switch strings.ToUpper(parts[i]) {
		case "FROM", "INTO", "UPDATE", "TABLE":
		default:
			continue
		}

		j := i + 1
		for j < len(parts) && isTableQualifier(parts[j]) {
			j++
		}
		if j == len(parts) || strings.HasPrefix(parts[j], "(") {
			continue
		}
		return strings.ToLower(strings.Trim(parts[j], `"(;,`))
	}
	return ""
}

func isTableQualifier(word string) bool {
	switch strings.ToUpper(word) {
	case "IF", "NOT", "EXISTS", "ONLY":
		return true
	default:
		return false
	}
}
