package handlers

import (
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/gorilla/mux"

	"github.com/promoshop/promoshop/internal/observability"
)

// MetricsContext adds a request-scoped meter to the context, pre-attributed
// with the request and the order domain values found in the route.
func (h *Handlers) MetricsContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		meter := sentry.NewMeter(ctx).WithCtx(ctx)
		meter.SetAttributes(append(requestAttributes(r), orderAttributes(r)...)...)

		ctx = observability.WithMeter(ctx, meter)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestAttributes(r *http.Request) []attribute.Builder {
	attrs := []attribute.Builder{
		attribute.String("http.request_id", requestIDFromRequest(r)),
		attribute.String("http.method", r.Method),
		attribute.String("network.client.ip", clientIP(r)),
		attribute.String("surface", surfaceLabel(r.URL.Path)),
	}
	if route := routeLabel(r); route != "" {
		attrs = append(attrs, attribute.String("http.route", route))
	}
	if userAgent := strings.TrimSpace(r.UserAgent()); userAgent != "" {
		attrs = append(attrs, attribute.String("http.user_agent", userAgent))
	}
	if r.ContentLength >= 0 {
		attrs = append(attrs, attribute.Int64("http.request_content_length", r.ContentLength))
	}
	return attrs
}

func orderAttributes(r *http.Request) []attribute.Builder {
	vars := mux.Vars(r)
	var attrs []attribute.Builder

	if orderID := strings.TrimSpace(vars["id"]); orderID != "" {
		attrs = append(attrs, attribute.String("order.id", orderID))
	}
	if slug := strings.TrimSpace(vars["slug"]); slug != "" {
		attrs = append(attrs, attribute.String("campaign.slug", strings.ToLower(slug)))
	}
	if format := vars["format"]; format != "" {
		attrs = append(attrs, attribute.String("export.format", format))
	}
	if status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))); status != "" {
		attrs = append(attrs, attribute.String("filter.status", status))
	}
	if r.Method == http.MethodPost {
		idempotent := strings.TrimSpace(r.Header.Get("Idempotency-Key")) != ""
		attrs = append(attrs, attribute.Bool("order.idempotent", idempotent))
	}
	return attrs
}
