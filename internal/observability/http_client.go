package observability

import (
	"net/http"
	"time"

	sentryhttpclient "github.com/getsentry/sentry-go/httpclient"
)

func WrapRoundTripper(base http.RoundTripper, propagationTargets ...string) http.RoundTripper {
	return sentryhttpclient.NewSentryRoundTripper(
		base,
		sentryhttpclient.WithTracePropagationTargets(propagationTargets),
	)
}

// NewHTTPClient returns a traced client. Trace headers are only sent to the
// listed hosts.
func NewHTTPClient(timeout time.Duration, propagationTargets ...string) *http.Client {
	client := &http.Client{
		Transport: WrapRoundTripper(http.DefaultTransport, propagationTargets...),
	}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}
