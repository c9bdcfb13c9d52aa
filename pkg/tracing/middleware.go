package tracing

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Middleware instruments inbound requests. Spans are named after the method
// and the first path segment so that arbitrary static paths do not explode
// span cardinality.
func Middleware(next http.Handler) http.Handler {
	tagged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			trace.SpanFromContext(r.Context()).SetAttributes(AttrRequestID.String(id))
		}
		next.ServeHTTP(w, r)
	})

	return otelhttp.NewHandler(tagged, "swa",
		otelhttp.WithPropagators(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		)),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + spanPath(r.URL.Path)
		}),
	)
}

// Client returns an HTTP client with tracing instrumentation.
func Client(base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}

	return &http.Client{
		Transport:     otelhttp.NewTransport(transportOrDefault(base.Transport)),
		Timeout:       base.Timeout,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
	}
}

// RoundTripper returns an http.RoundTripper with tracing instrumentation.
func RoundTripper(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(transportOrDefault(base))
}

func transportOrDefault(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}

// spanPath keeps "/.auth/<segment>" and "/<segment>" only.
func spanPath(p string) string {
	if len(p) < 2 {
		return "/"
	}
	seg := 1
	if len(p) >= 6 && p[:6] == "/.auth" {
		seg = 2
	}
	n := 0
	for i := 1; i < len(p); i++ {
		if p[i] == '/' {
			n++
			if n == seg {
				return p[:i]
			}
		}
	}
	return p
}
