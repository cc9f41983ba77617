// Package trace - HTTP middleware for trace extraction.
package trace

import "net/http"

// Header names for trace propagation.
const (
	TraceIDKey = "x-trace-id"
	SpanIDKey  = "x-span-id"
)

// Middleware extracts or creates trace context for HTTP requests.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := Context{
			TraceID:      r.Header.Get(TraceIDKey),
			ParentSpanID: r.Header.Get(SpanIDKey),
			SpanID:       generateSpanID(),
		}
		if tc.TraceID == "" {
			tc.TraceID = generateTraceID()
		}
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}
