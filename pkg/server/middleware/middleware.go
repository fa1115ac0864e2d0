package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const requesterHeader = "X-Requester-ID"

// Chain applies middlewares so that the first one is the outermost.
type Chain []func(http.Handler) http.Handler

func (c Chain) Then(h http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		h = c[i](h)
	}
	return h
}

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				slog.Error("panic caught",
					slog.String("method", r.Method),
					slog.String("request_uri", r.URL.RequestURI()),
					slog.String("requester", r.Header.Get(requesterHeader)),
					slog.Any("panic", p),
					slog.String("stacktrace", string(debug.Stack())),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"code":"internal","detail":"Internal Server Error"}` + "\n"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter

	status  int
	written int
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.status = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !slog.Default().Enabled(r.Context(), slog.LevelDebug) {
			next.ServeHTTP(w, r)
			return
		}

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		now := time.Now()

		next.ServeHTTP(rw, r)

		slog.Debug("request served",
			slog.Duration("delay", time.Since(now)),
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()),
			slog.String("requester", r.Header.Get(requesterHeader)),
			slog.Int("status", rw.status),
			slog.Int("response_length", rw.written),
		)
	})
}

var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Trace starts a server span per request, continuing the caller's trace if it sent one.
func Trace(next http.Handler) http.Handler {
	tracer := otel.Tracer("github.com/IlyushaZ/court-booking/pkg/server")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		setStatus(span, r, rw.status)
	})
}

func setStatus(span trace.Span, r *http.Request, status int) {
	span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.String("http.method", r.Method),
		attribute.String("http.target", r.URL.Path),
	)
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}
