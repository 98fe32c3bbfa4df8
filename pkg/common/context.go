package common

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// GetRequestID extracts the request ID chi's RequestID middleware put on ctx
func GetRequestID(ctx context.Context) (string, bool) {
	id := middleware.GetReqID(ctx)
	return id, id != ""
}

// ExtractRequestID returns the request ID of r from its context or headers
func ExtractRequestID(r *http.Request) string {
	if id, ok := GetRequestID(r.Context()); ok {
		return id
	}
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return r.Header.Get("X-Amzn-Trace-Id")
}
