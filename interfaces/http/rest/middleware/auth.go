package middleware

import (
	"net"
	"net/http"
	"strings"

	"killrvideo/pkg/auth"
	"killrvideo/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Authenticate requires a valid bearer token and puts the caller into the
// request context. With a nil token manager authentication is disabled and
// every request passes through anonymously.
func Authenticate(tokens *auth.TokenManager, errorHandler *errors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokens == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				errorHandler.Handle(w, r, errors.NewUnauthorizedError("missing authorization header"))
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("ip", clientIP(r)),
					zap.String("path", r.URL.Path),
				)
				message := "invalid token"
				switch err {
				case auth.ErrExpiredToken:
					message = "token has expired"
				case auth.ErrInvalidSignature:
					message = "invalid token signature"
				}
				errorHandler.Handle(w, r, errors.NewUnauthorizedError(message))
				return
			}

			// ValidateToken guarantees the subject is a uuid
			userID, _ := uuid.Parse(claims.UserID())
			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: userID,
				Email:  claims.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit rejects clients that exceed limiter. Limiter errors let the
// request through.
func RateLimit(limiter auth.RateLimiter, errorHandler *errors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if user, ok := auth.GetUserFromContext(r.Context()); ok {
				key = "user:" + user.UserID.String()
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Error("Rate limiter error", zap.Error(err))
			} else if !allowed {
				errorHandler.Handle(w, r, errors.NewRateLimitError("rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
