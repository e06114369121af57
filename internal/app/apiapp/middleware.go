package apiapp

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/auth"
	ratesvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/rate"
	httperrors "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/errors"
)

func ApplyMiddlewares(r chiRouter, log *zap.Logger) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(log))
}

func AuthMiddleware(authService *authsvc.Service, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authService == nil {
				httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
					Code:    "AUTH_SERVICE_UNAVAILABLE",
					Message: "auth service is unavailable",
				})
				return
			}

			accessToken, ok := extractToken(r)
			if !ok {
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "missing bearer token",
				})
				return
			}

			user, err := authService.Validate(r.Context(), accessToken)
			if err != nil {
				if log != nil {
					log.Debug("auth middleware validation failed", zap.Error(err))
				}
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "invalid access token",
				})
				return
			}

			ctx := authsvc.WithIdentity(r.Context(), authsvc.Identity{
				UserID:  user.ID,
				Email:   user.Email,
				IsAdmin: user.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit throttles an endpoint by client IP. RealIP runs earlier in the
// chain, so RemoteAddr already holds the forwarded address.
func RateLimit(limiter *ratesvc.Limiter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := r.RemoteAddr
			if host, _, err := net.SplitHostPort(key); err == nil {
				key = host
			}

			retryAfter, allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				if log != nil {
					log.Warn("rate limiter unavailable, letting request through", zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
					Code:          "RATE_LIMITED",
					Message:       "too many requests",
					RetryAfterSec: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := authsvc.IdentityFromContext(r.Context())
			if !ok || !identity.IsAdmin {
				httperrors.Write(w, http.StatusForbidden, httperrors.APIError{
					Code:    "FORBIDDEN",
					Message: "admin access required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && strings.TrimSpace(parts[1]) != "" {
			return parts[1], true
		}
	}
	if token := strings.TrimSpace(r.Header.Get("X-Auth-Token")); token != "" {
		return token, true
	}
	return "", false
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
