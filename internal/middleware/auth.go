// Package middleware provides HTTP middleware for the coordinator API:
// worker session authentication and request logging.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/eshanized/ERPCT/pkg/debug"
)

type contextKey string

const workerIDKey contextKey = "worker_id"

// TokenService issues and verifies worker session tokens. A worker
// receives a token at registration and presents it as a bearer token on
// every subsequent call.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service. ttl bounds session lifetime;
// zero means 24 hours.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed session token for a worker.
func (s *TokenService) Issue(workerID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.StandardClaims{
		Subject:   workerID.String(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning the worker ID.
func (s *TokenService) Verify(tokenString string) (uuid.UUID, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid session token")
	}

	workerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid worker ID in token: %w", err)
	}
	return workerID, nil
}

// RequireWorker authenticates the request's bearer token and stores the
// worker ID in the request context.
func (s *TokenService) RequireWorker(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			debug.Warning("Missing bearer token on %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			http.Error(w, "missing authorization", http.StatusUnauthorized)
			return
		}

		workerID, err := s.Verify(token)
		if err != nil {
			debug.Warning("Rejected token on %s %s: %v", r.Method, r.URL.Path, err)
			http.Error(w, "invalid authorization", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), workerIDKey, workerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WorkerID extracts the authenticated worker ID from a request context.
func WorkerID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(workerIDKey).(uuid.UUID)
	return id, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// LogRequests logs every request with method, path and duration.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		debug.Debug("%s %s from %s (%v)", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}
