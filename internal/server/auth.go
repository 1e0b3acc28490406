package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"agenda/internal/logger"
)

var ErrUnauthenticated = errors.New("not authenticated")

// Authenticator resolves the acting user of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// HeaderAuthenticator trusts a user id header set by an upstream
// authenticating proxy.
type HeaderAuthenticator struct {
	Header string
}

func (a HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	user := strings.TrimSpace(r.Header.Get(a.Header))
	if user == "" {
		return "", ErrUnauthenticated
	}
	return user, nil
}

type actorKey struct{}

func withActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.deps.Auth.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, errorCodeUnauthorized, ErrUnauthenticated.Error())
			return
		}
		ctx := withActor(r.Context(), actor)
		ctx = logger.WithLogger(ctx, s.log.With("user", actor))
		next(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for request logs. Unwrap
// keeps http.ResponseController working through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			s.log.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration", time.Since(start).Round(time.Millisecond),
			)
		}()
		next.ServeHTTP(rec, r)
	})
}
