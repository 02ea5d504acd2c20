// Package httpapi translates the HTTP surface to and from the presence and
// message services. Callers identify themselves with the User header; all
// state lives behind the services.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/sala/chat-api/internal/chat"
	"github.com/sala/chat-api/internal/metrics"
)

// UserHeader carries the caller's participant name.
const UserHeader = "User"

// PresenceService is the presence surface the handlers consume.
type PresenceService interface {
	Register(ctx context.Context, payload chat.ParticipantPayload) (chat.Participant, error)
	Heartbeat(ctx context.Context, name string) error
	ListNames(ctx context.Context) ([]string, error)
}

// MessageService is the message surface the handlers consume.
type MessageService interface {
	Post(ctx context.Context, sender string, payload chat.MessagePayload) (chat.Message, error)
	List(ctx context.Context, requester string, limit int) ([]chat.Message, error)
}

// Options tunes the router.
type Options struct {
	AllowedOrigins []string
	Log            *logrus.Entry
}

// NewRouter builds the chi router with CORS, latency instrumentation and
// all chat endpoints.
func NewRouter(pres PresenceService, msgs MessageService, opts Options) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", UserHeader},
		MaxAge:         300,
	}))
	r.Use(observe)

	r.Post("/participants", HandleRegister(pres, opts.Log))
	r.Get("/participants", HandleListParticipants(pres, opts.Log))
	r.Post("/status", HandleHeartbeat(pres, opts.Log))
	r.Post("/messages", HandlePostMessage(msgs, opts.Log))
	r.Get("/messages", HandleListMessages(msgs, opts.Log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}

// observe records request latency per route pattern.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
