// internal/handlers/server.go
package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/jason-s-yu/promptbattle/internal/assistant"
	"github.com/jason-s-yu/promptbattle/internal/battle"
	"github.com/jason-s-yu/promptbattle/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Assistant is the model-backed helper behind /ai, /research and /tts.
type Assistant interface {
	StreamChat(ctx context.Context, messages []assistant.Message, w io.Writer, flush func()) error
	StreamResearch(ctx context.Context, query string, w io.Writer, flush func()) error
	Speech(ctx context.Context, text string) (io.ReadCloser, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds what the HTTP handlers need.
type Server struct {
	Service        *battle.Service
	Assistant      Assistant
	Limiter        middleware.Limiter // nil disables rate limiting
	Health         Pinger
	Logger         *logrus.Logger
	OriginPatterns []string
}

// Routes builds the HTTP mux wrapped in request logging.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// identity
	mux.HandleFunc("POST /auth/guest", GuestHandler(s.Service))
	mux.HandleFunc("GET /profiles/me", MeHandler(s.Service))
	mux.HandleFunc("GET /leaderboard", LeaderboardHandler(s.Service))

	// rooms
	mux.HandleFunc("POST /rooms/create", CreateRoomHandler(s.Service))
	mux.HandleFunc("POST /rooms/join", JoinRoomHandler(s.Service))
	mux.HandleFunc("POST /rooms/ready", ReadyHandler(s.Service))
	mux.HandleFunc("POST /rooms/submit-prompt", SubmitPromptHandler(s.Service))
	mux.HandleFunc("GET /rooms/{id}", RoomStateHandler(s.Service))
	mux.HandleFunc("GET /rooms/{id}/feed", RoomFeedHandler(s.Logger, s.Service, s.OriginPatterns))
	mux.HandleFunc("POST /judge", JudgeHandler(s.Service))

	// assistant
	limited := middleware.RateLimit(s.Limiter, s.Logger)
	mux.Handle("POST /ai", limited(ChatHandler(s.Logger, s.Assistant)))
	mux.Handle("POST /research", limited(ResearchHandler(s.Logger, s.Assistant)))
	mux.Handle("POST /tts", limited(SpeechHandler(s.Logger, s.Assistant)))

	mux.HandleFunc("GET /healthz", HealthHandler(s.Health))

	return middleware.LogMiddleware(s.Logger)(mux)
}

// HealthHandler answers 200 when the store is reachable.
func HealthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
