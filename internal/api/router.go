package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/voicedesk/scheduling-backend/internal/broadcast"
	"github.com/voicedesk/scheduling-backend/internal/schedule"
	"github.com/voicedesk/scheduling-backend/internal/session"
	"github.com/voicedesk/scheduling-backend/internal/tools"
)

type RouterConfig struct {
	Orchestrator *tools.Orchestrator
	Sessions     *session.Store
	Repo         schedule.Repository
	Caster       *broadcast.Broadcaster
	WSBaseURL    string
	PgPool       *pgxpool.Pool // nil when running in-memory
	Redis        *redis.Client // nil when running with the local locker
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{
		orch:      cfg.Orchestrator,
		sessions:  cfg.Sessions,
		repo:      cfg.Repo,
		caster:    cfg.Caster,
		wsBaseURL: cfg.WSBaseURL,
	}

	// Session bootstrap and observer endpoints
	r.Post("/session/start", h.startSession)
	r.Get("/session/{sessionID}/tools", h.listToolCalls)
	r.Get("/session/{sessionID}/summary", h.getSummary)
	r.Get("/session/{sessionID}/events", h.sessionEvents)
	r.Get("/appointments/{contactNumber}", h.listAppointments)

	// Tool-call boundary
	r.Post("/tools/identify_user", h.identifyUser)
	r.Post("/tools/fetch_slots", h.fetchSlots)
	r.Post("/tools/book_appointment", h.bookAppointment)
	r.Post("/tools/retrieve_appointments", h.retrieveAppointments)
	r.Post("/tools/cancel_appointment", h.cancelAppointment)
	r.Post("/tools/modify_appointment", h.modifyAppointment)
	r.Post("/tools/end_conversation", h.endConversation)

	return r
}
