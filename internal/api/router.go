package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/plazahq/plaza-server/internal/config"
	"github.com/plazahq/plaza-server/internal/db"
	"github.com/plazahq/plaza-server/internal/middleware"
	"github.com/plazahq/plaza-server/internal/rooms"
	"github.com/plazahq/plaza-server/internal/utils"
)

type Router struct {
	mux        *http.ServeMux
	db         *db.Database
	registry   *rooms.Registry
	clientDeps rooms.ClientDeps
	cfg        *config.Config
	log        *utils.Logger
}

// NewRouter creates the HTTP surface of the presence core: the websocket
// endpoint, the discovery queries, health and metrics.
func NewRouter(database *db.Database, registry *rooms.Registry, clientDeps rooms.ClientDeps, redisClient *redis.Client, cfg *config.Config, log *utils.Logger) http.Handler {
	r := &Router{
		mux:        http.NewServeMux(),
		db:         database,
		registry:   registry,
		clientDeps: clientDeps,
		cfg:        cfg,
		log:        log,
	}

	rateLimiter := middleware.NewRateLimiter(redisClient)

	r.mux.HandleFunc("/healthz", r.HealthzHandler)
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.Handle("/ws", http.HandlerFunc(r.WebSocketHandler))

	r.mux.Handle("/rooms/active", rateLimiter.Middleware(http.HandlerFunc(r.ActiveRoomsHandler)))
	r.mux.Handle("/rooms/most-watched", rateLimiter.Middleware(http.HandlerFunc(r.MostWatchedRoomsHandler)))
	r.mux.Handle("/rooms/search", rateLimiter.Middleware(http.HandlerFunc(r.SearchRoomsHandler)))

	handler := middleware.RequestIDMiddleware(r.mux)
	handler = middleware.TracingMiddleware(handler)
	return handler
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// HealthzHandler reports liveness, including database reachability.
func (r *Router) HealthzHandler(w http.ResponseWriter, req *http.Request) {
	if r.db != nil {
		if err := r.db.Health(req.Context()); err != nil {
			utils.RespondError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
