package api

import (
	"net/http"
	"strings"

	"github.com/plazahq/plaza-server/internal/utils"
)

// ActiveRoomsHandler lists the canonical room and every room with
// participants.
func (r *Router) ActiveRoomsHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		utils.RespondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summaries, err := r.registry.ActiveRooms(req.Context())
	if err != nil {
		r.log.Error(req.Context(), "active rooms query failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	utils.RespondJSON(w, http.StatusOK, summaries)
}

// MostWatchedRoomsHandler lists loaded rooms ordered by spectator count.
func (r *Router) MostWatchedRoomsHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		utils.RespondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, r.registry.MostWatchedRooms())
}

// SearchRoomsHandler matches public rooms by name or owner name.
func (r *Router) SearchRoomsHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		utils.RespondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := strings.TrimSpace(req.URL.Query().Get("q"))
	if query == "" {
		utils.RespondError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	summaries, err := r.registry.Search(req.Context(), query)
	if err != nil {
		r.log.Error(req.Context(), "room search failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, summaries)
}
