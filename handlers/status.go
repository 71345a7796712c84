package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"guardbackend/middleware"
	"guardbackend/models"
	"guardbackend/usecases/protection"
)

// StatusHandler exposes the read-only protection status API used by operators
// to inspect live detector counts and queue depth
type StatusHandler struct {
	engine *protection.ProtectionEngine
}

func NewStatusHandler(engine *protection.ProtectionEngine) *StatusHandler {
	return &StatusHandler{engine: engine}
}

// SetupEndpoints registers the status API routes behind API-key auth
func (h *StatusHandler) SetupEndpoints(router *mux.Router, auth *middleware.APIKeyAuthMiddleware) {
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware)
	api.HandleFunc("/guilds/{guildID}/protection", h.handleGuildProtectionStatus).Methods("GET")
}

func (h *StatusHandler) handleGuildProtectionStatus(w http.ResponseWriter, r *http.Request) {
	guildID := models.GuildID(mux.Vars(r)["guildID"])

	status, err := h.engine.GuildStatus(r.Context(), guildID)
	if err != nil {
		log.Printf("❌ Failed to get protection status for guild %s: %v", guildID, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to get protection status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
