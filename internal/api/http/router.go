package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/security"
	"fishtank-backend/internal/service"
)

// NewRouter wires the JSON/HTTP API. Everything under /v1 requires a bearer
// token; /healthz is public.
func NewRouter(svc service.JoinRequestCoordinator, verifier security.Verifier) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	h := NewJoinRequestHandler(svc)
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(AuthMiddleware(verifier))
	v1.HandleFunc("/fishtanks", h.CreateFishtank).Methods(http.MethodPost)
	v1.HandleFunc("/fishtanks/{id}/join-requests", h.SubmitJoinRequest).Methods(http.MethodPost)
	v1.HandleFunc("/fishtanks/{id}/join-requests", h.ListPending).Methods(http.MethodGet)
	v1.HandleFunc("/fishtanks/{id}/join-requests/stream", h.StreamPending).Methods(http.MethodGet)
	v1.HandleFunc("/join-requests/{id}/accept", h.Resolve(domain.DecisionAccept)).Methods(http.MethodPost)
	v1.HandleFunc("/join-requests/{id}/reject", h.Resolve(domain.DecisionReject)).Methods(http.MethodPost)
	return router
}
