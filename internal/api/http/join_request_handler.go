package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
	"fishtank-backend/internal/service"
)

// JoinRequestHandler exposes the coordinator over JSON/HTTP for web clients.
type JoinRequestHandler struct {
	svc service.JoinRequestCoordinator
}

func NewJoinRequestHandler(svc service.JoinRequestCoordinator) *JoinRequestHandler {
	return &JoinRequestHandler{svc: svc}
}

type createFishtankRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

type submitRequest struct {
	Note string `json:"note"`
}

type pendingResponse struct {
	Requests []domain.PendingJoinRequest `json:"requests"`
}

func (h *JoinRequestHandler) CreateFishtank(w http.ResponseWriter, r *http.Request) {
	var body createFishtankRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, err := h.svc.CreateFishtank(r.Context(), actorFrom(r), body.Name, body.Description, body.IsPrivate)
	if err != nil {
		writeError(w, "CreateFishtank", false, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *JoinRequestHandler) SubmitJoinRequest(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	// an empty body is a request without a note
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	jr, err := h.svc.Submit(r.Context(), actorFrom(r), mux.Vars(r)["id"], body.Note)
	if err != nil {
		writeError(w, "SubmitJoinRequest", false, err)
		return
	}
	writeJSON(w, http.StatusCreated, jr)
}

func (h *JoinRequestHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	fishtankID := mux.Vars(r)["id"]
	if err := h.svc.Authorize(r.Context(), actorFrom(r), fishtankID); err != nil {
		writeError(w, "ListPending", false, err)
		return
	}
	list, err := h.svc.ListPending(r.Context(), fishtankID)
	if err != nil {
		writeError(w, "ListPending", false, err)
		return
	}
	if list == nil {
		list = []domain.PendingJoinRequest{}
	}
	writeJSON(w, http.StatusOK, pendingResponse{Requests: list})
}

// Resolve returns a handler applying a fixed decision, so accept and reject
// are separate routes.
func (h *JoinRequestHandler) Resolve(decision domain.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.svc.Resolve(r.Context(), actorFrom(r), mux.Vars(r)["id"], decision)
		if err != nil {
			writeError(w, "Resolve", true, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// StreamPending serves the enriched pending list as server-sent events. Every
// "pending" event carries the full list; an "error" event ends the stream and
// the client should resubscribe.
func (h *JoinRequestHandler) StreamPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fishtankID := mux.Vars(r)["id"]
	if err := h.svc.Authorize(ctx, actorFrom(r), fishtankID); err != nil {
		writeError(w, "StreamPending", false, err)
		return
	}
	updates, err := h.svc.Subscribe(ctx, fishtankID)
	if err != nil {
		writeError(w, "StreamPending", false, err)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for update := range updates {
		if update.Err != nil {
			logger.Warn("Pending stream ended", "fishtankID", fishtankID, "error", update.Err)
			writeEvent(w, "error", errorBody{Error: "pending subscription failed, resubscribe"})
			_ = rc.Flush()
			return
		}
		list := update.Requests
		if list == nil {
			list = []domain.PendingJoinRequest{}
		}
		if err := writeEvent(w, "pending", pendingResponse{Requests: list}); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + event + "\ndata: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}
