package mocktest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/assembly"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

const maxTestCount = 50

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the mock test endpoints onto an /api/v1 subrouter.
// Study start is the prewarm hook: the app calls it when the user begins
// studying a topic, so the set is usually READY by the time the timer ends.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/study/start", h.Prewarm).Methods("POST")
	r.HandleFunc("/tests/start", h.StartTest).Methods("POST")
	r.HandleFunc("/tests/{id}/submit", h.Submit).Methods("POST")
	r.HandleFunc("/tests/{id}", h.GetTest).Methods("GET")
}

func (h *Handler) StartTest(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStartRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.service.StartTest(r.Context(), req)
	if err != nil {
		if errors.Is(err, assembly.ErrInsufficientQuestions) {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
			return
		}
		log.Printf("[handler] StartTest error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to start test"})
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) Prewarm(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStartRequest(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusAccepted, h.service.Prewarm(req))
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	testID := mux.Vars(r)["id"]

	var req models.SubmitTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.Submit(r.Context(), testID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Test not found"})
		case errors.Is(err, ErrAlreadyFinalized):
			writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "Test already submitted"})
		case errors.Is(err, ErrInvalidSubmission):
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		default:
			log.Printf("[handler] Submit error: %v", err)
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to submit test"})
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetTest(w http.ResponseWriter, r *http.Request) {
	testID := mux.Vars(r)["id"]

	review, err := h.service.Review(r.Context(), testID)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Test not found"})
			return
		}
		log.Printf("[handler] GetTest error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load test"})
		return
	}

	writeJSON(w, http.StatusOK, review)
}

// decodeStartRequest parses and validates the shared start/prewarm payload.
// It writes the error response itself and reports success via the bool.
func decodeStartRequest(w http.ResponseWriter, r *http.Request) (models.StartTestRequest, bool) {
	var req models.StartTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return req, false
	}

	if req.TopicID <= 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "topic_id is required"})
		return req, false
	}
	if req.UserID <= 0 && req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "user_id or session_id is required"})
		return req, false
	}
	if req.Count != nil && (*req.Count <= 0 || *req.Count > maxTestCount) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "count must be between 1 and 50"})
		return req, false
	}
	if req.Ratio != nil && (*req.Ratio < 0 || *req.Ratio > 1) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "ratio must be between 0 and 1"})
		return req, false
	}

	return req, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
