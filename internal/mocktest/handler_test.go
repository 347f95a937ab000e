package mocktest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

func newTestRouter(t *testing.T, questionIDs ...int64) (*mux.Router, *testHarness) {
	t.Helper()
	h := newHarness(t, questionIDs...)
	r := mux.NewRouter()
	NewHandler(h.service).RegisterRoutes(r.PathPrefix("/api/v1").Subrouter())
	return r, h
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_StartAndSubmitFlow(t *testing.T) {
	router, _ := newTestRouter(t, 1, 2, 3, 4, 5)

	w := doJSON(t, router, "POST", "/api/v1/tests/start", startRequest())
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var started models.StartTestResponse
	if err := json.NewDecoder(w.Body).Decode(&started); err != nil {
		t.Fatal(err)
	}
	if len(started.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(started.Questions))
	}

	// The served payload must not leak answers or explanations.
	raw, _ := json.Marshal(started.Questions)
	if bytes.Contains(raw, []byte("correct_label")) || bytes.Contains(raw, []byte("explanation")) {
		t.Error("served questions leak answer fields")
	}

	w = doJSON(t, router, "POST", "/api/v1/tests/"+started.TestID+"/submit", submitAll(&started, 5))
	if w.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result models.SubmitTestResponse
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.ScorePercent != 100 || !result.StarEarned {
		t.Errorf("expected 100%% with star, got %d star=%v", result.ScorePercent, result.StarEarned)
	}

	// A second submission conflicts.
	w = doJSON(t, router, "POST", "/api/v1/tests/"+started.TestID+"/submit", submitAll(&started, 5))
	if w.Code != http.StatusConflict {
		t.Errorf("resubmit: expected 409, got %d", w.Code)
	}

	// Review carries the frozen attempt and its breakdown.
	w = doJSON(t, router, "GET", "/api/v1/tests/"+started.TestID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("review: expected 200, got %d", w.Code)
	}
	var review models.TestReview
	if err := json.NewDecoder(w.Body).Decode(&review); err != nil {
		t.Fatal(err)
	}
	if len(review.Breakdown) != 5 {
		t.Errorf("expected 5 breakdown entries, got %d", len(review.Breakdown))
	}
}

func TestHandler_StartValidation(t *testing.T) {
	router, _ := newTestRouter(t, 1, 2, 3)

	cases := []struct {
		name string
		body models.StartTestRequest
	}{
		{"missing topic", models.StartTestRequest{UserID: 42}},
		{"missing identity", models.StartTestRequest{TopicID: 7}},
		{"count too high", func() models.StartTestRequest {
			r := startRequest()
			count := 999
			r.Count = &count
			return r
		}()},
		{"ratio out of range", func() models.StartTestRequest {
			r := startRequest()
			ratio := 1.5
			r.Ratio = &ratio
			return r
		}()},
	}
	for _, tc := range cases {
		w := doJSON(t, router, "POST", "/api/v1/tests/start", tc.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}

	w := doJSON(t, router, "POST", "/api/v1/tests/start", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty body: expected 400, got %d", w.Code)
	}
}

func TestHandler_StartInsufficientBank(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, "POST", "/api/v1/tests/start", startRequest())
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an empty topic, got %d", w.Code)
	}
}

func TestHandler_SubmitUnknownTest(t *testing.T) {
	router, _ := newTestRouter(t, 1, 2, 3)

	w := doJSON(t, router, "POST", "/api/v1/tests/does-not-exist/submit", models.SubmitTestRequest{})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandler_SubmitValidationIs400(t *testing.T) {
	router, _ := newTestRouter(t, 1, 2, 3, 4, 5)

	w := doJSON(t, router, "POST", "/api/v1/tests/start", startRequest())
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d", w.Code)
	}
	var started models.StartTestResponse
	if err := json.NewDecoder(w.Body).Decode(&started); err != nil {
		t.Fatal(err)
	}

	w = doJSON(t, router, "POST", "/api/v1/tests/"+started.TestID+"/submit", models.SubmitTestRequest{
		Responses: []models.Response{{QuestionID: 999, SelectedLabel: "A"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a foreign question, got %d", w.Code)
	}
}

func TestHandler_SubmitInternalErrorIs500(t *testing.T) {
	router, h := newTestRouter(t, 1, 2, 3)

	// An attempt whose frozen question is gone from the bank fails to load
	// at grading time.
	attempt := &models.MockTestAttempt{
		ID:          uuid.NewString(),
		UserID:      42,
		TopicID:     7,
		QuestionIDs: []int64{999},
	}
	if err := h.attempts.CreateAttempt(context.Background(), attempt); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, router, "POST", "/api/v1/tests/"+attempt.ID+"/submit", models.SubmitTestRequest{})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "Failed to submit test" {
		t.Errorf("internal failures must not expose raw errors, got %q", resp.Error)
	}
}

func TestHandler_Prewarm(t *testing.T) {
	router, _ := newTestRouter(t, 1, 2, 3, 4, 5)

	w := doJSON(t, router, "POST", "/api/v1/study/start", startRequest())
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	var resp models.PrewarmResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status == "" {
		t.Error("expected a cache status in the prewarm response")
	}
}
