package examclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bridge4er/examhall/internal/session"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, New(srv.URL+"/api/v1", "test-token", zerolog.Nop())
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, errBody map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{"data": data}
	if errBody != nil {
		body["error"] = errBody
	}
	json.NewEncoder(w).Encode(body)
}

func TestStartSetDecodesPayload(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/sets/5/start" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"id": 5, "name": "Mock Set", "duration_seconds": 120, "grace_seconds": 10,
			"negative_marking": 0.25,
			"questions": []map[string]interface{}{
				{
					"id": 9, "question_text": "Pick one",
					"options": map[string]string{"b": "Beta", "a": "Alpha"},
					"marks":   2,
				},
			},
		}, nil)
	})

	exam, err := client.StartSet(context.Background(), 5)
	if err != nil {
		t.Fatalf("StartSet: %v", err)
	}
	if exam.Name != "Mock Set" || exam.DurationSeconds != 120 || exam.NegativeMarking != 0.25 {
		t.Errorf("exam = %+v", exam)
	}
	if len(exam.Questions) != 1 {
		t.Fatalf("got %d questions", len(exam.Questions))
	}
	q := exam.Questions[0]
	// Options come out in alphabetical key order regardless of map order.
	if len(q.Options) != 2 || q.Options[0].Key != "a" || q.Options[1].Key != "b" {
		t.Errorf("options = %+v", q.Options)
	}
	if q.Options[0].Text != "Alpha" {
		t.Errorf("option text = %q", q.Options[0].Text)
	}
}

func TestStartSetErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, session.ErrSetNotFound},
		{http.StatusForbidden, session.ErrSetLocked},
		{http.StatusPaymentRequired, session.ErrSetLocked},
	}
	for _, tc := range cases {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, tc.status, nil, map[string]string{"code": "X", "message": "nope"})
		})
		if _, err := client.StartSet(context.Background(), 5); !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestStartSetServerErrorIsPlain(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.StartSet(context.Background(), 5)
	if err == nil || errors.Is(err, session.ErrSetNotFound) || errors.Is(err, session.ErrSetLocked) {
		t.Errorf("err = %v, want a plain transient error", err)
	}
}

func TestSubmitSetRoundTrip(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/sets/5/submit" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Answers map[string]string `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Answers["9"] != "a" {
			t.Errorf("answers = %v", req.Answers)
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"score": 2.0, "total_questions": 1, "correct_answers": 1,
			"review": []map[string]interface{}{
				{"question_id": 9, "question_text": "Pick one", "selected_option": "a", "correct_option": "a", "is_correct": true},
			},
			"leaderboard": []map[string]interface{}{
				{"rank": 1, "student_name": "Asha", "score": 2.0},
			},
		}, nil)
	})

	result, err := client.SubmitSet(context.Background(), 5, map[string]string{"9": "a"})
	if err != nil {
		t.Fatalf("SubmitSet: %v", err)
	}
	if result.Score != 2 || result.CorrectAnswers != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(result.Review) != 1 || !result.Review[0].IsCorrect {
		t.Errorf("review = %+v", result.Review)
	}
	if len(result.Leaderboard) != 1 || result.Leaderboard[0].StudentName != "Asha" {
		t.Errorf("leaderboard = %+v", result.Leaderboard)
	}
}

func TestSubmitSetRejection(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusConflict, nil, map[string]string{
			"code": "ALREADY_SUBMITTED", "message": "You have already submitted this exam set",
		})
	})

	_, err := client.SubmitSet(context.Background(), 5, nil)
	var rejected *session.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v, want *session.RejectedError", err)
	}
	if rejected.Status != http.StatusConflict || rejected.Code != "ALREADY_SUBMITTED" {
		t.Errorf("rejected = %+v", rejected)
	}
}

func TestSubmitSetServerErrorIsTransient(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.SubmitSet(context.Background(), 5, nil)
	var rejected *session.RejectedError
	if err == nil || errors.As(err, &rejected) {
		t.Errorf("err = %v, want a plain transient error", err)
	}
}
