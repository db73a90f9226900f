// Package examclient is the HTTP implementation of session.ExamClient,
// speaking the exam service's enveloped JSON API.
package examclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/bridge4er/examhall/internal/model"
	"github.com/bridge4er/examhall/internal/session"
	"github.com/rs/zerolog"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// New builds a client for the given API base URL (for example
// "http://localhost:8080/api/v1") and bearer token.
func New(baseURL, token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log.With().Str("component", "examclient").Logger(),
	}
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorBody      `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) StartSet(ctx context.Context, setID int64) (*session.Exam, error) {
	url := fmt.Sprintf("%s/sets/%d/start", c.baseURL, setID)
	status, body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		switch status {
		case http.StatusNotFound:
			return nil, session.ErrSetNotFound
		case http.StatusForbidden, http.StatusPaymentRequired:
			return nil, session.ErrSetLocked
		default:
			return nil, fmt.Errorf("start set: server returned %d: %s", status, body.errMessage())
		}
	}

	var payload model.SetPayload
	if err := json.Unmarshal(body.Data, &payload); err != nil {
		return nil, fmt.Errorf("start set: decode payload: %w", err)
	}
	return toExam(payload), nil
}

func (c *Client) SubmitSet(ctx context.Context, setID int64, answers map[string]string) (*session.Result, error) {
	url := fmt.Sprintf("%s/sets/%d/submit", c.baseURL, setID)
	reqBody, err := json.Marshal(model.SubmitRequest{Answers: answers})
	if err != nil {
		return nil, fmt.Errorf("submit set: encode answers: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		if status >= 400 && status < 500 {
			rej := &session.RejectedError{Status: status, Message: "The server refused this submission."}
			if body.Error != nil {
				rej.Code = body.Error.Code
				rej.Message = body.Error.Message
			}
			return nil, rej
		}
		return nil, fmt.Errorf("submit set: server returned %d: %s", status, body.errMessage())
	}

	var result model.SubmissionResult
	if err := json.Unmarshal(body.Data, &result); err != nil {
		return nil, fmt.Errorf("submit set: decode result: %w", err)
	}
	return toResult(result), nil
}

// do runs one request and decodes the envelope. Transport errors and
// undecodable bodies come back as plain errors, which the session
// treats as transient.
func (c *Client) do(ctx context.Context, method, url string, body []byte) (int, *envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode == http.StatusOK {
			return 0, nil, fmt.Errorf("decode envelope: %w", err)
		}
	}
	c.log.Debug().Str("method", method).Str("url", url).Int("status", resp.StatusCode).Msg("Request finished")
	return resp.StatusCode, &env, nil
}

func (e *envelope) errMessage() string {
	if e != nil && e.Error != nil {
		return e.Error.Message
	}
	return "no error body"
}

func toExam(p model.SetPayload) *session.Exam {
	exam := &session.Exam{
		ID:              p.ID,
		Name:            p.Name,
		Branch:          p.Branch,
		Instructions:    p.Instructions,
		DurationSeconds: p.DurationSeconds,
		GraceSeconds:    p.GraceSeconds,
		NegativeMarking: p.NegativeMarking,
		Questions:       make([]session.Question, 0, len(p.Questions)),
	}
	for _, q := range p.Questions {
		keys := make([]string, 0, len(q.Options))
		for k := range q.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		opts := make([]session.Option, 0, len(keys))
		for _, k := range keys {
			opts = append(opts, session.Option{Key: k, Text: q.Options[k]})
		}
		exam.Questions = append(exam.Questions, session.Question{
			ID:       q.ID,
			Header:   q.QuestionHeader,
			Text:     q.QuestionText,
			ImageURL: q.QuestionImageURL,
			Options:  opts,
			Marks:    q.Marks,
		})
	}
	return exam
}

func toResult(r model.SubmissionResult) *session.Result {
	result := &session.Result{
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		CorrectAnswers: r.CorrectAnswers,
		WrongAnswers:   r.WrongAnswers,
		Unanswered:     r.Unanswered,
		SubmittedAt:    r.SubmittedAt,
		Review:         make([]session.ReviewItem, 0, len(r.Review)),
		Leaderboard:    make([]session.LeaderboardRow, 0, len(r.Leaderboard)),
	}
	for _, item := range r.Review {
		result.Review = append(result.Review, session.ReviewItem{
			QuestionID:     item.QuestionID,
			QuestionText:   item.QuestionText,
			SelectedOption: item.SelectedOption,
			CorrectOption:  item.CorrectOption,
			IsCorrect:      item.IsCorrect,
			Explanation:    item.Explanation,
		})
	}
	for _, row := range r.Leaderboard {
		result.Leaderboard = append(result.Leaderboard, session.LeaderboardRow{
			Rank:        row.Rank,
			StudentName: row.StudentName,
			Score:       row.Score,
		})
	}
	return result
}
