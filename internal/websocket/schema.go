package websocket

import "github.com/bridge4er/examhall/internal/model"

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError       Event = "error"
	EventLeaderboard Event = "leaderboard"
	EventPong        Event = "pong"
)

// LeaderboardResponse carries a fresh leaderboard snapshot, pushed after
// every graded submission for the watched exam set.
type LeaderboardResponse struct {
	Event   Event                    `json:"event"`
	SetID   int64                    `json:"set_id"`
	Entries []model.LeaderboardEntry `json:"entries"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

// PingRequest is the only client → server message; anything else is ignored.
type PingRequest struct {
	Action string `json:"action"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
