package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing  Action = "ping"
	ActionFocus Action = "focus"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// FocusRequest reports one focus-loss event from the candidate's browser.
type FocusRequest struct {
	Action Action `json:"action"`
	Kind   string `json:"kind"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick    Event = "tick"
	EventExpired Event = "expired"
	EventPong    Event = "pong"
	EventError   Event = "error"
)

// TickResponse carries the server-computed remaining time, pushed once
// per second while the attempt is in progress.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// ExpiredResponse tells the client the attempt has been finalized and
// carries the persisted result.
type ExpiredResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
	Score  int    `json:"score"`
	Passed bool   `json:"passed"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
