package ws

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestPayload covers every client message; Action selects which fields
// are meaningful.
type RequestPayload struct {
	Action            Action   `json:"action"`
	QuestionID        string   `json:"question_id,omitempty"`
	SelectedOptionIDs []string `json:"selected_option_ids,omitempty"`
	Text              string   `json:"text_answer,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSaved  Event = "saved"
	EventTick   Event = "tick"
	EventGraded Event = "graded"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// SavedResponse acknowledges a stored answer.
type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

// TickResponse carries the remaining time of a timed attempt.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// GradedResponse announces the terminal result. Attempt carries the public
// attempt fields.
type GradedResponse struct {
	Event   Event       `json:"event"`
	Attempt interface{} `json:"attempt"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
