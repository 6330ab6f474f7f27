package trace

import "time"

// Call represents one carrier media-stream connection, start to stop.
type Call struct {
	ID               string            `json:"id"`
	CustomParameters map[string]string `json:"custom_parameters,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	EndedAt          *time.Time        `json:"ended_at,omitempty"`
	Status           string            `json:"status"`
	Reason           string            `json:"reason,omitempty"`
	TurnCount        int               `json:"turn_count,omitempty"`
}

// HistoryEntry is one conversation turn persisted alongside a call.
type HistoryEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}
