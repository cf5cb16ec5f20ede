package assist

import (
	"encoding/json"
	"time"
)

type Phase int

const (
	Idle Phase = iota
	Busy
)

func (p Phase) String() string {
	if p == Busy {
		return "busy"
	}
	return "idle"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// State is the dispatcher's snapshot. Action and StartedAt are only set while Busy;
// LastErr keeps the message of the most recent failed dispatch until the next one starts.
type State struct {
	Phase     Phase     `json:"phase"`
	Action    Action    `json:"action,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	LastErr   string    `json:"last_error,omitempty"`
}
