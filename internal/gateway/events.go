package gateway

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/faceoff/internal/bracket"
	"github.com/mcdev12/faceoff/internal/tournament"
)

// EventType identifies a message on the bidirectional event channel.
type EventType string

const (
	// Client -> server.
	EventVoteCast   EventType = "vote:cast"
	EventAdminStart EventType = "admin:start"
	EventAdminReset EventType = "admin:reset"

	// Server -> client, broadcast to every live connection.
	EventStateUpdate     EventType = "state:update"
	EventTournamentReset EventType = "tournament:reset"

	// Server -> client, targeted at a single identity's connections.
	EventVoteLocked   EventType = "vote:locked"
	EventVoteRejected EventType = "vote:rejected"
	EventError        EventType = "error"
	EventAdminResult  EventType = "admin:result"
)

// Event is the wire envelope for every message in both directions.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent wraps a payload in an envelope with the current timestamp.
func NewEvent(t EventType, payload any) (*Event, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return &Event{Type: t, Timestamp: time.Now().UTC(), Data: data}, nil
}

// RejectReason explains a vote:rejected event.
type RejectReason string

const (
	RejectAlreadyVoted   RejectReason = "ALREADY_VOTED"
	RejectMatchNotActive RejectReason = "MATCH_NOT_ACTIVE"
)

// VoteCastPayload is the body of a vote:cast event.
type VoteCastPayload struct {
	MatchID string       `json:"match_id"`
	Choice  bracket.Side `json:"choice"`
}

// AdminStartPayload is the body of an admin:start event.
type AdminStartPayload struct {
	SecondsPerMatch int `json:"seconds_per_match"`
}

// StateUpdatePayload carries the full tournament snapshot.
type StateUpdatePayload struct {
	State *tournament.State `json:"state"`
}

// TournamentResetPayload is broadcast when an admin resets the tournament.
type TournamentResetPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// VoteLockedPayload confirms to the voter alone that their vote is in.
type VoteLockedPayload struct {
	MatchID string `json:"match_id"`
}

// VoteRejectedPayload tells the voter alone why their vote did not count.
type VoteRejectedPayload struct {
	MatchID string       `json:"match_id"`
	Reason  RejectReason `json:"reason"`
}

// ErrorPayload reports a validation or authorization failure to the
// originating connection only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AdminResultPayload is the admin-facing summary of a reset, including any
// artifacts that could not be deleted.
type AdminResultPayload struct {
	Action string                  `json:"action"`
	Reset  *tournament.ResetResult `json:"reset,omitempty"`
}
