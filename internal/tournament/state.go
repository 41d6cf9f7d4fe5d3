package tournament

import (
	"github.com/mcdev12/faceoff/internal/bracket"
)

// Status represents the overall tournament lifecycle.
type Status string

const (
	StatusWaiting        Status = "WAITING"
	StatusDuelInProgress Status = "DUEL_IN_PROGRESS"
	StatusFinished       Status = "FINISHED"
)

// State is the authoritative tournament state. It is created empty at
// process start, mutated exclusively by the Orchestrator, and replaced
// wholesale on reset.
type State struct {
	Status          Status            `json:"status"`
	Entrants        []bracket.Entrant `json:"entrants"`
	Bracket         *bracket.Bracket  `json:"bracket,omitempty"`
	CurrentMatch    *bracket.Match    `json:"current_match,omitempty"`
	Winner          *bracket.Entrant  `json:"winner,omitempty"`
	SecondsPerMatch int               `json:"seconds_per_match"`
}

// NewState returns a fresh WAITING state with no entrants.
func NewState() *State {
	return &State{Status: StatusWaiting}
}

// Clone returns a deep copy of the state. CurrentMatch in the copy points
// into the copied bracket, so the clone is fully detached from the
// orchestrator's live state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		Status:          s.Status,
		SecondsPerMatch: s.SecondsPerMatch,
	}
	out.Entrants = append(out.Entrants, s.Entrants...)
	out.Bracket = s.Bracket.Clone()
	if s.CurrentMatch != nil && out.Bracket != nil {
		out.CurrentMatch = out.Bracket.FindMatch(s.CurrentMatch.ID)
	}
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	return out
}
