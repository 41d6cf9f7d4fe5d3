package bracket

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotEnoughEntrants is returned when a bracket is requested for fewer
	// than two entrants.
	ErrNotEnoughEntrants = errors.New("at least two entrants are required")

	// ErrInvalidDuration is returned for a non-positive per-match duration.
	ErrInvalidDuration = errors.New("seconds per match must be positive")
)

// MatchStatus represents the lifecycle of a single match.
type MatchStatus string

const (
	MatchPending    MatchStatus = "PENDING"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchCompleted  MatchStatus = "COMPLETED"
)

// Side identifies one of the two entrant slots in a match.
type Side string

const (
	SideLeft  Side = "LEFT"
	SideRight Side = "RIGHT"
)

// Entrant is a single contestant. Immutable once admitted to a tournament.
type Entrant struct {
	ID       string `json:"id"`
	ImageURL string `json:"image_url"`
	Caption  string `json:"caption"`
}

// Match is one head-to-head contest. Left/Right are nil until populated by
// upstream advancement (future rounds waiting on byes or earlier winners).
type Match struct {
	ID          string      `json:"id"`
	Round       int         `json:"round"`
	Index       int         `json:"index"`
	Left        *Entrant    `json:"left"`
	Right       *Entrant    `json:"right"`
	VotesLeft   int         `json:"votes_left"`
	VotesRight  int         `json:"votes_right"`
	Remaining   int         `json:"remaining_sec"`
	Duration    int         `json:"duration_sec"`
	Status      MatchStatus `json:"status"`
	Winner      *Entrant    `json:"winner,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Round is an ordered list of matches. Completed is true iff every match in
// the round is completed.
type Round struct {
	Matches   []*Match `json:"matches"`
	Completed bool     `json:"completed"`
}

// Bracket is the full elimination tree, round 0 first.
type Bracket struct {
	Rounds []*Round `json:"rounds"`
}

// roundCount returns ceil(log2(n)) for n >= 2.
func roundCount(n int) int {
	rounds := 0
	for size := 1; size < n; size *= 2 {
		rounds++
	}
	return rounds
}

// Build constructs a single-elimination bracket. Round 0 contains matches
// only for the entrants that must play immediately; the remaining entrants
// receive a bye and are seeded straight into round 1's open slots. The first
// entrants in the list play, the remainder bye -- the order of the input list
// is the seeding order.
func Build(entrants []Entrant, secondsPerMatch int) (*Bracket, error) {
	n := len(entrants)
	if n < 2 {
		return nil, ErrNotEnoughEntrants
	}
	if secondsPerMatch <= 0 {
		return nil, ErrInvalidDuration
	}

	rounds := roundCount(n)

	// Entrants that cannot be given a bye must play in round 0 so that the
	// survivor count entering round 1 is an exact power of two.
	playing := 2 * (n - 1<<(rounds-1))
	liveMatches := playing / 2

	b := &Bracket{}

	round0 := &Round{}
	for i := 0; i < liveMatches; i++ {
		left := entrants[2*i]
		right := entrants[2*i+1]
		round0.Matches = append(round0.Matches, &Match{
			ID:       uuid.NewString(),
			Round:    0,
			Index:    i,
			Left:     &left,
			Right:    &right,
			Duration: secondsPerMatch,
			Status:   MatchPending,
		})
	}
	b.Rounds = append(b.Rounds, round0)

	for r := 1; r < rounds; r++ {
		matches := 1 << (rounds - 1 - r)
		round := &Round{}
		for i := 0; i < matches; i++ {
			round.Matches = append(round.Matches, &Match{
				ID:       uuid.NewString(),
				Round:    r,
				Index:    i,
				Duration: secondsPerMatch,
				Status:   MatchPending,
			})
		}
		b.Rounds = append(b.Rounds, round)
	}

	// Byes skip round 0. The first liveMatches slots of round 1 are reserved
	// for round-0 winners; byes fill the remaining slots in order.
	if rounds > 1 {
		byes := entrants[playing:]
		for i, e := range byes {
			e := e
			b.setSlot(1, liveMatches+i, &e)
		}
	}

	return b, nil
}

// setSlot places an entrant into the flattened slot index of a round, where
// slot 2*i is match i's left side and slot 2*i+1 its right side.
func (b *Bracket) setSlot(round, slot int, e *Entrant) {
	m := b.Rounds[round].Matches[slot/2]
	if slot%2 == 0 {
		m.Left = e
	} else {
		m.Right = e
	}
}

// Advance places the winner of the given completed match into the next
// round's corresponding slot. Winner of round r match i always feeds the
// flattened slot i of round r+1; round 0 reserved its leading slots for
// exactly this. No-op for final-round matches.
func (b *Bracket) Advance(m *Match) {
	if m.Winner == nil || m.Round+1 >= len(b.Rounds) {
		return
	}
	b.setSlot(m.Round+1, m.Index, m.Winner)
}

// NextPending returns the first pending match of the given round, or nil.
func (b *Bracket) NextPending(round int) *Match {
	if round < 0 || round >= len(b.Rounds) {
		return nil
	}
	for _, m := range b.Rounds[round].Matches {
		if m.Status == MatchPending {
			return m
		}
	}
	return nil
}

// RefreshCompleted recomputes the completion flag of the given round.
func (b *Bracket) RefreshCompleted(round int) {
	r := b.Rounds[round]
	for _, m := range r.Matches {
		if m.Status != MatchCompleted {
			r.Completed = false
			return
		}
	}
	r.Completed = true
}

// DecideWinner resolves a match from its tallies. Strictly more votes wins;
// an exact tie is broken uniformly at random. The random tie-break is
// deliberate: a 0-0 or n-n match must not systematically favor one side.
func DecideWinner(m *Match, rng *rand.Rand) *Entrant {
	switch {
	case m.VotesLeft > m.VotesRight:
		return m.Left
	case m.VotesRight > m.VotesLeft:
		return m.Right
	case rng.Intn(2) == 0:
		return m.Left
	default:
		return m.Right
	}
}

// FindMatch returns the match with the given ID, or nil.
func (b *Bracket) FindMatch(id string) *Match {
	for _, r := range b.Rounds {
		for _, m := range r.Matches {
			if m.ID == id {
				return m
			}
		}
	}
	return nil
}

// Clone returns a deep copy, safe to hand to other goroutines for
// serialization while the original keeps mutating.
func (b *Bracket) Clone() *Bracket {
	if b == nil {
		return nil
	}
	out := &Bracket{}
	for _, r := range b.Rounds {
		round := &Round{Completed: r.Completed}
		for _, m := range r.Matches {
			round.Matches = append(round.Matches, m.Clone())
		}
		out.Rounds = append(out.Rounds, round)
	}
	return out
}

// Clone returns a deep copy of the match.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Left = cloneEntrant(m.Left)
	c.Right = cloneEntrant(m.Right)
	c.Winner = cloneEntrant(m.Winner)
	if m.StartedAt != nil {
		t := *m.StartedAt
		c.StartedAt = &t
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func cloneEntrant(e *Entrant) *Entrant {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// Validate checks the structural invariants of a built bracket: from round 1
// on, each round halves the previous one, and the final round holds exactly
// one match. Round 0 is the play-in round and may be smaller than round 1.
func (b *Bracket) Validate() error {
	for i := 2; i < len(b.Rounds); i++ {
		prev := len(b.Rounds[i-1].Matches)
		cur := len(b.Rounds[i].Matches)
		if cur != prev/2 {
			return fmt.Errorf("round %d has %d matches, want %d", i, cur, prev/2)
		}
	}
	if last := b.Rounds[len(b.Rounds)-1]; len(last.Matches) != 1 {
		return fmt.Errorf("final round has %d matches, want 1", len(last.Matches))
	}
	return nil
}
