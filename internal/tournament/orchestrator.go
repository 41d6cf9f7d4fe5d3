package tournament

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/faceoff/internal/bracket"
	"github.com/mcdev12/faceoff/internal/votelock"
)

var (
	// ErrAlreadyVoted is a policy rejection: the identity has already voted
	// in this match.
	ErrAlreadyVoted = errors.New("identity has already voted in this match")

	// ErrMatchNotActive is a policy rejection: the referenced match is not
	// the current in-progress match with time remaining.
	ErrMatchNotActive = errors.New("match is not active")

	// ErrUnknownSide is a validation error for a vote payload naming
	// neither LEFT nor RIGHT.
	ErrUnknownSide = errors.New("vote side must be LEFT or RIGHT")

	// ErrTournamentRunning is returned when Start is called while a duel is
	// already in progress.
	ErrTournamentRunning = errors.New("tournament already in progress")
)

// Store is the persistence collaborator the orchestrator depends on. Any
// conforming implementation is interchangeable.
type Store interface {
	GetState() (*State, error)
	SetState(s *State) error
	ClearState() error
	ListEntrants() ([]bracket.Entrant, error)
	AddEntrant(e bracket.Entrant) error
	RemoveEntrant(id string) error
}

// BlobStore is the upload-storage collaborator. It supplies the stored
// artifact references and deletes them on reset.
type BlobStore interface {
	List() ([]string, error)
	Delete(ref string) error
}

// Notifier is what the orchestrator needs from the broadcast gateway. All
// methods must be non-blocking; they are invoked while the orchestrator
// holds its state lock.
type Notifier interface {
	BroadcastState(s *State)
	BroadcastReset(at time.Time)
	VoteLocked(token, matchID string)
}

// ResetFailure describes one artifact that could not be deleted during reset.
type ResetFailure struct {
	Ref   string `json:"ref"`
	Error string `json:"error"`
}

// ResetResult is the admin-facing summary of a reset. Artifact deletion
// failures are partial failures: the state clearing itself still succeeded.
type ResetResult struct {
	At      time.Time      `json:"at"`
	Deleted []string       `json:"deleted"`
	Failed  []ResetFailure `json:"failed,omitempty"`
}

// Orchestrator owns the authoritative tournament state. Votes, admin
// commands and timer ticks all serialize through one mutex, so no two
// mutations interleave. The match countdown is a single ticker goroutine
// per tournament run; a generation counter invalidates in-flight ticks
// across a reset.
type Orchestrator struct {
	mu     sync.Mutex
	state  *State
	ledger *votelock.Ledger
	store  Store
	blobs  BlobStore
	notify Notifier
	clock  clockwork.Clock
	rng    *rand.Rand

	gen    int
	stopCh chan struct{}
}

// New creates an orchestrator in the WAITING state. clock and rng may be nil
// for production defaults; tests inject a fake clock and a seeded source.
func New(store Store, blobs BlobStore, ledger *votelock.Ledger, notify Notifier, clock clockwork.Clock, rng *rand.Rand) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Orchestrator{
		state:  NewState(),
		ledger: ledger,
		store:  store,
		blobs:  blobs,
		notify: notify,
		clock:  clock,
		rng:    rng,
	}
}

// Snapshot returns a deep copy of the current state, safe for concurrent
// serialization.
func (o *Orchestrator) Snapshot() *State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Start builds the bracket, arms the first match's countdown and moves the
// tournament to DUEL_IN_PROGRESS. Malformed input (fewer than two entrants,
// non-positive duration) is rejected synchronously with no state change.
func (o *Orchestrator) Start(entrants []bracket.Entrant, secondsPerMatch int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Status == StatusDuelInProgress {
		return ErrTournamentRunning
	}

	b, err := bracket.Build(entrants, secondsPerMatch)
	if err != nil {
		return err
	}

	o.state = &State{
		Status:          StatusDuelInProgress,
		Entrants:        entrants,
		Bracket:         b,
		SecondsPerMatch: secondsPerMatch,
	}
	o.armMatchLocked(b.NextPending(0))
	o.startClockLocked()
	o.persistLocked()
	o.broadcastLocked()

	log.Info().
		Int("entrants", len(entrants)).
		Int("rounds", len(b.Rounds)).
		Int("seconds_per_match", secondsPerMatch).
		Msg("tournament started")
	return nil
}

// Vote applies one vote to the current match on behalf of an identity. The
// vote tally increment and the lock record are a single atomic unit: no two
// concurrent votes can both observe "not yet voted" for the same pair.
func (o *Orchestrator) Vote(token, matchID string, side bracket.Side) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if side != bracket.SideLeft && side != bracket.SideRight {
		return ErrUnknownSide
	}

	m := o.state.CurrentMatch
	if m == nil || m.ID != matchID || m.Status != bracket.MatchInProgress || m.Remaining <= 0 {
		return ErrMatchNotActive
	}
	if o.ledger.HasVoted(token, matchID) {
		return ErrAlreadyVoted
	}

	o.ledger.RecordVote(token, matchID)
	if side == bracket.SideLeft {
		m.VotesLeft++
	} else {
		m.VotesRight++
	}

	o.persistLocked()
	o.broadcastLocked()
	if o.notify != nil {
		o.notify.VoteLocked(token, matchID)
	}
	return nil
}

// Reset stops the clock, discards all tournament state and vote locks, and
// deletes the stored upload artifacts. Artifact deletion failures are
// logged and reported in the result summary; they never abort the reset.
func (o *Orchestrator) Reset() (*ResetResult, error) {
	o.mu.Lock()

	o.stopClockLocked()
	o.ledger.ClearAll()
	o.state = NewState()

	if err := o.store.ClearState(); err != nil {
		log.Warn().Err(err).Msg("failed to clear stored state during reset")
	}
	if entrants, err := o.store.ListEntrants(); err == nil {
		for _, e := range entrants {
			if err := o.store.RemoveEntrant(e.ID); err != nil {
				log.Warn().Err(err).Str("entrant_id", e.ID).Msg("failed to remove stored entrant during reset")
			}
		}
	}

	at := o.clock.Now()
	var refs []string
	if o.blobs != nil {
		var err error
		refs, err = o.blobs.List()
		if err != nil {
			log.Warn().Err(err).Msg("failed to list upload artifacts during reset")
		}
	}
	// Both notifications are enqueued before the lock is released, so a
	// Start racing with this reset cannot slot its snapshot in between and
	// leave clients rendering a stale WAITING state.
	if o.notify != nil {
		o.notify.BroadcastReset(at)
		o.notify.BroadcastState(o.state.Clone())
	}
	o.mu.Unlock()

	result := &ResetResult{At: at}
	for _, ref := range refs {
		if err := o.blobs.Delete(ref); err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("failed to delete upload artifact during reset")
			result.Failed = append(result.Failed, ResetFailure{Ref: ref, Error: err.Error()})
			continue
		}
		result.Deleted = append(result.Deleted, ref)
	}

	log.Info().
		Int("artifacts_deleted", len(result.Deleted)).
		Int("artifacts_failed", len(result.Failed)).
		Msg("tournament reset")
	return result, nil
}

// armMatchLocked makes m the current in-progress match with a full countdown.
func (o *Orchestrator) armMatchLocked(m *bracket.Match) {
	now := o.clock.Now()
	m.Status = bracket.MatchInProgress
	m.Remaining = m.Duration
	m.StartedAt = &now
	o.state.CurrentMatch = m
}

// startClockLocked launches the countdown goroutine for the current run,
// guaranteeing any previous ticker is stopped first.
func (o *Orchestrator) startClockLocked() {
	o.stopClockLocked()
	o.gen++
	o.stopCh = make(chan struct{})
	go o.runClock(o.gen, o.stopCh)
}

// stopClockLocked invalidates the running ticker. Any tick already in
// flight sees a stale generation and becomes a silent no-op.
func (o *Orchestrator) stopClockLocked() {
	o.gen++
	if o.stopCh != nil {
		close(o.stopCh)
		o.stopCh = nil
	}
}

// runClock decrements the current match once per second until the run ends
// or the generation is invalidated.
func (o *Orchestrator) runClock(gen int, stop <-chan struct{}) {
	ticker := o.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !o.tick(gen) {
				return
			}
		}
	}
}

// tick applies one countdown second. Returns false when the clock goroutine
// should exit.
func (o *Orchestrator) tick(gen int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.gen {
		return false
	}
	m := o.state.CurrentMatch
	if m == nil || o.state.Status != StatusDuelInProgress {
		return false
	}

	m.Remaining--
	if m.Remaining > 0 {
		o.broadcastLocked()
		return true
	}
	m.Remaining = 0
	o.finalizeLocked(m)
	return o.state.Status == StatusDuelInProgress
}

// finalizeLocked completes the current match and advances the tournament:
// next pending match in the round, else the next round, else FINISHED.
func (o *Orchestrator) finalizeLocked(m *bracket.Match) {
	winner := bracket.DecideWinner(m, o.rng)
	now := o.clock.Now()
	m.Winner = winner
	m.Status = bracket.MatchCompleted
	m.CompletedAt = &now
	o.ledger.ClearMatch(m.ID)

	b := o.state.Bracket
	b.Advance(m)
	b.RefreshCompleted(m.Round)

	log.Info().
		Str("match_id", m.ID).
		Int("round", m.Round).
		Int("votes_left", m.VotesLeft).
		Int("votes_right", m.VotesRight).
		Str("winner", winner.ID).
		Msg("match completed")

	if next := b.NextPending(m.Round); next != nil {
		o.armMatchLocked(next)
	} else if m.Round+1 < len(b.Rounds) {
		o.armMatchLocked(b.NextPending(m.Round + 1))
	} else {
		o.state.Status = StatusFinished
		o.state.Winner = winner
		o.state.CurrentMatch = nil
		log.Info().Str("winner", winner.ID).Msg("tournament finished")
	}

	o.persistLocked()
	o.broadcastLocked()
}

func (o *Orchestrator) persistLocked() {
	if o.store == nil {
		return
	}
	if err := o.store.SetState(o.state.Clone()); err != nil {
		log.Warn().Err(err).Msg("failed to persist tournament state")
	}
}

func (o *Orchestrator) broadcastLocked() {
	if o.notify != nil {
		o.notify.BroadcastState(o.state.Clone())
	}
}
