package votelock

import "sync"

// Ledger records which identities have voted in which matches. Entries are
// append-only until a match, or the whole tournament, is cleared. Once
// RecordVote returns, HasVoted reports true for every subsequent caller,
// including reconnects resolving to the same token.
type Ledger struct {
	mu    sync.RWMutex
	votes map[string]map[string]struct{} // matchID -> set of tokens
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		votes: make(map[string]map[string]struct{}),
	}
}

// HasVoted reports whether the token has already voted in the match.
func (l *Ledger) HasVoted(token, matchID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.votes[matchID][token]
	return ok
}

// RecordVote marks the token as having voted in the match. Idempotent:
// recording twice records once.
func (l *Ledger) RecordVote(token, matchID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tokens, ok := l.votes[matchID]
	if !ok {
		tokens = make(map[string]struct{})
		l.votes[matchID] = tokens
	}
	tokens[token] = struct{}{}
}

// ClearMatch forgets all votes recorded for a single match.
func (l *Ledger) ClearMatch(matchID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.votes, matchID)
}

// ClearAll forgets every recorded vote.
func (l *Ledger) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.votes = make(map[string]map[string]struct{})
}
