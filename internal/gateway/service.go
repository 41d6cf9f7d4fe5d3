package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/faceoff/internal/identity"
	"github.com/mcdev12/faceoff/internal/tournament"
)

// Service is the outer surface of the event channel: it derives identities
// on upgrade, routes client events into the orchestrator, and implements
// the orchestrator's Notifier port for outbound delivery.
type Service struct {
	manager        *Manager
	deriver        *identity.Deriver
	orch           *tournament.Orchestrator
	store          tournament.Store
	adminKey       string
	defaultSeconds int
}

// NewService wires the gateway together. defaultSeconds is the configured
// match duration used when a start request omits one. The orchestrator is
// attached afterwards via SetOrchestrator because it needs this service as
// its notifier first.
func NewService(manager *Manager, deriver *identity.Deriver, store tournament.Store, adminKey string, defaultSeconds int) *Service {
	s := &Service{
		manager:        manager,
		deriver:        deriver,
		store:          store,
		adminKey:       adminKey,
		defaultSeconds: defaultSeconds,
	}
	manager.SetInboundHandler(s.routeEvent)
	return s
}

// SetOrchestrator attaches the tournament orchestrator.
func (s *Service) SetOrchestrator(orch *tournament.Orchestrator) {
	s.orch = orch
}

// Start runs the fan-out loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.manager.Start(ctx)
}

var _ tournament.Notifier = (*Service)(nil)

// BroadcastState fans a full snapshot out to every live connection.
func (s *Service) BroadcastState(state *tournament.State) {
	e, err := NewEvent(EventStateUpdate, StateUpdatePayload{State: state})
	if err != nil {
		log.Error().Err(err).Msg("failed to build state update event")
		return
	}
	s.manager.BroadcastAll(e)
}

// BroadcastReset announces a tournament reset to every live connection.
func (s *Service) BroadcastReset(at time.Time) {
	e, err := NewEvent(EventTournamentReset, TournamentResetPayload{Timestamp: at})
	if err != nil {
		return
	}
	s.manager.BroadcastAll(e)
}

// VoteLocked confirms a recorded vote to the voter's connections only.
func (s *Service) VoteLocked(token, matchID string) {
	e, err := NewEvent(EventVoteLocked, VoteLockedPayload{MatchID: matchID})
	if err != nil {
		return
	}
	s.manager.DeliverTo(token, e)
}

// HandleWS upgrades a client to the event channel. The handshake may carry
// a previously issued identity token; anything malformed falls back to the
// address-derived identity. An admin key in the handshake enables admin
// events for the connection.
func (s *Service) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !identity.ValidToken(token) {
		token = s.deriver.DeriveFromRequest(r)
	}

	admin := s.adminKey != "" &&
		subtle.ConstantTimeCompare([]byte(r.URL.Query().Get("admin_key")), []byte(s.adminKey)) == 1

	c, err := s.manager.Upgrade(w, r, token, admin)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	// New clients get the current snapshot immediately, before any
	// broadcast reaches them.
	if e, err := NewEvent(EventStateUpdate, StateUpdatePayload{State: s.orch.Snapshot()}); err == nil {
		s.manager.SendTo(c, e)
	}
}

// routeEvent dispatches one decoded client event.
func (s *Service) routeEvent(c *Connection, e *Event) {
	switch e.Type {
	case EventVoteCast:
		s.handleVote(c, e)
	case EventAdminStart:
		s.handleAdminStart(c, e)
	case EventAdminReset:
		s.handleAdminReset(c)
	default:
		s.manager.SendError(c, "UNKNOWN_EVENT", "unknown event type "+string(e.Type))
	}
}

func (s *Service) handleVote(c *Connection, e *Event) {
	var payload VoteCastPayload
	if err := json.Unmarshal(e.Data, &payload); err != nil || payload.MatchID == "" {
		s.manager.SendError(c, "BAD_VOTE", "malformed vote payload")
		return
	}

	err := s.orch.Vote(c.Token, payload.MatchID, payload.Choice)
	switch {
	case err == nil:
		// The orchestrator delivers vote:locked itself.
	case errors.Is(err, tournament.ErrAlreadyVoted):
		s.reject(c.Token, payload.MatchID, RejectAlreadyVoted)
	case errors.Is(err, tournament.ErrMatchNotActive):
		s.reject(c.Token, payload.MatchID, RejectMatchNotActive)
	case errors.Is(err, tournament.ErrUnknownSide):
		s.manager.SendError(c, "BAD_VOTE", err.Error())
	default:
		s.manager.SendError(c, "INTERNAL", err.Error())
	}
}

// reject tells every connection of the voting identity why the vote did not
// count. A duplicate vote is a normal negative outcome, not an error.
func (s *Service) reject(token, matchID string, reason RejectReason) {
	e, err := NewEvent(EventVoteRejected, VoteRejectedPayload{MatchID: matchID, Reason: reason})
	if err != nil {
		return
	}
	s.manager.DeliverTo(token, e)
}

func (s *Service) handleAdminStart(c *Connection, e *Event) {
	if !c.Admin {
		s.manager.SendError(c, "FORBIDDEN", "admin key required")
		return
	}

	var payload AdminStartPayload
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		s.manager.SendError(c, "BAD_START", "malformed start payload")
		return
	}

	seconds := payload.SecondsPerMatch
	if seconds == 0 {
		seconds = s.defaultSeconds
	}

	entrants, err := s.store.ListEntrants()
	if err != nil {
		s.manager.SendError(c, "INTERNAL", "failed to list entrants")
		return
	}

	if err := s.orch.Start(entrants, seconds); err != nil {
		s.manager.SendError(c, "BAD_START", err.Error())
		return
	}

	if result, err := NewEvent(EventAdminResult, AdminResultPayload{Action: "start"}); err == nil {
		s.manager.SendTo(c, result)
	}
}

func (s *Service) handleAdminReset(c *Connection) {
	if !c.Admin {
		s.manager.SendError(c, "FORBIDDEN", "admin key required")
		return
	}

	result, err := s.orch.Reset()
	if err != nil {
		s.manager.SendError(c, "INTERNAL", err.Error())
		return
	}
	if e, err := NewEvent(EventAdminResult, AdminResultPayload{Action: "reset", Reset: result}); err == nil {
		s.manager.SendTo(c, e)
	}
}

// HandleState is the REST hydration fallback: the same snapshot the event
// channel broadcasts, for clients that have not connected yet. Convenience
// only; correctness never depends on it.
func (s *Service) HandleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(StateUpdatePayload{State: s.orch.Snapshot()}); err != nil {
		log.Debug().Err(err).Msg("failed to write state response")
	}
}

// HandleStats reports live connection counts.
func (s *Service) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.manager.Stats()); err != nil {
		log.Debug().Err(err).Msg("failed to write stats response")
	}
}

// Handler returns the full HTTP surface, CORS-wrapped.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/api/state", s.HandleState)
	mux.HandleFunc("/ws/stats", s.HandleStats)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}
