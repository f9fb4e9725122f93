// Package room runs one participant's half of the synchronization protocol:
// it owns the local mirror of the shared game state, feeds every received
// event through the pure reducer, and layers the role-dependent behavior on
// top — the authority's countdown ticker and resync broadcasts, and the clue
// maker's round resolution.
package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colorgrid/internal/channel"
	"github.com/mcdev12/colorgrid/internal/game"
	"github.com/mcdev12/colorgrid/internal/scores"
)

const (
	// TickInterval is the length of one countdown "second".
	TickInterval = time.Second

	// ResyncDelay is how long the authority waits after observing a
	// player_joined before pushing a baseline snapshot to the newcomer.
	ResyncDelay = 100 * time.Millisecond

	// ResolveDelay is the pause between the terminal guess and the
	// game_over broadcast, so the final guess renders before the phase
	// flips.
	ResolveDelay = 500 * time.Millisecond

	inboxSize = 256
)

// Config configures a Session.
type Config struct {
	RoomCode string
	Nickname string

	// Authority marks the room creator. Exactly one participant per room
	// should set it; the engine takes it on trust (it is a peer convention,
	// not an enforced lease).
	Authority bool

	Channel  channel.Channel
	Reporter *scores.Reporter // optional; nil disables score writes

	// Clock defaults to the real clock. Tests inject a fake.
	Clock clockwork.Clock

	// OnChange, if set, is called with a snapshot after every applied
	// event, from the session goroutine.
	OnChange func(game.State)

	// Timing overrides; zero values take the package defaults.
	TickInterval time.Duration
	ResyncDelay  time.Duration
	ResolveDelay time.Duration
}

// Session is one participant's connection to a room.
type Session struct {
	cfg     Config
	reducer game.Reducer
	clock   clockwork.Clock
	logger  zerolog.Logger

	inbox chan game.Event

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	state  game.State
	target *game.Cell

	// owned by the session goroutine
	stopCountdown context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a session. Call Start to join the room.
func NewSession(cfg Config) (*Session, error) {
	if cfg.RoomCode == "" {
		return nil, fmt.Errorf("room code is required")
	}
	if cfg.Nickname == "" {
		return nil, fmt.Errorf("nickname is required")
	}
	if cfg.Channel == nil {
		return nil, fmt.Errorf("channel is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = TickInterval
	}
	if cfg.ResyncDelay <= 0 {
		cfg.ResyncDelay = ResyncDelay
	}
	if cfg.ResolveDelay <= 0 {
		cfg.ResolveDelay = ResolveDelay
	}

	return &Session{
		cfg:     cfg,
		reducer: game.Reducer{Nickname: cfg.Nickname, Authority: cfg.Authority},
		clock:   cfg.Clock,
		logger: log.With().
			Str("room_code", cfg.RoomCode).
			Str("nickname", cfg.Nickname).
			Bool("authority", cfg.Authority).
			Logger(),
		inbox: make(chan game.Event, inboxSize),
		done:  make(chan struct{}),
		state: game.NewState(),
	}, nil
}

// Start subscribes to the room channel and, once the subscription is live,
// announces presence. The session's own player_joined arrives back through
// self-delivery and is reduced like anyone else's.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	err := s.cfg.Channel.Subscribe(ctx, func(ev game.Event) {
		select {
		case s.inbox <- ev:
		default:
			// The next authority resync heals whatever a full inbox drops.
			s.logger.Warn().Str("event_type", string(ev.Type)).Msg("inbox full, dropping event")
		}
	})
	if err != nil {
		s.cancel()
		return fmt.Errorf("subscribe to room: %w", err)
	}

	go s.loop()

	if err := s.publish(game.PlayerJoined(s.cfg.Nickname)); err != nil {
		return fmt.Errorf("announce presence: %w", err)
	}

	s.logger.Info().Msg("joined room")
	return nil
}

// Close announces departure and tears the session down. Safe to call more
// than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		// Best-effort farewell; peers also converge via the authority (or,
		// if we are the authority, the room dissolves with us).
		if err := s.publish(game.PlayerLeft(s.cfg.Nickname)); err != nil {
			s.logger.Warn().Err(err).Msg("failed to announce departure")
		}
		s.cancel()
		<-s.done
		s.closeErr = s.cfg.Channel.Close()
		s.logger.Info().Msg("left room")
	})
	return s.closeErr
}

// Snapshot returns a copy of the current local state.
func (s *Session) Snapshot() game.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// MyRole returns the local participant's current role.
func (s *Session) MyRole() game.Role {
	return s.Snapshot().PlayerRole(s.cfg.Nickname)
}

// Target returns the locally-held target cell, if this client picked one
// this round. It is never part of the shared state.
func (s *Session) Target() (game.Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.target == nil {
		return game.Cell{}, false
	}
	return *s.target, true
}

// ClaimRole optimistically claims a principal role. Contention is resolved
// by each peer's reducer; the authority's next sync settles disagreements.
func (s *Session) ClaimRole(role game.Role) error {
	if !role.Principal() {
		return fmt.Errorf("role %q cannot be claimed", role)
	}
	return s.publish(game.RoleClaimed(s.cfg.Nickname, role))
}

// ReleaseRole reverts the local participant to spectator.
func (s *Session) ReleaseRole() error {
	return s.publish(game.RoleReleased(s.cfg.Nickname))
}

// PickTarget records the target cell locally and confirms the pick to the
// room. Only the cell's existence is broadcast, never the cell.
func (s *Session) PickTarget(cell game.Cell) error {
	if !cell.Valid() {
		return fmt.Errorf("cell %s is off the grid", cell)
	}
	snap := s.Snapshot()
	if snap.Phase != game.PhasePicking {
		return fmt.Errorf("cannot pick a target during %s", snap.Phase)
	}
	if snap.PlayerRole(s.cfg.Nickname) != game.RoleClueMaker {
		return fmt.Errorf("only the clue maker picks the target")
	}

	s.mu.Lock()
	c := cell
	s.target = &c
	s.mu.Unlock()

	return s.publish(game.TargetConfirmed())
}

// MakeGuess submits a guess at the target cell.
func (s *Session) MakeGuess(cell game.Cell) error {
	if !cell.Valid() {
		return fmt.Errorf("cell %s is off the grid", cell)
	}
	snap := s.Snapshot()
	if snap.Phase != game.PhaseGuessing {
		return fmt.Errorf("cannot guess during %s", snap.Phase)
	}
	if snap.PlayerRole(s.cfg.Nickname) != game.RoleGuesser {
		return fmt.Errorf("only the guesser guesses")
	}

	guess := game.Guess{Row: cell.Row, Col: cell.Col, GuessNumber: snap.CurrentGuessNumber}
	return s.publish(game.GuessMade(guess))
}

// ReturnToLobby resets the room for another round.
func (s *Session) ReturnToLobby() error {
	return s.publish(game.ReturnToLobby())
}

func (s *Session) publish(ev game.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.cfg.Channel.Publish(ctx, ev)
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.cancelCountdown()
			return
		case ev := <-s.inbox:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev game.Event) {
	s.mu.RLock()
	prev := s.state
	s.mu.RUnlock()

	next, err := s.reducer.Apply(prev, ev)
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("dropping unreducible event")
		return
	}

	s.mu.Lock()
	s.state = next
	// A round that regressed to the lobby abandons any held target.
	if next.Phase == game.PhaseLobby {
		s.target = nil
	}
	s.mu.Unlock()

	if s.cfg.OnChange != nil {
		s.cfg.OnChange(next.Clone())
	}

	if s.cfg.Authority {
		s.authorityDuties(next, ev)
	}
	s.evaluateOutcome(next)
}

// authorityDuties runs after every reduction on the authority only: it
// re-broadcasts the post-reduction snapshot, pushes a delayed baseline at
// new joiners, and drives the countdown ticker's lifecycle.
func (s *Session) authorityDuties(next game.State, ev game.Event) {
	if ev.Type != game.EventStateSync {
		if err := s.publish(game.StateSync(next)); err != nil {
			s.logger.Warn().Err(err).Msg("state sync broadcast failed")
		}
	}

	if ev.Type == game.EventPlayerJoined {
		s.scheduleResync()
	}

	switch {
	case next.Phase == game.PhaseCountdown && s.stopCountdown == nil:
		start := game.CountdownStartSeconds
		if next.CountdownSeconds != nil {
			start = *next.CountdownSeconds
		}
		s.startCountdown(start)
	case next.Phase != game.PhaseCountdown:
		s.cancelCountdown()
	}
}

// scheduleResync gives a new participant an authoritative baseline shortly
// after their join, in case their subscription raced in-flight events.
func (s *Session) scheduleResync() {
	go func() {
		select {
		case <-s.clock.After(s.cfg.ResyncDelay):
		case <-s.ctx.Done():
			return
		}
		if err := s.publish(game.StateSync(s.Snapshot())); err != nil {
			s.logger.Warn().Err(err).Msg("delayed state sync failed")
		}
	}()
}
