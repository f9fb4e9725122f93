package room

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/colorgrid/internal/channel"
	"github.com/mcdev12/colorgrid/internal/game"
	"github.com/mcdev12/colorgrid/internal/scores"
)

const (
	waitFor = 5 * time.Second
	tick    = 2 * time.Millisecond
)

type fixture struct {
	t   *testing.T
	bus *channel.Bus
	// timing knobs shared by every session in the room
	tickInterval time.Duration
	reporter     *scores.Reporter
}

func newFixture(t *testing.T, tickInterval time.Duration) *fixture {
	t.Helper()
	return &fixture{
		t:            t,
		bus:          channel.NewBus(),
		tickInterval: tickInterval,
	}
}

func (f *fixture) join(nickname string, authority bool) *Session {
	f.t.Helper()
	sess, err := NewSession(Config{
		RoomCode:     "ROOM01",
		Nickname:     nickname,
		Authority:    authority,
		Channel:      f.bus.Channel("ROOM01"),
		Reporter:     f.reporter,
		TickInterval: f.tickInterval,
		ResyncDelay:  5 * time.Millisecond,
		ResolveDelay: 10 * time.Millisecond,
	})
	require.NoError(f.t, err)
	require.NoError(f.t, sess.Start(context.Background()))
	f.t.Cleanup(func() { sess.Close() })
	return sess
}

func waitPhase(t *testing.T, sess *Session, phase game.Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sess.Snapshot().Phase == phase
	}, waitFor, tick, "waiting for phase %s, have %s", phase, sess.Snapshot().Phase)
}

func waitRoster(t *testing.T, sess *Session, size int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(sess.Snapshot().Players) == size
	}, waitFor, tick)
}

// claimPrincipals fills both roles and returns once every given session has
// seen the round start. With short tick intervals the countdown can finish
// between polls, so landing in picking already counts.
func claimPrincipals(t *testing.T, clueMaker, guesser *Session, observers ...*Session) {
	t.Helper()
	require.NoError(t, clueMaker.ClaimRole(game.RoleClueMaker))
	require.NoError(t, guesser.ClaimRole(game.RoleGuesser))
	for _, sess := range append([]*Session{clueMaker, guesser}, observers...) {
		require.Eventually(t, func() bool {
			switch sess.Snapshot().Phase {
			case game.PhaseCountdown, game.PhasePicking:
				return true
			}
			return false
		}, waitFor, tick)
	}
}

func TestRolesFilled_EntersCountdown(t *testing.T) {
	// A tick interval of an hour keeps the countdown frozen at its start
	// value for the duration of the test.
	f := newFixture(t, time.Hour)
	alice := f.join("alice", true)
	bob := f.join("bob", false)
	waitRoster(t, alice, 2)
	waitRoster(t, bob, 2)

	claimPrincipals(t, alice, bob)

	for _, sess := range []*Session{alice, bob} {
		snap := sess.Snapshot()
		require.NotNil(t, snap.CountdownSeconds)
		assert.Equal(t, game.CountdownStartSeconds, *snap.CountdownSeconds)
		assert.Equal(t, game.RoleClueMaker, snap.PlayerRole("alice"))
		assert.Equal(t, game.RoleGuesser, snap.PlayerRole("bob"))
	}
}

func TestCountdown_RunsToPicking(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	alice := f.join("alice", true)
	bob := f.join("bob", false)
	waitRoster(t, alice, 2)
	waitRoster(t, bob, 2)

	claimPrincipals(t, alice, bob)

	waitPhase(t, alice, game.PhasePicking)
	waitPhase(t, bob, game.PhasePicking)
	assert.Nil(t, alice.Snapshot().CountdownSeconds)
}

func TestRoleReleased_CancelsCountdownEverywhere(t *testing.T) {
	f := newFixture(t, time.Hour)
	alice := f.join("alice", true)
	bob := f.join("bob", false)
	waitRoster(t, alice, 2)
	waitRoster(t, bob, 2)

	claimPrincipals(t, alice, bob)
	require.NoError(t, bob.ReleaseRole())

	waitPhase(t, alice, game.PhaseLobby)
	waitPhase(t, bob, game.PhaseLobby)
	assert.Nil(t, alice.Snapshot().CountdownSeconds)
	assert.Equal(t, game.RoleSpectator, alice.Snapshot().PlayerRole("bob"))
}

func TestRound_WinOnFirstGuess(t *testing.T) {
	var mu sync.Mutex
	var reports []scores.ReportEntry
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e scores.ReportEntry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		mu.Lock()
		reports = append(reports, e)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	f := newFixture(t, 5*time.Millisecond)
	f.reporter = scores.NewReporter(server.URL)
	alice := f.join("alice", true)
	bob := f.join("bob", false)
	waitRoster(t, alice, 2)
	waitRoster(t, bob, 2)

	claimPrincipals(t, alice, bob)
	waitPhase(t, alice, game.PhasePicking)

	require.NoError(t, alice.PickTarget(game.Cell{Row: "d", Col: 12}))
	waitPhase(t, bob, game.PhaseGuessing)
	assert.Equal(t, 1, bob.Snapshot().CurrentGuessNumber)

	require.NoError(t, bob.MakeGuess(game.Cell{Row: "d", Col: 12}))

	waitPhase(t, alice, game.PhaseResult)
	waitPhase(t, bob, game.PhaseResult)

	for _, sess := range []*Session{alice, bob} {
		result := sess.Snapshot().LastRoundResult
		require.NotNil(t, result)
		assert.True(t, result.Won)
		assert.Equal(t, 10, result.Points)
		assert.Equal(t, game.Cell{Row: "d", Col: 12}, result.TargetCell)
		assert.Equal(t, "alice", result.ClueMaker)
		assert.Equal(t, "bob", result.Guesser)
		require.Len(t, result.Guesses, 1)
	}

	// The target stays private until resolution, then is dropped.
	_, held := alice.Target()
	assert.False(t, held)

	// Exactly two score writes: one per principal.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) == 2
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	byRole := map[game.Role]scores.ReportEntry{}
	for _, e := range reports {
		byRole[e.Role] = e
	}
	require.Len(t, byRole, 2)
	assert.Equal(t, "alice", byRole[game.RoleClueMaker].Nickname)
	assert.Equal(t, 10, byRole[game.RoleClueMaker].Points)
	assert.Equal(t, "bob", byRole[game.RoleGuesser].Nickname)
	assert.Equal(t, 0, byRole[game.RoleGuesser].Points)
	for _, e := range reports {
		assert.Equal(t, "ROOM01", e.RoomCode)
		assert.Equal(t, "d12", e.TargetCell)
		require.NotNil(t, e.GuessNumber)
		assert.Equal(t, 1, *e.GuessNumber)
	}
}

func TestRound_LossAfterMaxGuesses(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond)
	alice := f.join("alice", true)
	bob := f.join("bob", false)
	waitRoster(t, alice, 2)
	waitRoster(t, bob, 2)

	claimPrincipals(t, alice, bob)
	waitPhase(t, alice, game.PhasePicking)
	require.NoError(t, alice.PickTarget(game.Cell{Row: "p", Col: 30}))
	waitPhase(t, bob, game.PhaseGuessing)

	for i := 1; i <= game.MaxGuesses; i++ {
		require.Eventually(t, func() bool {
			snap := bob.Snapshot()
			return snap.Phase == game.PhaseGuessing && snap.CurrentGuessNumber == i
		}, waitFor, tick)
		require.NoError(t, bob.MakeGuess(game.Cell{Row: "a", Col: i}))
	}

	waitPhase(t, bob, game.PhaseResult)
	result := bob.Snapshot().LastRoundResult
	require.NotNil(t, result)
	assert.False(t, result.Won)
	assert.Zero(t, result.Points)
	assert.Len(t, result.Guesses, game.MaxGuesses)
	assert.Equal(t, game.Cell{Row: "p", Col: 30}, result.TargetCell)
}

func TestClueMakerLeaves_ForcesLobby(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond)
	alice := f.join("alice", true)
	bob := f.join("bob", false)
	waitRoster(t, alice, 2)
	waitRoster(t, bob, 2)

	claimPrincipals(t, alice, bob)
	waitPhase(t, alice, game.PhasePicking)
	require.NoError(t, alice.PickTarget(game.Cell{Row: "d", Col: 12}))
	waitPhase(t, bob, game.PhaseGuessing)

	require.NoError(t, alice.Close())

	waitPhase(t, bob, game.PhaseLobby)
	snap := bob.Snapshot()
	assert.False(t, snap.HasPlayer("alice"))
	assert.Equal(t, game.RoleSpectator, snap.PlayerRole("bob"))
	assert.Empty(t, snap.Guesses)
	assert.Nil(t, snap.CountdownSeconds)
}

func TestLateJoiner_ConvergesViaStateSync(t *testing.T) {
	f := newFixture(t, time.Hour)
	alice := f.join("alice", true)
	bob := f.join("bob", false)
	waitRoster(t, alice, 2)
	waitRoster(t, bob, 2)
	claimPrincipals(t, alice, bob)

	carol := f.join("carol", false)

	// The authority's delayed baseline brings carol fully up to speed:
	// mid-countdown phase, both role holders, and her own roster entry.
	require.Eventually(t, func() bool {
		snap := carol.Snapshot()
		return snap.Phase == game.PhaseCountdown && len(snap.Players) == 3
	}, waitFor, tick)

	snap := carol.Snapshot()
	assert.Equal(t, game.RoleClueMaker, snap.PlayerRole("alice"))
	assert.Equal(t, game.RoleGuesser, snap.PlayerRole("bob"))
	assert.Equal(t, game.RoleSpectator, snap.PlayerRole("carol"))
	require.NotNil(t, snap.CountdownSeconds)
}

func TestReturnToLobby_AllowsNextRound(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond)
	alice := f.join("alice", true)
	bob := f.join("bob", false)
	waitRoster(t, alice, 2)
	waitRoster(t, bob, 2)

	claimPrincipals(t, alice, bob)
	waitPhase(t, alice, game.PhasePicking)
	require.NoError(t, alice.PickTarget(game.Cell{Row: "b", Col: 2}))
	waitPhase(t, bob, game.PhaseGuessing)
	require.NoError(t, bob.MakeGuess(game.Cell{Row: "b", Col: 2}))
	waitPhase(t, bob, game.PhaseResult)

	require.NoError(t, bob.ReturnToLobby())
	waitPhase(t, alice, game.PhaseLobby)
	waitPhase(t, bob, game.PhaseLobby)

	snap := bob.Snapshot()
	assert.Nil(t, snap.LastRoundResult)
	assert.Equal(t, game.RoleSpectator, snap.PlayerRole("alice"))

	// The room is immediately playable again.
	claimPrincipals(t, bob, alice)
}

func TestActionGuards(t *testing.T) {
	f := newFixture(t, time.Hour)
	alice := f.join("alice", true)
	waitRoster(t, alice, 1)

	assert.Error(t, alice.ClaimRole(game.RoleSpectator))
	assert.Error(t, alice.PickTarget(game.Cell{Row: "z", Col: 99}))
	assert.Error(t, alice.PickTarget(game.Cell{Row: "d", Col: 12}), "picking outside the picking phase")
	assert.Error(t, alice.MakeGuess(game.Cell{Row: "d", Col: 12}), "guessing outside the guessing phase")
}

func TestNewSession_Validation(t *testing.T) {
	bus := channel.NewBus()

	_, err := NewSession(Config{Nickname: "alice", Channel: bus.Channel("X")})
	assert.Error(t, err)
	_, err = NewSession(Config{RoomCode: "ROOM01", Channel: bus.Channel("X")})
	assert.Error(t, err)
	_, err = NewSession(Config{RoomCode: "ROOM01", Nickname: "alice"})
	assert.Error(t, err)
}
