package game

// Reducer applies protocol events to a State. It is pure: no I/O, no clocks,
// and the input State is never mutated. Every participant, the sender
// included, runs the same reduction for every event it receives, which is
// what keeps independently-held copies convergent.
//
// Semantic rejections (claiming a taken role, a guess outside the guessing
// phase, a tick after the countdown ended) return the state unchanged rather
// than an error: on an at-least-once, reorderable transport a stale event is
// expected traffic, not a fault. Re-applying an event whose effect the state
// already reflects is always safe.
type Reducer struct {
	// Nickname identifies the local participant; state_sync reconciliation
	// re-inserts it if an authoritative snapshot predates our join.
	Nickname string

	// Authority marks the room creator. Authorities are the source of
	// state_sync snapshots and never apply incoming ones.
	Authority bool
}

// Apply reduces one event against s and returns the next state. The only
// error cases are malformed payloads and unknown event types.
func (r Reducer) Apply(s State, ev Event) (State, error) {
	payload, err := ParsePayload(ev)
	if err != nil {
		return s, err
	}

	switch ev.Type {
	case EventPlayerJoined:
		return r.applyPlayerJoined(s, payload.(PlayerJoinedPayload)), nil
	case EventPlayerLeft:
		return r.applyPlayerLeft(s, payload.(PlayerLeftPayload)), nil
	case EventRoleClaimed:
		return r.applyRoleClaimed(s, payload.(RoleClaimedPayload)), nil
	case EventRoleReleased:
		return r.applyRoleReleased(s, payload.(RoleReleasedPayload)), nil
	case EventCountdownTick:
		return r.applyCountdownTick(s, payload.(CountdownTickPayload)), nil
	case EventCountdownCancel:
		return r.applyCountdownCancel(s), nil
	case EventTargetConfirmed:
		return r.applyTargetConfirmed(s), nil
	case EventGuessMade:
		return r.applyGuessMade(s, payload.(GuessMadePayload)), nil
	case EventGameOver:
		return r.applyGameOver(s, payload.(GameOverPayload)), nil
	case EventReturnToLobby:
		return r.applyReturnToLobby(s), nil
	case EventStateSync:
		return r.applySync(s, payload.(StateSyncPayload)), nil
	}
	// ParsePayload already rejected unknown types.
	return s, nil
}

func (r Reducer) applyPlayerJoined(s State, p PlayerJoinedPayload) State {
	if s.HasPlayer(p.Nickname) {
		return s
	}
	next := s.Clone()
	next.Players = append(next.Players, Player{Nickname: p.Nickname, Role: RoleSpectator})
	return next
}

func (r Reducer) applyPlayerLeft(s State, p PlayerLeftPayload) State {
	if !s.HasPlayer(p.Nickname) {
		return s
	}
	leavingRole := s.PlayerRole(p.Nickname)

	next := s.Clone()
	remaining := next.Players[:0]
	for _, pl := range next.Players {
		if pl.Nickname != p.Nickname {
			remaining = append(remaining, pl)
		}
	}
	next.Players = remaining

	// An active round cannot continue with a missing principal: abandon it
	// and send everyone back to the lobby.
	if leavingRole.Principal() && s.Phase != PhaseLobby && s.Phase != PhaseResult {
		for i := range next.Players {
			next.Players[i].Role = RoleSpectator
		}
		next.Phase = PhaseLobby
		next.Guesses = []Guess{}
		next.CurrentGuessNumber = 0
		next.CountdownSeconds = nil
	}
	return next
}

func (r Reducer) applyRoleClaimed(s State, p RoleClaimedPayload) State {
	if !p.Role.Principal() {
		return s
	}
	// First claim applied wins; a competing claim is rejected against this
	// copy of the state. Two peers can still transiently disagree until the
	// authority's next state_sync settles it.
	if holder, ok := s.NicknameWithRole(p.Role); ok && holder != p.Nickname {
		return s
	}
	if !s.HasPlayer(p.Nickname) {
		return s
	}

	next := s.Clone()
	for i := range next.Players {
		if next.Players[i].Nickname == p.Nickname {
			next.Players[i].Role = p.Role
		}
	}

	_, hasClueMaker := next.NicknameWithRole(RoleClueMaker)
	_, hasGuesser := next.NicknameWithRole(RoleGuesser)
	if hasClueMaker && hasGuesser && next.Phase == PhaseLobby {
		next.Phase = PhaseCountdown
		seconds := CountdownStartSeconds
		next.CountdownSeconds = &seconds
	}
	return next
}

func (r Reducer) applyRoleReleased(s State, p RoleReleasedPayload) State {
	next := s.Clone()
	for i := range next.Players {
		if next.Players[i].Nickname == p.Nickname {
			next.Players[i].Role = RoleSpectator
		}
	}
	if next.Phase == PhaseCountdown {
		next.Phase = PhaseLobby
		next.CountdownSeconds = nil
	}
	return next
}

func (r Reducer) applyCountdownTick(s State, p CountdownTickPayload) State {
	// A tick that arrives after the countdown was cancelled or completed is
	// stale traffic.
	if s.Phase != PhaseCountdown {
		return s
	}
	next := s.Clone()
	if p.Seconds <= 0 {
		next.Phase = PhasePicking
		next.CountdownSeconds = nil
		return next
	}
	seconds := p.Seconds
	next.CountdownSeconds = &seconds
	return next
}

func (r Reducer) applyCountdownCancel(s State) State {
	next := s.Clone()
	next.Phase = PhaseLobby
	next.CountdownSeconds = nil
	return next
}

func (r Reducer) applyTargetConfirmed(s State) State {
	if s.Phase != PhasePicking {
		return s
	}
	next := s.Clone()
	next.Phase = PhaseGuessing
	next.CurrentGuessNumber = 1
	next.Guesses = []Guess{}
	return next
}

func (r Reducer) applyGuessMade(s State, p GuessMadePayload) State {
	if s.Phase != PhaseGuessing || len(s.Guesses) >= MaxGuesses {
		return s
	}
	next := s.Clone()
	next.Guesses = append(next.Guesses, p.Guess)
	next.CurrentGuessNumber++
	return next
}

func (r Reducer) applyGameOver(s State, p GameOverPayload) State {
	// A resolution for a round the room already abandoned is ignored.
	if s.Phase != PhaseGuessing {
		return s
	}
	next := s.Clone()
	result := p.Result
	next.Phase = PhaseResult
	next.LastRoundResult = &result
	next.CountdownSeconds = nil
	return next
}

func (r Reducer) applyReturnToLobby(s State) State {
	next := s.Clone()
	next.Phase = PhaseLobby
	for i := range next.Players {
		next.Players[i].Role = RoleSpectator
	}
	next.Guesses = []Guess{}
	next.CurrentGuessNumber = 0
	next.CountdownSeconds = nil
	next.LastRoundResult = nil
	return next
}

func (r Reducer) applySync(s State, p StateSyncPayload) State {
	// The authority is the source of snapshots; applying one that bounced
	// back through self-delivery would be circular.
	if r.Authority {
		return s
	}
	next := p.State.Clone()
	if next.Players == nil {
		next.Players = []Player{}
	}
	if next.Guesses == nil {
		next.Guesses = []Guess{}
	}
	// A snapshot captured before the authority observed our player_joined
	// would otherwise evict us from our own roster.
	if !next.HasPlayer(r.Nickname) {
		next.Players = append(next.Players, Player{Nickname: r.Nickname, Role: RoleSpectator})
	}
	return next
}
