package room

import (
	"github.com/mcdev12/colorgrid/internal/game"
	"github.com/mcdev12/colorgrid/internal/scores"
)

// evaluateOutcome is the round's sole resolution point. It runs on every
// applied event, but acts only when this client is the clue maker, holds the
// locally-private target, and the last guess is terminal — an exact hit or
// the final attempt. No other participant can resolve the round, because no
// other participant knows the target.
func (s *Session) evaluateOutcome(next game.State) {
	if next.Phase != game.PhaseGuessing {
		return
	}
	if next.PlayerRole(s.cfg.Nickname) != game.RoleClueMaker {
		return
	}

	s.mu.RLock()
	target := s.target
	s.mu.RUnlock()
	if target == nil {
		return
	}

	last, ok := next.LastGuess()
	if !ok {
		return
	}

	won := last.Cell() == *target
	if !won && last.GuessNumber < game.MaxGuesses {
		return
	}

	points := 0
	if won {
		points = game.PointsForGuess(last.GuessNumber)
	}
	clueMaker, _ := next.NicknameWithRole(game.RoleClueMaker)
	guesser, _ := next.NicknameWithRole(game.RoleGuesser)

	result := game.RoundResult{
		TargetCell: *target,
		Guesses:    append([]game.Guess(nil), next.Guesses...),
		Points:     points,
		ClueMaker:  clueMaker,
		Guesser:    guesser,
		Won:        won,
	}

	// Dropping the target here makes resolution exactly-once: a re-applied
	// guess or a resync of the same terminal state finds nothing to judge
	// against.
	s.mu.Lock()
	s.target = nil
	s.mu.Unlock()

	go s.resolveRound(result, last.GuessNumber)
}

// resolveRound publishes game_over after the render delay and issues the two
// best-effort score writes.
func (s *Session) resolveRound(result game.RoundResult, lastGuessNumber int) {
	select {
	case <-s.clock.After(s.cfg.ResolveDelay):
	case <-s.ctx.Done():
		return
	}

	if err := s.publish(game.GameOver(result)); err != nil {
		s.logger.Error().Err(err).Msg("game over broadcast failed")
		return
	}

	if s.cfg.Reporter == nil {
		return
	}

	var guessNumber *int
	if result.Won {
		n := lastGuessNumber
		guessNumber = &n
	}
	targetCell := result.TargetCell.String()

	s.cfg.Reporter.Report(s.ctx, scores.ReportEntry{
		RoomCode:    s.cfg.RoomCode,
		Nickname:    result.ClueMaker,
		Role:        game.RoleClueMaker,
		Points:      result.Points,
		GuessNumber: guessNumber,
		TargetCell:  targetCell,
	})
	s.cfg.Reporter.Report(s.ctx, scores.ReportEntry{
		RoomCode:    s.cfg.RoomCode,
		Nickname:    result.Guesser,
		Role:        game.RoleGuesser,
		Points:      0,
		GuessNumber: guessNumber,
		TargetCell:  targetCell,
	})
}
