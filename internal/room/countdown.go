package room

import (
	"context"

	"github.com/mcdev12/colorgrid/internal/game"
)

// startCountdown launches the authority's ticker. Remaining seconds are
// computed from elapsed wall-clock time rather than counted ticks, so a
// delayed tick cannot stretch the countdown. Called only from the session
// goroutine.
func (s *Session) startCountdown(startSeconds int) {
	ctx, cancel := context.WithCancel(s.ctx)
	s.stopCountdown = cancel
	go s.runCountdown(ctx, startSeconds)
}

// cancelCountdown is the single exit path for the ticker. It covers every
// way out of the countdown phase: natural expiry, role release, departure,
// and session shutdown. Called only from the session goroutine.
func (s *Session) cancelCountdown() {
	if s.stopCountdown != nil {
		s.stopCountdown()
		s.stopCountdown = nil
	}
}

func (s *Session) runCountdown(ctx context.Context, startSeconds int) {
	start := s.clock.Now()
	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			elapsed := int(s.clock.Since(start) / s.cfg.TickInterval)
			remaining := startSeconds - elapsed
			if err := s.publish(game.CountdownTick(remaining)); err != nil {
				s.logger.Warn().Err(err).Int("seconds", remaining).Msg("countdown tick failed")
			}
			if remaining <= 0 {
				// The reducer moves the room to picking; authorityDuties
				// will observe the phase change and call cancelCountdown,
				// but this goroutine is already done.
				return
			}
		}
	}
}
