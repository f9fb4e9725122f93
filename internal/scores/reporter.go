// Package scores holds the score-persistence boundary: the fire-and-forget
// reporter the game engine calls when a round resolves, and the small HTTP
// service plus Postgres repository that receive those writes.
package scores

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colorgrid/internal/game"
)

// ReportEntry is the body of one score write.
type ReportEntry struct {
	RoomCode    string    `json:"roomCode"`
	Nickname    string    `json:"nickname"`
	Role        game.Role `json:"role"`
	Points      int       `json:"points"`
	GuessNumber *int      `json:"guessNumber"`
	TargetCell  string    `json:"targetCell"`
}

// Reporter posts score records to the scores service. Writes are best-effort
// telemetry: failures are logged and swallowed, never retried, and the game
// never waits on them.
type Reporter struct {
	baseURL string
	client  *http.Client
}

// NewReporter creates a reporter against baseURL. An empty baseURL disables
// reporting.
func NewReporter(baseURL string) *Reporter {
	return &Reporter{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Report performs one score write.
func (r *Reporter) Report(ctx context.Context, e ReportEntry) {
	if r.baseURL == "" {
		return
	}
	if err := r.post(ctx, e); err != nil {
		log.Warn().
			Err(err).
			Str("room_code", e.RoomCode).
			Str("nickname", e.Nickname).
			Msg("score report failed")
	}
}

func (r *Reporter) post(ctx context.Context, e ReportEntry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal score entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/color-game/scores", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post score: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("scores API returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
