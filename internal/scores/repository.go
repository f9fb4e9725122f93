package scores

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Score is one persisted row of the color_game_scores table.
type Score struct {
	ID          int64     `json:"id"`
	RoomCode    string    `json:"room_code"`
	Nickname    string    `json:"nickname"`
	Role        string    `json:"role"`
	Points      int       `json:"points"`
	GuessNumber *int      `json:"guess_number"`
	TargetCell  *string   `json:"target_cell"`
	CreatedAt   time.Time `json:"created_at"`
}

// LeaderboardRow is one aggregated leaderboard entry for a room.
type LeaderboardRow struct {
	Nickname     string `json:"nickname"`
	TotalPoints  int64  `json:"total_points"`
	RoundsPlayed int64  `json:"rounds_played"`
}

// Repository persists and aggregates scores.
type Repository interface {
	InsertScore(ctx context.Context, s Score) (Score, error)
	Leaderboard(ctx context.Context, roomCode string) ([]LeaderboardRow, error)
}

// PostgresRepository is the pgx-backed Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository wraps a pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) InsertScore(ctx context.Context, s Score) (Score, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO color_game_scores (room_code, nickname, role, points, guess_number, target_cell)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, room_code, nickname, role, points, guess_number, target_cell, created_at`,
		s.RoomCode, s.Nickname, s.Role, s.Points, s.GuessNumber, s.TargetCell,
	)

	var out Score
	if err := row.Scan(&out.ID, &out.RoomCode, &out.Nickname, &out.Role, &out.Points,
		&out.GuessNumber, &out.TargetCell, &out.CreatedAt); err != nil {
		return Score{}, fmt.Errorf("insert score: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Leaderboard(ctx context.Context, roomCode string) ([]LeaderboardRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT nickname, SUM(points) AS total_points, COUNT(*) AS rounds_played
		 FROM color_game_scores
		 WHERE room_code = $1
		 GROUP BY nickname
		 ORDER BY total_points DESC`,
		roomCode,
	)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	board := []LeaderboardRow{}
	for rows.Next() {
		var lr LeaderboardRow
		if err := rows.Scan(&lr.Nickname, &lr.TotalPoints, &lr.RoundsPlayed); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		board = append(board, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return board, nil
}
