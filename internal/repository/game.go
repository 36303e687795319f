package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/forumchat/internal/logger"
	"github.com/forumchat/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgGameRepository struct {
	pool *pgxpool.Pool
}

func NewGameRepository(pool *pgxpool.Pool) *PgGameRepository {
	return &PgGameRepository{pool: pool}
}

func (r *PgGameRepository) Create(ctx context.Context, g *model.GameInstance) error {
	defer logger.DeferLogDuration("game.Create", time.Now())()
	moves, err := json.Marshal(g.State.Moves)
	if err != nil {
		return fmt.Errorf("gameRepo.Create marshal moves: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO games (id, game_type, players, status, remaining_objects, moves, winners, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		g.GameID, g.GameType, g.Players, g.State.Status, g.State.RemainingObjects,
		moves, g.State.Winners, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("gameRepo.Create: %w", err)
	}
	return nil
}

func (r *PgGameRepository) GetByID(ctx context.Context, id string) (*model.GameInstance, error) {
	defer logger.DeferLogDuration("game.GetByID", time.Now())()
	g, err := scanGame(r.pool.QueryRow(ctx,
		`SELECT id, game_type, players, status, remaining_objects, moves, winners, created_at, updated_at
		 FROM games WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gameRepo.GetByID: %w", err)
	}
	return g, nil
}

func (r *PgGameRepository) Update(ctx context.Context, g *model.GameInstance) error {
	defer logger.DeferLogDuration("game.Update", time.Now())()
	moves, err := json.Marshal(g.State.Moves)
	if err != nil {
		return fmt.Errorf("gameRepo.Update marshal moves: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE games
		 SET players = $2, status = $3, remaining_objects = $4, moves = $5, winners = $6, updated_at = $7
		 WHERE id = $1`,
		g.GameID, g.Players, g.State.Status, g.State.RemainingObjects, moves, g.State.Winners, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("gameRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgGameRepository) ListByStatus(ctx context.Context, status model.GameStatus) ([]model.GameInstance, error) {
	defer logger.DeferLogDuration("game.ListByStatus", time.Now())()
	// Empty status means no filter.
	rows, err := r.pool.Query(ctx,
		`SELECT id, game_type, players, status, remaining_objects, moves, winners, created_at, updated_at
		 FROM games WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC`, status,
	)
	if err != nil {
		return nil, fmt.Errorf("gameRepo.ListByStatus query: %w", err)
	}
	defer rows.Close()

	games := make([]model.GameInstance, 0, 8)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("gameRepo.ListByStatus scan: %w", err)
		}
		games = append(games, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gameRepo.ListByStatus rows: %w", err)
	}
	return games, nil
}

func scanGame(row pgx.Row) (*model.GameInstance, error) {
	g := &model.GameInstance{}
	var moves []byte
	err := row.Scan(&g.GameID, &g.GameType, &g.Players, &g.State.Status,
		&g.State.RemainingObjects, &moves, &g.State.Winners, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if g.Players == nil {
		g.Players = []string{}
	}
	if err := json.Unmarshal(moves, &g.State.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves: %w", err)
	}
	if g.State.Moves == nil {
		g.State.Moves = []model.GameMove{}
	}
	return g, nil
}
