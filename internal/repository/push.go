package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/forumchat/internal/logger"
	"github.com/forumchat/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgPushSubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewPushSubscriptionRepository(pool *pgxpool.Pool) *PgPushSubscriptionRepository {
	return &PgPushSubscriptionRepository{pool: pool}
}

func (r *PgPushSubscriptionRepository) Save(ctx context.Context, sub *model.PushSubscription) error {
	defer logger.DeferLogDuration("push.Save", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO push_subscriptions (username, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (endpoint) DO UPDATE SET username = $1, p256dh = $3, auth = $4`,
		sub.Username, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("pushRepo.Save: %w", err)
	}
	return nil
}

func (r *PgPushSubscriptionRepository) Delete(ctx context.Context, endpoint string) error {
	defer logger.DeferLogDuration("push.Delete", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = $1`,
		endpoint,
	)
	if err != nil {
		return fmt.Errorf("pushRepo.Delete: %w", err)
	}
	return nil
}

func (r *PgPushSubscriptionRepository) ListByUser(ctx context.Context, username string) ([]model.PushSubscription, error) {
	defer logger.DeferLogDuration("push.ListByUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT username, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE username = $1`, username,
	)
	if err != nil {
		return nil, fmt.Errorf("pushRepo.ListByUser query: %w", err)
	}
	defer rows.Close()

	subs := make([]model.PushSubscription, 0, 2)
	for rows.Next() {
		var s model.PushSubscription
		if err := rows.Scan(&s.Username, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("pushRepo.ListByUser scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pushRepo.ListByUser rows: %w", err)
	}
	return subs, nil
}
