package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forumchat/internal/logger"
	"github.com/forumchat/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

func (r *PgChatRepository) Create(ctx context.Context, c *model.Chat) error {
	defer logger.DeferLogDuration("chat.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chats (id, created_at, updated_at) VALUES ($1, $2, $3)`,
		c.ID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.Create: %w", err)
	}
	for i, username := range c.Participants {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO chat_participants (chat_id, username, position)
			 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			c.ID, username, i,
		)
		if err != nil {
			return fmt.Errorf("chatRepo.Create participant: %w", err)
		}
	}
	for _, m := range c.Messages {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO chat_messages (chat_id, message_id) VALUES ($1, $2)`,
			c.ID, m.ID,
		)
		if err != nil {
			return fmt.Errorf("chatRepo.Create message link: %w", err)
		}
	}
	return nil
}

func (r *PgChatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetByID", time.Now())()
	c := &model.Chat{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, created_at, updated_at FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetByID: %w", err)
	}

	participants, err := r.getParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Participants = participants

	messages, err := r.getMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Messages = messages
	return c, nil
}

func (r *PgChatRepository) getParticipants(ctx context.Context, chatID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT username FROM chat_participants WHERE chat_id = $1 ORDER BY position`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.getParticipants query: %w", err)
	}
	defer rows.Close()

	participants := make([]string, 0, 2)
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("chatRepo.getParticipants scan: %w", err)
		}
		participants = append(participants, username)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.getParticipants rows: %w", err)
	}
	return participants, nil
}

func (r *PgChatRepository) getMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.content, m.sender, m.sent_at, m.msg_type
		 FROM messages m
		 JOIN chat_messages cm ON cm.message_id = m.id
		 WHERE cm.chat_id = $1
		 ORDER BY cm.seq`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.getMessages query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, 16)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.Content, &m.Sender, &m.SentAt, &m.Type); err != nil {
			return nil, fmt.Errorf("chatRepo.getMessages scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.getMessages rows: %w", err)
	}
	return messages, nil
}

func (r *PgChatRepository) AppendMessage(ctx context.Context, chatID, messageID string) error {
	defer logger.DeferLogDuration("chat.AppendMessage", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE chats SET updated_at = now() WHERE id = $1`, chatID,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.AppendMessage touch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO chat_messages (chat_id, message_id) VALUES ($1, $2)`,
		chatID, messageID,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.AppendMessage link: %w", err)
	}
	return nil
}

func (r *PgChatRepository) AddParticipant(ctx context.Context, chatID, username string) error {
	defer logger.DeferLogDuration("chat.AddParticipant", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE chats SET updated_at = now() WHERE id = $1`, chatID,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.AddParticipant touch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO chat_participants (chat_id, username, position)
		 SELECT $1, $2, COALESCE(MAX(position) + 1, 0) FROM chat_participants WHERE chat_id = $1
		 ON CONFLICT DO NOTHING`,
		chatID, username,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.AddParticipant insert: %w", err)
	}
	return nil
}

func (r *PgChatRepository) FindIDsByParticipant(ctx context.Context, username string) ([]string, error) {
	defer logger.DeferLogDuration("chat.FindIDsByParticipant", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id
		 FROM chats c
		 JOIN chat_participants cp ON cp.chat_id = c.id
		 WHERE cp.username = $1
		 ORDER BY c.created_at`, username,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.FindIDsByParticipant query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("chatRepo.FindIDsByParticipant scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.FindIDsByParticipant rows: %w", err)
	}
	return ids, nil
}
