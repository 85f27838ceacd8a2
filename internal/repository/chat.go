package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumora-ai/lumora/internal/domain"
)

// ChatRepository persists question/answer exchanges per user.
type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

// Create stores a new exchange. Sources are serialized to JSONB.
func (r *ChatRepository) Create(ctx context.Context, exchange *domain.ChatExchange) error {
	if err := domain.ValidateChatExchange(exchange); err != nil {
		return err
	}

	sourcesJSON, err := json.Marshal(exchange.Sources)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO chat_exchanges (id, user_id, question, answer, sources, processing_secs, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		exchange.ID,
		exchange.UserID,
		exchange.Question,
		exchange.Answer,
		sourcesJSON,
		exchange.ProcessingSecs,
		exchange.CreatedAt,
	)
	return err
}

// GetByUserAndID fetches a single exchange owned by the user.
func (r *ChatRepository) GetByUserAndID(ctx context.Context, userID, id string) (*domain.ChatExchange, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, question, answer, sources, processing_secs, created_at
		 FROM chat_exchanges
		 WHERE user_id = $1 AND id = $2`,
		userID, id,
	)

	exchange, err := scanChatExchange(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrExchangeNotFound
		}
		return nil, err
	}
	return exchange, nil
}

// ListByUser returns the user's most recent exchanges, newest first. A limit
// of zero or less returns all exchanges.
func (r *ChatRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.ChatExchange, error) {
	query := `
		SELECT id, user_id, question, answer, sources, processing_secs, created_at
		FROM chat_exchanges
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []interface{}{userID}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exchanges := make([]*domain.ChatExchange, 0)
	for rows.Next() {
		exchange, err := scanChatExchange(rows)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, exchange)
	}

	return exchanges, rows.Err()
}

// DeleteByUser removes every exchange for the user and reports how many rows
// were removed.
func (r *ChatRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM chat_exchanges WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// CountByUser returns the number of stored exchanges for the user.
func (r *ChatRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_exchanges WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func scanChatExchange(row pgx.Row) (*domain.ChatExchange, error) {
	var exchange domain.ChatExchange
	var sourcesJSON []byte

	err := row.Scan(
		&exchange.ID,
		&exchange.UserID,
		&exchange.Question,
		&exchange.Answer,
		&sourcesJSON,
		&exchange.ProcessingSecs,
		&exchange.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	exchange.Sources = make([]domain.SourceRef, 0)
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &exchange.Sources); err != nil {
			return nil, err
		}
	}

	return &exchange, nil
}
