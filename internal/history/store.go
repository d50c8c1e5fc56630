package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlasdesk/atlas/internal/log"
)

// Querier defines the database operations the Store needs. Interfaces
// are defined by the consumer, not the provider: this keeps Store
// testable against a fake without a running database.
type Querier interface {
	// TouchConversation upserts the conversation row and refreshes
	// last_active_at, restarting the expiry window. If the conversation
	// had already expired (last active before activeSince), its stale
	// messages are discarded: the conversation restarts empty rather
	// than resurrecting pre-expiry context.
	TouchConversation(ctx context.Context, id string, activeSince time.Time) error

	// InsertMessage appends one message to the conversation log.
	InsertMessage(ctx context.Context, conversationID, role string, payload []byte) error

	// ListMessages returns the most recent limit messages of a
	// conversation in insertion order, provided the conversation was
	// active within the expiry window. An expired or unknown
	// conversation returns no rows.
	ListMessages(ctx context.Context, conversationID string, activeSince time.Time, limit int32) ([]rawMessage, error)

	// DeleteExpired removes conversations (and, via cascade, their
	// messages) that have been inactive since before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// rawMessage is a message row before JSONB decoding.
type rawMessage struct {
	ID        int64
	Role      string
	Payload   []byte
	CreatedAt time.Time
}

// Store manages conversation history with a PostgreSQL backend.
//
// Reads never fail a request: if the database is unreachable or a row is
// malformed, Load degrades to an empty history and logs the problem, so
// the caller still gets an answer (without prior context).
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	ttl     time.Duration
	limit   int32
	logger  log.Logger
}

// New creates a Store.
//
// ttl is the inactivity window after which a conversation expires.
// limit caps how many prior messages Load returns.
func New(querier Querier, ttl time.Duration, limit int32, logger log.Logger) (*Store, error) {
	if querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive, got %v", ttl)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Store{
		querier: querier,
		ttl:     ttl,
		limit:   limit,
		logger:  logger,
	}, nil
}

// Load returns the conversation's prior messages in chronological order.
// Expired or unknown conversations yield an empty slice. Load never
// returns an error: persistence problems are logged and treated as an
// empty history so the conversation can proceed.
func (s *Store) Load(ctx context.Context, conversationID string) []*ai.Message {
	activeSince := time.Now().Add(-s.ttl)

	rows, err := s.querier.ListMessages(ctx, conversationID, activeSince, s.limit)
	if err != nil {
		s.logger.Warn("failed to load conversation history, continuing without context",
			"conversation_id", conversationID,
			"error", err)
		return nil
	}

	messages := make([]*ai.Message, 0, len(rows))
	for _, row := range rows {
		var content []*ai.Part
		if err := json.Unmarshal(row.Payload, &content); err != nil {
			s.logger.Warn("skipping malformed history message",
				"conversation_id", conversationID,
				"message_id", row.ID,
				"error", err)
			continue
		}
		messages = append(messages, &ai.Message{
			Role:    ai.Role(row.Role),
			Content: content,
		})
	}

	s.logger.Debug("loaded conversation history",
		"conversation_id", conversationID,
		"count", len(messages))
	return messages
}

// Append persists messages to the conversation and refreshes its expiry
// window. Messages are written in order; the first failure aborts the
// rest.
func (s *Store) Append(ctx context.Context, conversationID string, messages ...*ai.Message) error {
	if len(messages) == 0 {
		return nil
	}

	if err := s.querier.TouchConversation(ctx, conversationID, time.Now().Add(-s.ttl)); err != nil {
		return fmt.Errorf("touching conversation %s: %w", conversationID, err)
	}

	for i, msg := range messages {
		for j, part := range msg.Content {
			if part == nil {
				return fmt.Errorf("message %d has nil content at index %d", i, j)
			}
		}

		payload, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("marshaling message %d: %w", i, err)
		}
		if err := s.querier.InsertMessage(ctx, conversationID, string(msg.Role), payload); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	s.logger.Debug("appended conversation messages",
		"conversation_id", conversationID,
		"count", len(messages))
	return nil
}

// PurgeExpired deletes conversations inactive for longer than the TTL.
// Returns the number of conversations removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.ttl)
	n, err := s.querier.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging expired conversations: %w", err)
	}
	if n > 0 {
		s.logger.Info("purged expired conversations", "count", n)
	}
	return n, nil
}

// StartPurge runs PurgeExpired on the given interval until ctx is
// canceled. Expired rows are already invisible to Load, so the purge is
// housekeeping, not correctness: failures are logged and retried on the
// next tick.
func (s *Store) StartPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("history purge loop stopped")
			return
		case <-ticker.C:
			if _, err := s.PurgeExpired(ctx); err != nil {
				s.logger.Warn("history purge failed", "error", err)
			}
		}
	}
}

// PGQuerier implements Querier against a pgx connection pool.
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier creates a Querier backed by the given pool.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

func (q *PGQuerier) TouchConversation(ctx context.Context, id string, activeSince time.Time) error {
	// Expired-but-not-yet-purged conversations lose their messages here,
	// so reviving one starts from an empty sequence.
	_, err := q.pool.Exec(ctx, `
		WITH stale AS (
			SELECT id FROM conversations
			WHERE id = $1 AND last_active_at < $2
		), discarded AS (
			DELETE FROM conversation_messages
			WHERE conversation_id IN (SELECT id FROM stale)
		)
		INSERT INTO conversations (id, last_active_at)
		VALUES ($1, now())
		ON CONFLICT (id) DO UPDATE SET last_active_at = now()`,
		id, activeSince)
	return err
}

func (q *PGQuerier) InsertMessage(ctx context.Context, conversationID, role string, payload []byte) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO conversation_messages (conversation_id, role, payload)
		VALUES ($1, $2, $3)`,
		conversationID, role, payload)
	return err
}

func (q *PGQuerier) ListMessages(ctx context.Context, conversationID string, activeSince time.Time, limit int32) ([]rawMessage, error) {
	// The cap keeps the newest rows: old turns fall out of the context
	// window first. The outer ORDER BY restores chronological order.
	rows, err := q.pool.Query(ctx, `
		SELECT id, role, payload, created_at FROM (
			SELECT m.id, m.role, m.payload, m.created_at
			FROM conversation_messages m
			JOIN conversations c ON c.id = m.conversation_id
			WHERE m.conversation_id = $1
			  AND c.last_active_at >= $2
			ORDER BY m.id DESC
			LIMIT $3
		) recent
		ORDER BY id`,
		conversationID, activeSince, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rawMessage
	for rows.Next() {
		var m rawMessage
		if err := rows.Scan(&m.ID, &m.Role, &m.Payload, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *PGQuerier) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM conversations
		WHERE last_active_at < $1`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
