package comm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scrypto/portal/internal/platform/db"
	"github.com/scrypto/portal/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

const commCols = `comm_id, comm_type, user_from, user_to, subject, body, meta, status, read_at, created_at, updated_at`

func scanCommunication(row pgx.CollectableRow) (Communication, error) {
	var c Communication
	err := row.Scan(&c.CommID, &c.CommType, &c.UserFrom, &c.UserTo, &c.Subject, &c.Body, &c.Meta,
		&c.Status, &c.ReadAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *storePG) Send(ctx context.Context, c *Communication) error {
	var meta interface{}
	if len(c.Meta) > 0 {
		meta = c.Meta
	}
	err := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO comm__communications (comm_type, user_from, user_to, subject, body, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING comm_id, status, created_at, updated_at`,
		c.CommType, c.UserFrom, c.UserTo, c.Subject, c.Body, meta,
	).Scan(&c.CommID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert communication: %w", err)
	}
	return nil
}

func (s *storePG) Inbox(ctx context.Context, userID uuid.UUID, commType string, p pagination.Params) ([]Communication, int, error) {
	where := "user_to = $1"
	args := []interface{}{userID}
	if commType != "" {
		where += " AND comm_type = $2"
		args = append(args, commType)
	}

	var total int
	if err := s.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM v_comm__communications WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inbox: %w", err)
	}
	rows, err := s.conn(ctx).Query(ctx, `SELECT `+commCols+` FROM v_comm__communications
		WHERE `+where+` ORDER BY created_at DESC `+p.SQL(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list inbox: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanCommunication)
	if err != nil {
		return nil, 0, fmt.Errorf("list inbox: %w", err)
	}
	return items, total, nil
}

func (s *storePG) MarkRead(ctx context.Context, userID, commID uuid.UUID) (*ReadReceipt, error) {
	var r ReadReceipt
	err := s.conn(ctx).QueryRow(ctx, `
		UPDATE comm__communications
		SET status = 'read', read_at = COALESCE(read_at, NOW()), updated_at = NOW()
		WHERE comm_id = $1 AND user_to = $2
		RETURNING comm_id, status, read_at`, commID, userID).Scan(&r.CommID, &r.Status, &r.ReadAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark communication read: %w", err)
	}
	return &r, nil
}

func (s *storePG) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM v_comm__communications WHERE user_to = $1 AND read_at IS NULL`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *storePG) Conversation(ctx context.Context, userID, otherID uuid.UUID, limit int) ([]Communication, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT `+commCols+` FROM comm__communications
		WHERE comm_type = 'message'
		  AND ((user_from = $1 AND user_to = $2) OR (user_from = $2 AND user_to = $1))
		ORDER BY created_at DESC
		LIMIT $3`, userID, otherID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanCommunication)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return items, nil
}

func (s *storePG) UserByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT user_id FROM patient__persinfo__profile
		WHERE is_active AND lower(email) = lower($1)
		ORDER BY created_at LIMIT 1`, strings.TrimSpace(email)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrRecipientNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve recipient: %w", err)
	}
	return id, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *storePG) SearchRecipients(ctx context.Context, userID uuid.UUID, q string, limit int) ([]Recipient, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT user_id, email, first_name, last_name, nick_name, kind FROM v_comm__recipients
		WHERE search_text LIKE '%' || $1 || '%' AND user_id <> $2
		ORDER BY kind, first_name
		LIMIT $3`, likeEscaper.Replace(strings.ToLower(q)), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("search recipients: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Recipient, error) {
		var r Recipient
		err := row.Scan(&r.UserID, &r.Email, &r.FirstName, &r.LastName, &r.Nickname, &r.Kind)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("search recipients: %w", err)
	}
	return items, nil
}
