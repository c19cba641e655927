package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NOTE: This repository assumes the following table exists:
//
//	conversations (
//	  id         uuid primary key,
//	  phone      text not null,
//	  status     text not null,
//	  sector     text not null,
//	  updated_at timestamptz not null,
//	  doc        jsonb not null
//	)
//
// with an index on (phone, status). The full conversation lives in doc;
// phone/status/sector/updated_at are denormalized for routing queries.
// Each Save rewrites the whole document in one UPDATE, so the message
// list can never be half-written.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) FindOpenByPhone(ctx context.Context, phone string) (Conversation, error) {
	const q = `
SELECT doc FROM conversations
WHERE phone = $1 AND status IN ('waiting', 'in_progress')
ORDER BY updated_at DESC
LIMIT 1
`
	return r.queryOne(ctx, q, phone)
}

func (r *PostgresRepo) FindLatestResolvedByPhone(ctx context.Context, phone string) (Conversation, error) {
	const q = `
SELECT doc FROM conversations
WHERE phone = $1 AND status = 'resolved'
ORDER BY updated_at DESC
LIMIT 1
`
	return r.queryOne(ctx, q, phone)
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (Conversation, error) {
	const q = `SELECT doc FROM conversations WHERE id = $1`
	return r.queryOne(ctx, q, id)
}

func (r *PostgresRepo) Create(ctx context.Context, c Conversation) (Conversation, error) {
	doc, err := json.Marshal(c)
	if err != nil {
		return Conversation{}, err
	}
	const q = `
INSERT INTO conversations (id, phone, status, sector, updated_at, doc)
VALUES ($1, $2, $3, $4, $5, $6)
`
	if _, err := r.db.ExecContext(ctx, q, c.ID, c.Client.Phone, string(c.Status), c.Sector, c.UpdatedAt, doc); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Save(ctx context.Context, c Conversation) (Conversation, error) {
	doc, err := json.Marshal(c)
	if err != nil {
		return Conversation{}, err
	}
	const q = `
UPDATE conversations
SET status = $2, sector = $3, updated_at = $4, doc = $5
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, c.ID, string(c.Status), c.Sector, c.UpdatedAt, doc)
	if err != nil {
		return Conversation{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) ([]Conversation, error) {
	q := `SELECT doc FROM conversations`
	var where []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Sector != "" {
		args = append(args, f.Sector)
		where = append(where, fmt.Sprintf("sector = $%d", len(args)))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += ` ORDER BY updated_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.queryMany(ctx, q, args...)
}

func (r *PostgresRepo) ListOpenInactiveSince(ctx context.Context, cutoff time.Time) ([]Conversation, error) {
	const q = `
SELECT doc FROM conversations
WHERE status IN ('waiting', 'in_progress') AND updated_at < $1
`
	return r.queryMany(ctx, q, cutoff)
}

func (r *PostgresRepo) queryOne(ctx context.Context, q string, args ...any) (Conversation, error) {
	var doc []byte
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	var c Conversation
	if err := json.Unmarshal(doc, &c); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

func (r *PostgresRepo) queryMany(ctx context.Context, q string, args ...any) ([]Conversation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var c Conversation
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
