package audit

import (
	"context"
	"database/sql"
)

// NOTE: This repository assumes the following table exists:
//
//	audit_entries (
//	  id              uuid primary key,
//	  type            text not null,
//	  conversation_id uuid not null,
//	  phone           text not null,
//	  sector          text not null,
//	  old_sector      text not null default '',
//	  detail          text not null default '',
//	  created_at      timestamptz not null default now()
//	)
//
// Keep the table INSERT-only; retention is handled by time-based
// partition drops, not deletes.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO audit_entries (id, type, conversation_id, phone, sector, old_sector, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, string(e.Type), e.ConversationID, e.Phone, e.Sector, e.OldSector, e.Detail, e.CreatedAt)
	return err
}

func (r *PostgresRepo) Recent(ctx context.Context, limit int) ([]Entry, error) {
	const q = `
SELECT id, type, conversation_id, phone, sector, old_sector, detail, created_at
FROM audit_entries
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Type, &e.ConversationID, &e.Phone, &e.Sector, &e.OldSector, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
