package template

import (
	"context"
	"database/sql"
)

// NOTE: This repository assumes the following table exists:
//
//	templates (
//	  id         uuid primary key,
//	  name       text not null,
//	  content    text not null,
//	  owner_id   text not null default '',
//	  sector     text not null default '',
//	  shared     boolean not null default false,
//	  created_at timestamptz not null default now()
//	)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListAll(ctx context.Context) ([]Template, error) {
	const q = `
SELECT id, name, content, owner_id, sector, shared, created_at
FROM templates
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Content, &t.OwnerID, &t.Sector, &t.Shared, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
