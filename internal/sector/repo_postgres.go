package sector

import (
	"context"
	"database/sql"
	"encoding/json"
)

// NOTE: This repository assumes the following table exists:
//
//	sectors (
//	  id          uuid primary key,
//	  name        text not null unique,
//	  description text not null default '',
//	  active      boolean not null default true,
//	  responsible_parties jsonb not null default '[]',
//	  created_at  timestamptz not null default now()
//	)
//
// Sector CRUD itself lives in the external admin API; this core only
// reads.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListActive(ctx context.Context) ([]Sector, error) {
	const q = `
SELECT id, name, description, active, responsible_parties, created_at
FROM sectors
WHERE active
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sector
	for rows.Next() {
		var s Sector
		var parties []byte
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Active, &parties, &s.CreatedAt); err != nil {
			return nil, err
		}
		if len(parties) > 0 {
			if err := json.Unmarshal(parties, &s.ResponsibleParties); err != nil {
				return nil, err
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
