package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) Record(ctx context.Context, r Record) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO calculations
		(id, time, source, pair, atr, tp_percent, tp_pips)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Time, r.Source, r.Pair, r.ATR, r.TPPercent, r.TPPips,
	)
	return err
}

func (j *SQLite) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, time, source, pair, atr, tp_percent, tp_pips
		FROM calculations
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.ID,
			&r.Time,
			&r.Source,
			&r.Pair,
			&r.ATR,
			&r.TPPercent,
			&r.TPPips,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
