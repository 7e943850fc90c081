package usage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed usage store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Insert(ctx context.Context, rec *Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO usage_log (recorded_at, mode, lang, signal_count, signal_ids, paid)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.Time, rec.Mode, rec.Lang, rec.SignalCount, pq.Array(rec.SignalIDs), rec.Paid)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

func (p *PostgresStore) Snapshot(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByMode:   make(map[string]int64),
		ByLang:   make(map[string]int64),
		BySignal: make(map[string]int64),
	}

	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE paid) FROM usage_log
	`).Scan(&stats.TotalRequests, &stats.PaidRequests)
	if err != nil {
		return nil, fmt.Errorf("count usage: %w", err)
	}

	if err := p.countBy(ctx, "mode", stats.ByMode); err != nil {
		return nil, err
	}
	if err := p.countBy(ctx, "lang", stats.ByLang); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, COUNT(*) FROM usage_log, UNNEST(signal_ids) AS id GROUP BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("count signals: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		stats.BySignal[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := p.recent(ctx, 100)
	if err != nil {
		return nil, err
	}
	stats.Recent = recent
	return stats, nil
}

func (p *PostgresStore) countBy(ctx context.Context, column string, dest map[string]int64) error {
	// column is a fixed identifier chosen by the caller, never user input.
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, COUNT(*) FROM usage_log GROUP BY %s
	`, column, column))
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dest[key] = n
	}
	return rows.Err()
}

func (p *PostgresStore) recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT recorded_at, mode, lang, signal_count, signal_ids, paid
		FROM usage_log ORDER BY recorded_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Time, &rec.Mode, &rec.Lang, &rec.SignalCount,
			pq.Array(&rec.SignalIDs), &rec.Paid); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Oldest first, matching the in-memory store.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}
