package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/store"
)

// snapshotColumns is the ordered list of columns selected in snapshot queries.
// Must match the scan order in scanSnapshot.
const snapshotColumns = `id, ranking_type, period_start, period_end, computed_at, expires_at, is_active`

// scanSnapshot scans a sql.Row (or sql.Rows via its Scan method) into a domain.RankingSnapshot.
func scanSnapshot(scanner interface{ Scan(dest ...any) error }) (*domain.RankingSnapshot, error) {
	var snap domain.RankingSnapshot

	var (
		rankingType string
		periodStart string
		periodEnd   string
		computedAt  string
		expiresAt   string
		isActive    int
	)

	err := scanner.Scan(
		&snap.ID,
		&rankingType,
		&periodStart,
		&periodEnd,
		&computedAt,
		&expiresAt,
		&isActive,
	)
	if err != nil {
		return nil, err
	}

	snap.Type = domain.RankingType(rankingType)
	snap.IsActive = isActive != 0

	if snap.PeriodStart, err = parseTime(periodStart); err != nil {
		return nil, err
	}
	if snap.PeriodEnd, err = parseTime(periodEnd); err != nil {
		return nil, err
	}
	if snap.ComputedAt, err = parseTime(computedAt); err != nil {
		return nil, err
	}
	if snap.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}

	return &snap, nil
}

// SwapActiveSnapshot deactivates the type's current snapshot and inserts the
// new one with its entries in a single transaction.
func (s *Store) SwapActiveSnapshot(ctx context.Context, snap *domain.RankingSnapshot, entries []domain.RankingEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE ranking_snapshots SET is_active = 0 WHERE ranking_type = ? AND is_active = 1`,
		string(snap.Type),
	); err != nil {
		return fmt.Errorf("deactivate snapshots: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ranking_snapshots (
			id, ranking_type, period_start, period_end, computed_at, expires_at, is_active
		) VALUES (?, ?, ?, ?, ?, ?, 1)`,
		snap.ID,
		string(snap.Type),
		formatTime(snap.PeriodStart),
		formatTime(snap.PeriodEnd),
		formatTime(snap.ComputedAt),
		formatTime(snap.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ranking_entries (
			snapshot_id, item_id, item_type, item_rank, previous_rank,
			rank_change, score, reader_count, rating, evaluation_tag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx,
			snap.ID,
			e.ItemID,
			string(e.ItemType),
			e.Rank,
			nullInt64(int64(e.PreviousRank)),
			e.RankChange,
			e.Score,
			e.ReaderCount,
			e.Rating,
			nullString(string(e.EvaluationTag)),
		)
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	snap.IsActive = true
	return nil
}

// GetActiveSnapshot returns the active snapshot for a ranking type.
// Returns store.ErrNotFound if the type has no active snapshot.
func (s *Store) GetActiveSnapshot(ctx context.Context, rankingType domain.RankingType) (*domain.RankingSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM ranking_snapshots
		WHERE ranking_type = ? AND is_active = 1`,
		string(rankingType),
	)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// GetLatestSnapshot returns the most recently computed snapshot for a type.
// Returns store.ErrNotFound if the type was never computed.
func (s *Store) GetLatestSnapshot(ctx context.Context, rankingType domain.RankingType) (*domain.RankingSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM ranking_snapshots
		WHERE ranking_type = ?
		ORDER BY computed_at DESC, is_active DESC
		LIMIT 1`,
		string(rankingType),
	)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// GetSnapshotEntries returns a snapshot's entries ordered by rank.
func (s *Store) GetSnapshotEntries(ctx context.Context, snapshotID string) ([]domain.RankingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id, item_id, item_type, item_rank, previous_rank,
			rank_change, score, reader_count, rating, evaluation_tag
		FROM ranking_entries
		WHERE snapshot_id = ?
		ORDER BY item_rank ASC`,
		snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.RankingEntry{}
	for rows.Next() {
		var (
			e            domain.RankingEntry
			itemType     string
			previousRank sql.NullInt64
			tag          sql.NullString
		)
		if err := rows.Scan(
			&e.SnapshotID,
			&e.ItemID,
			&itemType,
			&e.Rank,
			&previousRank,
			&e.RankChange,
			&e.Score,
			&e.ReaderCount,
			&e.Rating,
			&tag,
		); err != nil {
			return nil, err
		}
		e.ItemType = domain.ItemType(itemType)
		e.PreviousRank = int(previousRank.Int64)
		e.EvaluationTag = domain.EvaluationTag(tag.String)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountActiveSnapshots returns how many active snapshots a type has (0 or 1).
func (s *Store) CountActiveSnapshots(ctx context.Context, rankingType domain.RankingType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ranking_snapshots WHERE ranking_type = ? AND is_active = 1`,
		string(rankingType),
	).Scan(&n)
	return n, err
}
