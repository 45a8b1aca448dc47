package sqlite

import (
	"context"
	"fmt"

	"github.com/logan676/booklibrio-engine/internal/domain"
)

// edgeColumns is the ordered list of columns selected in related item queries.
// Must match the scan order in scanEdge.
const edgeColumns = `source_item_id, source_item_type, related_item_id, relation_type,
	similarity_score, confidence, computed_at`

// scanEdge scans a sql.Row (or sql.Rows via its Scan method) into a domain.RelatedItemEdge.
func scanEdge(scanner interface{ Scan(dest ...any) error }) (domain.RelatedItemEdge, error) {
	var (
		e          domain.RelatedItemEdge
		sourceType string
		relation   string
		computedAt string
	)

	err := scanner.Scan(
		&e.SourceItem,
		&sourceType,
		&e.RelatedItem,
		&relation,
		&e.SimilarityScore,
		&e.Confidence,
		&computedAt,
	)
	if err != nil {
		return e, err
	}

	e.SourceItemType = domain.ItemType(sourceType)
	e.RelationType = domain.RelationType(relation)
	e.ComputedAt, err = parseTime(computedAt)
	return e, err
}

// UpsertRelatedEdges writes edges, merging with existing rows by key.
// Similarity and confidence keep the maximum; computed_at is refreshed.
func (s *Store) UpsertRelatedEdges(ctx context.Context, edges []domain.RelatedItemEdge) error {
	if len(edges) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO related_items (
			source_item_id, source_item_type, related_item_id, relation_type,
			similarity_score, confidence, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_item_id, related_item_id, relation_type) DO UPDATE SET
			similarity_score = MAX(similarity_score, excluded.similarity_score),
			confidence = MAX(confidence, excluded.confidence),
			computed_at = excluded.computed_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range edges {
		if e.SourceItem == e.RelatedItem {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			e.SourceItem,
			string(e.SourceItemType),
			e.RelatedItem,
			string(e.RelationType),
			e.SimilarityScore,
			e.Confidence,
			formatTime(e.ComputedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert edge %s: %w", e.EdgeKey(), err)
		}
	}

	return tx.Commit()
}

// GetRelatedItems returns a source's strongest edges, optionally filtered by relation.
func (s *Store) GetRelatedItems(ctx context.Context, sourceItem string, relation domain.RelationType, limit int) ([]domain.RelatedItemEdge, error) {
	query := `SELECT ` + edgeColumns + ` FROM related_items WHERE source_item_id = ?`
	args := []any{sourceItem}
	if relation != "" {
		query += ` AND relation_type = ?`
		args = append(args, string(relation))
	}
	query += ` ORDER BY similarity_score DESC, confidence DESC, related_item_id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.queryEdges(ctx, query, args...)
}

// ListRelatedEdges returns every edge of a source item.
func (s *Store) ListRelatedEdges(ctx context.Context, sourceItem string) ([]domain.RelatedItemEdge, error) {
	return s.queryEdges(ctx,
		`SELECT `+edgeColumns+` FROM related_items
		WHERE source_item_id = ?
		ORDER BY relation_type, similarity_score DESC, related_item_id`,
		sourceItem,
	)
}

func (s *Store) queryEdges(ctx context.Context, query string, args ...any) ([]domain.RelatedItemEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := []domain.RelatedItemEdge{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return edges, nil
}
