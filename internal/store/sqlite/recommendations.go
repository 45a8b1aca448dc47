package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/store"
)

// recommendationColumns is the ordered list of columns selected in recommendation queries.
// Must match the scan order in scanRecommendation.
const recommendationColumns = `id, user_id, item_id, item_type, recommendation_type,
	reason_type, reason, source_item_id, score, position,
	is_viewed, is_clicked, is_dismissed, created_at, expires_at`

// scanRecommendation scans a sql.Row (or sql.Rows via its Scan method) into a domain.UserRecommendation.
func scanRecommendation(scanner interface{ Scan(dest ...any) error }) (domain.UserRecommendation, error) {
	var r domain.UserRecommendation

	var (
		itemType    string
		recType     string
		reasonType  string
		sourceItem  sql.NullString
		isViewed    int
		isClicked   int
		isDismissed int
		createdAt   string
		expiresAt   string
	)

	err := scanner.Scan(
		&r.ID,
		&r.UserID,
		&r.ItemID,
		&itemType,
		&recType,
		&reasonType,
		&r.Reason,
		&sourceItem,
		&r.Score,
		&r.Position,
		&isViewed,
		&isClicked,
		&isDismissed,
		&createdAt,
		&expiresAt,
	)
	if err != nil {
		return r, err
	}

	r.ItemType = domain.ItemType(itemType)
	r.RecommendationType = domain.RecommendationType(recType)
	r.ReasonType = domain.ReasonType(reasonType)
	if sourceItem.Valid {
		r.SourceItemID = &sourceItem.String
	}

	// Boolean fields.
	r.IsViewed = isViewed != 0
	r.IsClicked = isClicked != 0
	r.IsDismissed = isDismissed != 0

	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, err
	}
	r.ExpiresAt, err = parseTime(expiresAt)
	return r, err
}

// ReplaceUserRecommendations deletes every row for the user and inserts recs
// in one transaction. Readers see either the old list or the new one.
func (s *Store) ReplaceUserRecommendations(ctx context.Context, userID string, recs []domain.UserRecommendation) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_recommendations WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete recommendations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_recommendations (
			id, user_id, item_id, item_type, recommendation_type,
			reason_type, reason, source_item_id, score, position,
			is_viewed, is_clicked, is_dismissed, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		if r.UserID != userID {
			return fmt.Errorf("recommendation %s belongs to user %s: %w", r.ID, r.UserID, store.ErrInvalidInput)
		}
		_, err := stmt.ExecContext(ctx,
			r.ID,
			r.UserID,
			r.ItemID,
			string(r.ItemType),
			string(r.RecommendationType),
			string(r.ReasonType),
			r.Reason,
			nullableString(r.SourceItemID),
			r.Score,
			r.Position,
			boolToInt(r.IsViewed),
			boolToInt(r.IsClicked),
			boolToInt(r.IsDismissed),
			formatTime(r.CreatedAt),
			formatTime(r.ExpiresAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert recommendation %s: %w", r.ItemID, store.ErrAlreadyExists)
			}
			return fmt.Errorf("insert recommendation %s: %w", r.ItemID, err)
		}
	}

	return tx.Commit()
}

// ListUserRecommendations returns the user's live rows ordered by position.
func (s *Store) ListUserRecommendations(ctx context.Context, q store.RecommendationQuery) ([]domain.UserRecommendation, error) {
	q.Normalize()

	query := `SELECT ` + recommendationColumns + ` FROM user_recommendations
		WHERE user_id = ? AND is_dismissed = 0 AND expires_at > ?`
	args := []any{q.UserID, formatTime(q.Now)}
	if q.Type != "" {
		query += ` AND recommendation_type = ?`
		args = append(args, string(q.Type))
	}
	query += ` ORDER BY position ASC LIMIT ? OFFSET ?`
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []domain.UserRecommendation{}
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// HasRecommendations reports whether any rows exist for the user.
func (s *Store) HasRecommendations(ctx context.Context, userID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_recommendations WHERE user_id = ?)`,
		userID,
	).Scan(&exists)
	return exists != 0, err
}

// MarkViewed sets is_viewed on every listed row. Unknown IDs are ignored.
func (s *Store) MarkViewed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_recommendations SET is_viewed = 1 WHERE id IN (`+in+`)`,
		args...,
	)
	return err
}

// MarkClicked sets is_clicked on one row.
// Returns store.ErrNotFound if the row does not exist.
func (s *Store) MarkClicked(ctx context.Context, id string) error {
	return s.setFlag(ctx, "is_clicked", id)
}

// Dismiss sets is_dismissed on one row, hiding it from future reads.
// Returns store.ErrNotFound if the row does not exist.
func (s *Store) Dismiss(ctx context.Context, id string) error {
	return s.setFlag(ctx, "is_dismissed", id)
}

// setFlag sets a boolean column. column is always a constant from this file.
func (s *Store) setFlag(ctx context.Context, column, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE user_recommendations SET `+column+` = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
