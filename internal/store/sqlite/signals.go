package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/logan676/booklibrio-engine/internal/domain"
)

// Shelf statuses that count as engagement with an item.
const engagedStatuses = `('read', 'reading')`

// FetchReadingActivity aggregates reading sessions per item inside the window.
func (s *Store) FetchReadingActivity(ctx context.Context, itemType domain.ItemType, window domain.Window) ([]domain.ReadingActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rs.book_id, COUNT(*), COALESCE(SUM(rs.duration_seconds), 0)
		FROM reading_sessions rs
		JOIN books b ON b.id = rs.book_id
		WHERE b.item_type = ? AND rs.started_at >= ? AND rs.started_at < ?
		GROUP BY rs.book_id
		ORDER BY rs.book_id`,
		string(itemType), formatTime(window.Start), formatTime(window.End),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ReadingActivity{}
	for rows.Next() {
		var a domain.ReadingActivity
		if err := rows.Scan(&a.ItemID, &a.SessionCount, &a.TotalDurationSeconds); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FetchSearchActivity aggregates searches that resolved to an item inside the window.
func (s *Store) FetchSearchActivity(ctx context.Context, itemType domain.ItemType, window domain.Window) ([]domain.SearchActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sl.result_book_id, COUNT(*)
		FROM search_logs sl
		JOIN books b ON b.id = sl.result_book_id
		WHERE b.item_type = ? AND sl.created_at >= ? AND sl.created_at < ?
		GROUP BY sl.result_book_id
		ORDER BY sl.result_book_id`,
		string(itemType), formatTime(window.Start), formatTime(window.End),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.SearchActivity{}
	for rows.Next() {
		var a domain.SearchActivity
		if err := rows.Scan(&a.ItemID, &a.SearchCount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// bookColumns is the ordered list of columns selected in catalog queries.
// Must match the scan order in scanBook.
const bookColumns = `b.id, b.item_type, b.title, b.author, b.category_id, b.cover_url,
	b.created_at, b.view_count, b.search_count, b.trending_score`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.ItemMetadata.
func scanBook(scanner interface{ Scan(dest ...any) error }) (domain.ItemMetadata, error) {
	var (
		m         domain.ItemMetadata
		itemType  string
		coverURL  sql.NullString
		createdAt string
	)

	err := scanner.Scan(
		&m.ItemID,
		&itemType,
		&m.Title,
		&m.Author,
		&m.CategoryID,
		&coverURL,
		&createdAt,
		&m.ViewCount,
		&m.SearchCount,
		&m.TrendingScore,
	)
	if err != nil {
		return m, err
	}

	m.ItemType = domain.ItemType(itemType)
	m.CoverURL = coverURL.String
	m.CreatedAt, err = parseTime(createdAt)
	return m, err
}

func (s *Store) queryBooks(ctx context.Context, query string, args ...any) ([]domain.ItemMetadata, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ItemMetadata{}
	for rows.Next() {
		m, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FetchItemMetadata returns catalog rows for the given IDs. Unknown IDs are omitted.
func (s *Store) FetchItemMetadata(ctx context.Context, itemIDs []string) ([]domain.ItemMetadata, error) {
	if len(itemIDs) == 0 {
		return []domain.ItemMetadata{}, nil
	}
	in, args := inClause(itemIDs)
	return s.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books b WHERE b.id IN (`+in+`) ORDER BY b.id`,
		args...,
	)
}

// statsColumns must match the scan order in queryStats.
const statsColumns = `st.book_id, st.total_readers, st.average_rating, st.rating_count, st.popularity_score`

func (s *Store) queryStats(ctx context.Context, query string, args ...any) ([]domain.ItemStats, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ItemStats{}
	for rows.Next() {
		var st domain.ItemStats
		if err := rows.Scan(&st.ItemID, &st.TotalReaders, &st.AverageRating, &st.RatingCount, &st.PopularityScore); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// FetchItemStats returns stats rows for the given IDs of one item type.
func (s *Store) FetchItemStats(ctx context.Context, itemType domain.ItemType, itemIDs []string) ([]domain.ItemStats, error) {
	if len(itemIDs) == 0 {
		return []domain.ItemStats{}, nil
	}
	in, args := inClause(itemIDs)
	args = append([]any{string(itemType)}, args...)
	return s.queryStats(ctx,
		`SELECT `+statsColumns+` FROM book_stats st
		JOIN books b ON b.id = st.book_id
		WHERE b.item_type = ? AND st.book_id IN (`+in+`)
		ORDER BY st.book_id`,
		args...,
	)
}

// FetchTopRated returns items whose rating and rating count meet both floors,
// best rated first.
func (s *Store) FetchTopRated(ctx context.Context, itemType domain.ItemType, minRating float64, minRatingCount int64, limit int) ([]domain.ItemStats, error) {
	if limit <= 0 {
		return []domain.ItemStats{}, nil
	}
	return s.queryStats(ctx,
		`SELECT `+statsColumns+` FROM book_stats st
		JOIN books b ON b.id = st.book_id
		WHERE b.item_type = ? AND st.average_rating >= ? AND st.rating_count >= ?
		ORDER BY st.average_rating DESC, st.rating_count DESC, st.book_id ASC
		LIMIT ?`,
		string(itemType), minRating, minRatingCount, limit,
	)
}

// ListCatalog returns catalog rows matching q.
func (s *Store) ListCatalog(ctx context.Context, q domain.CatalogQuery) ([]domain.ItemMetadata, error) {
	query := `SELECT ` + bookColumns + ` FROM books b
		LEFT JOIN book_stats st ON st.book_id = b.id
		WHERE 1 = 1`
	var args []any

	if q.ItemType != "" {
		query += ` AND b.item_type = ?`
		args = append(args, string(q.ItemType))
	}
	if q.CategoryID != "" {
		query += ` AND b.category_id = ?`
		args = append(args, q.CategoryID)
	}
	if q.Author != "" {
		query += ` AND b.author = ?`
		args = append(args, q.Author)
	}
	if !q.CreatedAfter.IsZero() {
		query += ` AND b.created_at >= ?`
		args = append(args, formatTime(q.CreatedAfter))
	}

	switch q.OrderBy {
	case domain.CatalogOrderPopularity:
		query += ` ORDER BY COALESCE(st.popularity_score, 0) DESC, b.id ASC`
	case domain.CatalogOrderNewest:
		query += ` ORDER BY b.created_at DESC, b.id ASC`
	case domain.CatalogOrderTrending:
		query += ` ORDER BY b.trending_score DESC, b.id ASC`
	default:
		query += ` ORDER BY b.id ASC`
	}

	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	return s.queryBooks(ctx, query, args...)
}

// ListItemIDs returns every catalog ID of an item type.
func (s *Store) ListItemIDs(ctx context.Context, itemType domain.ItemType) ([]string, error) {
	return s.queryStrings(ctx,
		`SELECT id FROM books WHERE item_type = ? ORDER BY id`,
		string(itemType),
	)
}

// FetchUserReadHistory returns finished items (most recent first) and items in progress.
func (s *Store) FetchUserReadHistory(ctx context.Context, userID string) (*domain.ReadHistory, error) {
	read, err := s.queryStrings(ctx,
		`SELECT book_id FROM bookshelves
		WHERE user_id = ? AND status = 'read'
		ORDER BY updated_at DESC, book_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}

	reading, err := s.queryStrings(ctx,
		`SELECT book_id FROM bookshelves
		WHERE user_id = ? AND status = 'reading'
		ORDER BY updated_at DESC, book_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading items: %w", err)
	}

	return &domain.ReadHistory{
		ReadItemIDs:             read,
		CurrentlyReadingItemIDs: reading,
	}, nil
}

// FetchUserSocialGraph returns the users a user follows.
func (s *Store) FetchUserSocialGraph(ctx context.Context, userID string) (*domain.SocialGraph, error) {
	following, err := s.queryStrings(ctx,
		`SELECT following_id FROM user_follows WHERE follower_id = ? ORDER BY following_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return &domain.SocialGraph{FollowingUserIDs: following}, nil
}

// ListActiveUsers returns users with a reading session since the given time.
func (s *Store) ListActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	return s.queryStrings(ctx,
		`SELECT DISTINCT user_id FROM reading_sessions WHERE started_at >= ? ORDER BY user_id`,
		formatTime(since),
	)
}

// FetchCoOccurringReaders returns the users who have read or are reading the item.
func (s *Store) FetchCoOccurringReaders(ctx context.Context, itemID string) ([]string, error) {
	return s.queryStrings(ctx,
		`SELECT DISTINCT user_id FROM bookshelves
		WHERE book_id = ? AND status IN `+engagedStatuses+`
		ORDER BY user_id`,
		itemID,
	)
}

// FetchItemsReadByUsers counts, per item of the given type, how many of the
// users engaged with it.
func (s *Store) FetchItemsReadByUsers(ctx context.Context, itemType domain.ItemType, userIDs []string) ([]domain.ItemUserCount, error) {
	return s.countItemsByUsers(ctx, itemType, userIDs, engagedStatuses)
}

// FetchItemsCurrentlyReadByUsers counts, per item, how many of the users are reading it now.
func (s *Store) FetchItemsCurrentlyReadByUsers(ctx context.Context, userIDs []string) ([]domain.ItemUserCount, error) {
	return s.countItemsByUsers(ctx, "", userIDs, `('reading')`)
}

// countItemsByUsers groups shelf rows of the given users by item. An empty
// itemType matches every type. statuses is always a constant from this file.
func (s *Store) countItemsByUsers(ctx context.Context, itemType domain.ItemType, userIDs []string, statuses string) ([]domain.ItemUserCount, error) {
	if len(userIDs) == 0 {
		return []domain.ItemUserCount{}, nil
	}
	in, args := inClause(userIDs)

	query := `SELECT bs.book_id, COUNT(DISTINCT bs.user_id) AS users
		FROM bookshelves bs`
	if itemType != "" {
		query += `
		JOIN books b ON b.id = bs.book_id AND b.item_type = ?`
		args = append([]any{string(itemType)}, args...)
	}
	query += `
		WHERE bs.user_id IN (` + in + `) AND bs.status IN ` + statuses
	query += `
		GROUP BY bs.book_id
		ORDER BY users DESC, bs.book_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ItemUserCount{}
	for rows.Next() {
		var c domain.ItemUserCount
		if err := rows.Scan(&c.ItemID, &c.UserCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
