package sqlite

import (
	"context"
	"time"

	"github.com/logan676/booklibrio-engine/internal/domain"
)

// ShelfStatus is a user's relationship to a book on their shelf.
type ShelfStatus string

// ShelfStatus constants.
const (
	ShelfWantToRead ShelfStatus = "want_to_read"
	ShelfReading    ShelfStatus = "reading"
	ShelfRead       ShelfStatus = "read"
)

// UpsertBook creates or replaces a catalog row.
func (s *Store) UpsertBook(ctx context.Context, m domain.ItemMetadata) error {
	itemType := m.ItemType
	if itemType == "" {
		itemType = domain.ItemTypeEbook
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, item_type, title, author, category_id, cover_url,
			created_at, view_count, search_count, trending_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			item_type = excluded.item_type,
			title = excluded.title,
			author = excluded.author,
			category_id = excluded.category_id,
			cover_url = excluded.cover_url,
			created_at = excluded.created_at,
			view_count = excluded.view_count,
			search_count = excluded.search_count,
			trending_score = excluded.trending_score`,
		m.ItemID,
		string(itemType),
		m.Title,
		m.Author,
		m.CategoryID,
		nullString(m.CoverURL),
		formatTime(createdAt),
		m.ViewCount,
		m.SearchCount,
		m.TrendingScore,
	)
	return err
}

// UpsertBookStats creates or replaces a book's aggregate stats.
func (s *Store) UpsertBookStats(ctx context.Context, st domain.ItemStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO book_stats (
			book_id, total_readers, average_rating, rating_count, popularity_score, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			total_readers = excluded.total_readers,
			average_rating = excluded.average_rating,
			rating_count = excluded.rating_count,
			popularity_score = excluded.popularity_score,
			updated_at = excluded.updated_at`,
		st.ItemID,
		st.TotalReaders,
		st.AverageRating,
		st.RatingCount,
		st.PopularityScore,
		formatTime(time.Now()),
	)
	return err
}

// RecordReadingSession appends one reading session.
func (s *Store) RecordReadingSession(ctx context.Context, userID, bookID string, startedAt time.Time, duration time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reading_sessions (user_id, book_id, started_at, duration_seconds)
		VALUES (?, ?, ?, ?)`,
		userID, bookID, formatTime(startedAt), int64(duration/time.Second),
	)
	return err
}

// SetShelfStatus places a book on a user's shelf with the given status.
func (s *Store) SetShelfStatus(ctx context.Context, userID, bookID string, status ShelfStatus, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookshelves (user_id, book_id, status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, book_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at`,
		userID, bookID, string(status), formatTime(at),
	)
	return err
}

// Follow records that followerID follows followingID. Repeat calls are no-ops.
func (s *Store) Follow(ctx context.Context, followerID, followingID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_follows (follower_id, following_id, created_at)
		VALUES (?, ?, ?)`,
		followerID, followingID, formatTime(time.Now()),
	)
	return err
}

// RecordSearch logs a search. bookID is empty when the search resolved to nothing.
func (s *Store) RecordSearch(ctx context.Context, userID, query, bookID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_logs (user_id, query, result_book_id, created_at)
		VALUES (?, ?, ?, ?)`,
		nullString(userID), query, nullString(bookID), formatTime(at),
	)
	return err
}
