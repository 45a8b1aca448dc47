// Package main provides a tool to seed the database with a demo catalog and reading activity.
//
// It creates books with stats, users with shelves and follows, reading sessions
// over the past two weeks and search logs, so every ranking type and
// recommendation source has something to work with.
//
// Usage:
//
//	DB_PATH=~/BookLibrio/engine/engine.db go run ./cmd/seed
//	DB_PATH=~/BookLibrio/engine/engine.db go run ./cmd/seed --books 500 --users 50
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/store/sqlite"
)

var (
	numBooks = flag.Int("books", 200, "Number of books to create")
	numUsers = flag.Int("users", 30, "Number of users to create")
	seed     = flag.Int64("seed", 0, "Random seed (default: current time)")
)

var categories = []string{"fiction", "non_fiction", "science", "history", "poetry"}

var authors = []string{
	"Liu Cixin", "Yu Hua", "Mo Yan", "Eileen Chang", "Lu Xun",
	"Jin Yong", "Han Han", "Wang Xiaobo", "San Mao", "Qian Zhongshu",
	"Ursula K. Le Guin", "Haruki Murakami", "Yuval Noah Harari", "Mary Beard",
}

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/BookLibrio/engine/engine.db")
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	s, err := sqlite.Open(dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed)) //#nosec G404 -- demo data
	now := time.Now()

	bookIDs := seedBooks(ctx, s, rng, now)
	userIDs := seedUsers(*numUsers)
	seedFollows(ctx, s, rng, userIDs)
	sessions := seedActivity(ctx, s, rng, now, userIDs, bookIDs)

	fmt.Printf("\nSeeded %d books, %d users, %d reading sessions (seed %d)\n",
		len(bookIDs), len(userIDs), sessions, *seed)
}

func seedBooks(ctx context.Context, s *sqlite.Store, rng *rand.Rand, now time.Time) []string {
	ids := make([]string, 0, *numBooks)
	for n := range *numBooks {
		id := fmt.Sprintf("book-%04d", n+1)
		category := categories[rng.Intn(len(categories))]

		// Most of the catalog is old; a tenth is released within the last 90 days.
		age := time.Duration(90+rng.Intn(3000)) * 24 * time.Hour
		if rng.Intn(10) == 0 {
			age = time.Duration(rng.Intn(90)) * 24 * time.Hour
		}

		meta := domain.ItemMetadata{
			ItemID:        id,
			ItemType:      domain.ItemTypeEbook,
			Title:         fmt.Sprintf("%s Volume %d", category, n+1),
			Author:        authors[rng.Intn(len(authors))],
			CategoryID:    category,
			CreatedAt:     now.Add(-age),
			ViewCount:     int64(rng.Intn(5000)),
			SearchCount:   int64(rng.Intn(800)),
			TrendingScore: float64(rng.Intn(100)),
		}
		if err := s.UpsertBook(ctx, meta); err != nil {
			log.Fatalf("Failed to create book %s: %v", id, err)
		}

		readers := int64(rng.Intn(2000))
		ratings := readers / int64(1+rng.Intn(4))
		stats := domain.ItemStats{
			ItemID:          id,
			TotalReaders:    readers,
			AverageRating:   5 + rng.Float64()*5,
			RatingCount:     ratings,
			PopularityScore: float64(rng.Intn(100)),
		}
		if err := s.UpsertBookStats(ctx, stats); err != nil {
			log.Fatalf("Failed to create stats for %s: %v", id, err)
		}
		ids = append(ids, id)
	}
	fmt.Printf("Created %d books\n", len(ids))
	return ids
}

func seedUsers(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%03d", i+1)
	}
	return ids
}

func seedFollows(ctx context.Context, s *sqlite.Store, rng *rand.Rand, userIDs []string) {
	follows := 0
	for _, follower := range userIDs {
		for range 1 + rng.Intn(5) {
			following := userIDs[rng.Intn(len(userIDs))]
			if following == follower {
				continue
			}
			if err := s.Follow(ctx, follower, following); err != nil {
				log.Printf("Failed to follow %s -> %s: %v", follower, following, err)
				continue
			}
			follows++
		}
	}
	fmt.Printf("Created %d follows\n", follows)
}

// seedActivity shelves 3-8 books per user and records sessions and searches
// over the past 14 days.
func seedActivity(ctx context.Context, s *sqlite.Store, rng *rand.Rand, now time.Time, userIDs, bookIDs []string) int {
	sessions := 0
	for _, userID := range userIDs {
		picked := make([]string, min(3+rng.Intn(6), len(bookIDs)))
		for i := range picked {
			picked[i] = bookIDs[rng.Intn(len(bookIDs))]
		}

		for i, bookID := range picked {
			status := sqlite.ShelfRead
			switch {
			case i == 0:
				status = sqlite.ShelfReading
			case i%3 == 0:
				status = sqlite.ShelfWantToRead
			}
			at := now.Add(-time.Duration(rng.Intn(14*24)) * time.Hour)
			if err := s.SetShelfStatus(ctx, userID, bookID, status, at); err != nil {
				log.Printf("Failed to shelve %s for %s: %v", bookID, userID, err)
			}
		}

		for day := 13; day >= 0; day-- {
			// Always read today and yesterday; 70% chance on other days.
			if day > 1 && rng.Float32() > 0.7 {
				continue
			}
			for range 1 + rng.Intn(3) {
				bookID := picked[rng.Intn(len(picked))]
				hour := 6 + rng.Intn(17)
				start := time.Date(now.Year(), now.Month(), now.Day()-day, hour, rng.Intn(60), 0, 0, time.Local)
				if start.After(now) {
					start = now.Add(-time.Hour)
				}
				duration := time.Duration(5+rng.Intn(55)) * time.Minute
				if err := s.RecordReadingSession(ctx, userID, bookID, start, duration); err != nil {
					log.Printf("Failed to record session: %v", err)
					continue
				}
				sessions++
			}
		}

		for range rng.Intn(5) {
			bookID := bookIDs[rng.Intn(len(bookIDs))]
			at := now.Add(-time.Duration(rng.Intn(24*60)) * time.Minute)
			if err := s.RecordSearch(ctx, userID, "search "+bookID, bookID, at); err != nil {
				log.Printf("Failed to record search: %v", err)
			}
		}
	}
	return sessions
}
