// Package db provides the persistence layer used by the application. It
// wraps a SQLite database holding the recommendation history: one row per
// completed recommend-and-queue decision, kept for diagnostics and the
// history API. Session and credential state is deliberately not persisted
// here; it lives in memory for the lifetime of one instance. Callers are
// expected to open a single DB instance using New and reuse it for all
// operations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a sql.DB connection and exposes helper methods for the
// application's persistence layer.
type DB struct {
	*sql.DB
}

// New opens the SQLite database located at path. If the file does not exist
// it is created along with the required schema.
func New(path string) (*DB, error) {
	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recommendations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			source_track TEXT NOT NULL,
			engine_title TEXT NOT NULL,
			matched_name TEXT NOT NULL,
			matched_artist TEXT,
			matched_uri TEXT NOT NULL,
			score REAL NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rec_user_time ON recommendations(user_id, created_at)`,
	}
	// Errors here likely mean the database file is not writable.
	for _, s := range stmts {
		if _, err := d.Exec(s); err != nil {
			d.Close()
			return nil, fmt.Errorf("init db: %w", err)
		}
	}
	return &DB{d}, nil
}

// Recommendation is one recorded pipeline decision.
type Recommendation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"-"`
	SourceTrack   string    `json:"source_track"`
	EngineTitle   string    `json:"engine_title"`
	MatchedName   string    `json:"matched_name"`
	MatchedArtist string    `json:"matched_artist"`
	MatchedURI    string    `json:"matched_uri"`
	Score         float64   `json:"score"`
	CreatedAt     time.Time `json:"created_at"`
}

// AddRecommendation records a completed decision and returns its generated
// identifier.
func (db *DB) AddRecommendation(ctx context.Context, rec Recommendation) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO recommendations(id, user_id, source_track, engine_title, matched_name, matched_artist, matched_uri, score, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.SourceTrack, rec.EngineTitle, rec.MatchedName, rec.MatchedArtist, rec.MatchedURI, rec.Score, rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert recommendation: %w", err)
	}
	return rec.ID, nil
}

// RecentRecommendations returns the caller's latest decisions, newest first.
// limit values below one default to twenty.
func (db *DB) RecentRecommendations(ctx context.Context, userID string, limit int) ([]Recommendation, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, source_track, engine_title, matched_name, matched_artist, matched_uri, score, created_at
		 FROM recommendations WHERE user_id=? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []Recommendation
	for rows.Next() {
		var r Recommendation
		var artist sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.SourceTrack, &r.EngineTitle, &r.MatchedName, &artist, &r.MatchedURI, &r.Score, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.MatchedArtist = artist.String
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
