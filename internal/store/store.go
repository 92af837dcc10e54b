// Package store keeps an SQLite audit trail of watcher runs and the posts they made.
// It is never consulted for duplicate detection; the JSON ledgers remain authoritative.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store wraps SQLite access for runs and posts.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			alerts_fetched INTEGER DEFAULT 0,
			posted INTEGER DEFAULT 0,
			duplicates INTEGER DEFAULT 0,
			failed INTEGER DEFAULT 0,
			skipped INTEGER DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			roadway TEXT,
			kind TEXT,
			ref TEXT,
			status TEXT,
			prompt TEXT,
			body TEXT,
			created_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_run ON posts(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const (
	KindIncident = "incident"
	KindReport   = "report"

	StatusPosted = "posted"
	StatusFailed = "failed"
)

// Run is one invocation of the pipeline.
type Run struct {
	RunID         string     `json:"run_id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	AlertsFetched int        `json:"alerts_fetched"`
	Posted        int        `json:"posted"`
	Duplicates    int        `json:"duplicates"`
	Failed        int        `json:"failed"`
	Skipped       int        `json:"skipped"`
}

// Post is one attempted publication. Ref is the alert id for incidents or the
// reported month ("2024-05") for reports.
type Post struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Roadway   string    `json:"roadway"`
	Kind      string    `json:"kind"`
	Ref       string    `json:"ref"`
	Status    string    `json:"status"`
	Prompt    string    `json:"prompt"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// StartRun inserts a run row and returns its generated id.
func (s *Store) StartRun(ctx context.Context, ts time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs(run_id, started_at) VALUES(?, ?)`, id, ts.UTC())
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun stores the final tallies of r.
func (s *Store) FinishRun(ctx context.Context, r Run, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET finished_at=?, alerts_fetched=?, posted=?, duplicates=?, failed=?, skipped=? WHERE run_id=?`,
		ts.UTC(), r.AlertsFetched, r.Posted, r.Duplicates, r.Failed, r.Skipped, r.RunID)
	return err
}

func (s *Store) RecordPost(ctx context.Context, p *Post) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO posts(run_id, roadway, kind, ref, status, prompt, body, created_at) VALUES(?,?,?,?,?,?,?,?)`,
		p.RunID, p.Roadway, p.Kind, p.Ref, p.Status, p.Prompt, p.Body, p.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	p.ID = id
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT run_id, started_at, finished_at, alerts_fetched, posted, duplicates, failed, skipped FROM runs WHERE run_id=?`, runID)
	var r Run
	var finished sql.NullTime
	switch err := row.Scan(&r.RunID, &r.StartedAt, &finished, &r.AlertsFetched, &r.Posted, &r.Duplicates, &r.Failed, &r.Skipped); err {
	case nil:
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		return &r, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, started_at, finished_at, alerts_fetched, posted, duplicates, failed, skipped FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.RunID, &r.StartedAt, &finished, &r.AlertsFetched, &r.Posted, &r.Duplicates, &r.Failed, &r.Skipped); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListPosts returns the most recent posts first.
func (s *Store) ListPosts(ctx context.Context, limit int) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, roadway, kind, ref, status, prompt, body, created_at FROM posts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.RunID, &p.Roadway, &p.Kind, &p.Ref, &p.Status, &p.Prompt, &p.Body, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
