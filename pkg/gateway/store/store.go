// Package store persists interview sessions, transcript turns, and reports in
// PostgreSQL.
package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/types"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store is the PostgreSQL-backed persistence layer. All operations are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs the
// embedded migrations.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// migrate applies the embedded goose migrations through a database/sql handle
// borrowed from the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return goose.UpContext(ctx, db, "migrations")
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateSession inserts a new interview session.
func (s *Store) CreateSession(ctx context.Context, session types.Session) error {
	topic, err := json.Marshal(session.Topic)
	if err != nil {
		return fmt.Errorf("store: encode topic: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO interviews (id, topic, candidate_name, created_at) VALUES ($1, $2, $3, $4)`,
		session.ID, topic, session.CandidateName, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert interview: %w", err)
	}
	return nil
}

// GetSession loads one interview session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (types.Session, error) {
	var (
		session types.Session
		topic   []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, topic, candidate_name, created_at FROM interviews WHERE id = $1`,
		sessionID).Scan(&session.ID, &topic, &session.CandidateName, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Session{}, core.NewNotFoundError("interview not found")
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("store: select interview: %w", err)
	}
	if err := json.Unmarshal(topic, &session.Topic); err != nil {
		return types.Session{}, fmt.Errorf("store: decode topic: %w", err)
	}
	return session, nil
}

// AppendTranscriptTurn appends one completed turn to the session transcript.
func (s *Store) AppendTranscriptTurn(ctx context.Context, turn types.TranscriptTurn) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcript_turns (session_id, speaker, text) VALUES ($1, $2, $3)`,
		turn.SessionID, string(turn.Speaker), turn.Text)
	if err != nil {
		return fmt.Errorf("store: insert transcript turn: %w", err)
	}
	return nil
}

// ListTranscriptTurns returns the session transcript in arrival order.
func (s *Store) ListTranscriptTurns(ctx context.Context, sessionID string) ([]types.TranscriptTurn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, speaker, text, created_at FROM transcript_turns WHERE session_id = $1 ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: select transcript: %w", err)
	}
	defer rows.Close()

	var turns []types.TranscriptTurn
	for rows.Next() {
		var (
			turn    types.TranscriptTurn
			speaker string
		)
		if err := rows.Scan(&turn.SessionID, &speaker, &turn.Text, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan transcript turn: %w", err)
		}
		turn.Speaker = types.Speaker(speaker)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate transcript: %w", err)
	}
	return turns, nil
}

// UpsertReport writes the scored report, replacing any previous one for the
// session.
func (s *Store) UpsertReport(ctx context.Context, report types.Report) error {
	questions, err := json.Marshal(report.Questions)
	if err != nil {
		return fmt.Errorf("store: encode questions: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (session_id, overall_score, summary, questions)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO UPDATE
		 SET overall_score = EXCLUDED.overall_score,
		     summary = EXCLUDED.summary,
		     questions = EXCLUDED.questions,
		     created_at = now()`,
		report.SessionID, report.OverallScore, report.Summary, questions)
	if err != nil {
		return fmt.Errorf("store: upsert report: %w", err)
	}
	return nil
}

// GetReport loads the scored report for a session.
func (s *Store) GetReport(ctx context.Context, sessionID string) (types.Report, error) {
	var (
		report    types.Report
		questions []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, overall_score, summary, questions, created_at FROM reports WHERE session_id = $1`,
		sessionID).Scan(&report.SessionID, &report.OverallScore, &report.Summary, &questions, &report.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Report{}, core.NewNotFoundError("report not found")
	}
	if err != nil {
		return types.Report{}, fmt.Errorf("store: select report: %w", err)
	}
	if err := json.Unmarshal(questions, &report.Questions); err != nil {
		return types.Report{}, fmt.Errorf("store: decode questions: %w", err)
	}
	return report, nil
}
