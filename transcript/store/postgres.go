package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/sweetpotato0/ai-devteam/transcript"
)

// PostgresStore keeps records in the transcripts table with turns as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the database, pings it and creates the table.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id VARCHAR(64) PRIMARY KEY,
		session_id VARCHAR(255) NOT NULL,
		mode VARCHAR(32) NOT NULL,
		request TEXT NOT NULL,
		state VARCHAR(32) NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		turns JSONB NOT NULL,
		result TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id, started_at);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, record *transcript.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	turns, err := marshalTurns(record)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO transcripts (id, session_id, mode, request, state, error, turns, result, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		state = EXCLUDED.state,
		error = EXCLUDED.error,
		turns = EXCLUDED.turns,
		result = EXCLUDED.result,
		finished_at = EXCLUDED.finished_at
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.SessionID,
		record.Mode,
		record.Request,
		record.State,
		record.Error,
		string(turns),
		record.Result,
		record.StartedAt,
		record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transcript to PostgreSQL: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, sessionID string) ([]*transcript.Record, error) {
	query := `
	SELECT id, session_id, mode, request, state, error, turns, result, started_at, finished_at
	FROM transcripts
	WHERE session_id = $1
	ORDER BY started_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var records []*transcript.Record
	for rows.Next() {
		var (
			record transcript.Record
			turns  []byte
		)
		if err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.Mode,
			&record.Request,
			&record.State,
			&record.Error,
			&turns,
			&record.Result,
			&record.StartedAt,
			&record.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		if err := json.Unmarshal(turns, &record.Turns); err != nil {
			return nil, fmt.Errorf("failed to decode turns: %w", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcripts: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func marshalTurns(record *transcript.Record) ([]byte, error) {
	if len(record.Turns) == 0 {
		return []byte("[]"), nil
	}
	raw, err := json.Marshal(record.Turns)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal turns: %w", err)
	}
	return raw, nil
}
