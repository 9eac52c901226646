package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*Postgres)(nil)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS interview_sessions (
    session_id       TEXT         PRIMARY KEY,
    user_id          TEXT         NOT NULL,
    university       TEXT         NOT NULL DEFAULT '',
    program          TEXT         NOT NULL DEFAULT '',
    duration_minutes INT          NOT NULL DEFAULT 0,
    started_at       TIMESTAMPTZ  NOT NULL,
    completed_at     TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interview_sessions_user
    ON interview_sessions (user_id, started_at DESC);

CREATE TABLE IF NOT EXISTS qa_pairs (
    qa_id         BIGSERIAL    PRIMARY KEY,
    session_id    TEXT         NOT NULL REFERENCES interview_sessions (session_id) ON DELETE CASCADE,
    question_text TEXT         NOT NULL,
    answer_text   TEXT         NOT NULL,
    quality_score DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_qa_pairs_session
    ON qa_pairs (session_id);
`

// Postgres is the PostgreSQL-backed session store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure the required tables exist.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Migrate creates the session tables if they do not exist. It is idempotent
// and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlSessions); err != nil {
		return fmt.Errorf("store migrate: %w", err)
	}
	return nil
}

// SaveCompleteSession implements [Store]. The session row and all Q&A pairs
// are written in one transaction so a crash cannot leave a partial record.
func (p *Postgres) SaveCompleteSession(ctx context.Context, session Session, pairs []QAPair) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSession = `
		INSERT INTO interview_sessions
		    (session_id, user_id, university, program, duration_minutes, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = tx.Exec(ctx, insertSession,
		session.ID,
		session.UserID,
		session.University,
		session.Program,
		session.DurationMinutes,
		session.StartedAt,
		session.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert session: %w", err)
	}

	const insertQA = `
		INSERT INTO qa_pairs (session_id, question_text, answer_text, quality_score)
		VALUES ($1, $2, $3, $4)`

	for _, qa := range pairs {
		if _, err := tx.Exec(ctx, insertQA, session.ID, qa.Question, qa.Answer, qa.QualityScore); err != nil {
			return fmt.Errorf("store: insert qa pair: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// UserSessions implements [Store].
func (p *Postgres) UserSessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	const q = `
		SELECT s.session_id,
		       s.university,
		       s.program,
		       s.started_at,
		       s.completed_at,
		       COUNT(q.qa_id)               AS total_questions,
		       COALESCE(AVG(q.quality_score), 0) AS avg_score
		FROM   interview_sessions s
		LEFT JOIN qa_pairs q ON s.session_id = q.session_id
		WHERE  s.user_id = $1
		GROUP  BY s.session_id, s.university, s.program, s.started_at, s.completed_at
		ORDER  BY s.started_at DESC`

	rows, err := p.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("store: user sessions: %w", err)
	}

	summaries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SessionSummary, error) {
		var s SessionSummary
		err := row.Scan(
			&s.SessionID,
			&s.University,
			&s.Program,
			&s.StartedAt,
			&s.CompletedAt,
			&s.TotalQuestions,
			&s.AvgScore,
		)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan user sessions: %w", err)
	}
	if summaries == nil {
		summaries = []SessionSummary{}
	}
	return summaries, nil
}

// Ping implements [Store].
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close implements [Store].
func (p *Postgres) Close() {
	p.pool.Close()
}
