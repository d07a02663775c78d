// Package store is the Postgres persistence layer: users, projects, ideas,
// plan boards, agent results, checkpoints, and saved searches.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	core "github.com/museworks/museflow/internal/agent/core"
)

type Store struct {
	DB *sql.DB
}

// New constructs the Store from POSTGRES_* environment variables when no
// explicit DSN is configured.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenvDefault("POSTGRES_USER", "museflow")
		pass := getenvDefault("POSTGRES_PASSWORD", "museflow")
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		db := getenvDefault("POSTGRES_DB", "museflow")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations

func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Project operations

type Project struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

func (s *Store) CreateProject(ctx context.Context, userID, name, description string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO projects (user_id, name, description) VALUES ($1,$2,$3) RETURNING id`,
		userID, name, description).Scan(&id)
	return id, err
}

func (s *Store) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, name, description, created_at, last_accessed_at FROM projects WHERE user_id=$1 ORDER BY last_accessed_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.CreatedAt, &p.LastAccessedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProject reads one project and touches last_accessed_at.
func (s *Store) GetProject(ctx context.Context, id, userID string) (Project, bool, error) {
	var p Project
	err := s.DB.QueryRowContext(ctx,
		`UPDATE projects SET last_accessed_at=now() WHERE id=$1 AND user_id=$2
		 RETURNING id, user_id, name, description, created_at, last_accessed_at`,
		id, userID).Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.CreatedAt, &p.LastAccessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, false, nil
	}
	if err != nil {
		return Project{}, false, err
	}
	return p, true, nil
}

// Idea operations

type Idea struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Report    string    `json:"report"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) CreateIdea(ctx context.Context, projectID, userID, title, content string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO ideas (project_id, user_id, title, content) VALUES ($1,$2,$3,$4) RETURNING id`,
		projectID, userID, title, content).Scan(&id)
	return id, err
}

func (s *Store) GetIdea(ctx context.Context, id, userID string) (Idea, bool, error) {
	var it Idea
	var report sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, project_id, user_id, title, content, report, created_at, updated_at FROM ideas WHERE id=$1 AND user_id=$2`,
		id, userID).Scan(&it.ID, &it.ProjectID, &it.UserID, &it.Title, &it.Content, &report, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Idea{}, false, nil
	}
	if err != nil {
		return Idea{}, false, err
	}
	it.Report = report.String
	return it, true, nil
}

func (s *Store) ListIdeas(ctx context.Context, projectID, userID string) ([]Idea, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, project_id, user_id, title, content, COALESCE(report,''), created_at, updated_at
		 FROM ideas WHERE project_id=$1 AND user_id=$2 ORDER BY created_at DESC`,
		projectID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Idea
	for rows.Next() {
		var it Idea
		if err := rows.Scan(&it.ID, &it.ProjectID, &it.UserID, &it.Title, &it.Content, &it.Report, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) UpdateIdeaReport(ctx context.Context, id, userID, report string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE ideas SET report=$3, updated_at=now() WHERE id=$1 AND user_id=$2`,
		id, userID, report)
	return err
}

// Idea chat operations

type IdeaChat struct {
	ID        string    `json:"id"`
	IdeaID    string    `json:"idea_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) CreateIdeaChat(ctx context.Context, ideaID, role, content string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO idea_chats (idea_id, role, content) VALUES ($1,$2,$3) RETURNING id`,
		ideaID, role, content).Scan(&id)
	return id, err
}

func (s *Store) ListIdeaChats(ctx context.Context, ideaID string) ([]IdeaChat, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, idea_id, role, content, created_at FROM idea_chats WHERE idea_id=$1 ORDER BY created_at ASC`,
		ideaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []IdeaChat
	for rows.Next() {
		var m IdeaChat
		if err := rows.Scan(&m.ID, &m.IdeaID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Plan board operations

type Plan struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Contents    string    `json:"contents"`
	Description string    `json:"description"`
	IsAI        bool      `json:"is_ai"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Store) CreatePlan(ctx context.Context, projectID, title, contents, description string, isAI bool) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO plans (project_id, title, contents, description, is_ai) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		projectID, title, contents, description, isAI).Scan(&id)
	return id, err
}

func (s *Store) GetPlan(ctx context.Context, id string) (Plan, bool, error) {
	var p Plan
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, project_id, title, contents, description, is_ai, created_at, updated_at FROM plans WHERE id=$1`,
		id).Scan(&p.ID, &p.ProjectID, &p.Title, &p.Contents, &p.Description, &p.IsAI, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, false, nil
	}
	if err != nil {
		return Plan{}, false, err
	}
	return p, true, nil
}

func (s *Store) ListPlans(ctx context.Context, projectID string) ([]Plan, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, project_id, title, contents, description, is_ai, created_at, updated_at
		 FROM plans WHERE project_id=$1 ORDER BY created_at ASC`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Title, &p.Contents, &p.Description, &p.IsAI, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePlanContents(ctx context.Context, id, contents string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE plans SET contents=$2, updated_at=now() WHERE id=$1`,
		id, contents)
	return err
}

// Agent result operations. A search run appends its messages under the
// project keyed by thread id; "create" mode starts a fresh thread.

type AgentResult struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	ThreadID  string    `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) AppendAgentResult(ctx context.Context, projectID, threadID, role, content string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO agent_results (project_id, thread_id, role, content) VALUES ($1,$2,$3,$4) RETURNING id`,
		projectID, threadID, role, content).Scan(&id)
	return id, err
}

func (s *Store) ListAgentResults(ctx context.Context, projectID string) ([]AgentResult, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, project_id, thread_id, role, content, created_at
		 FROM agent_results WHERE project_id=$1 ORDER BY created_at ASC`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AgentResult
	for rows.Next() {
		var r AgentResult
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.ThreadID, &r.Role, &r.Content, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAgentResults(ctx context.Context, projectID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM agent_results WHERE project_id=$1`, projectID)
	return err
}

// Checkpoint operations: the workflow engine's durable store, one row per
// thread id, whole state replaced on every save.

func (s *Store) UpsertCheckpoint(ctx context.Context, threadID string, state []byte, status string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO agent_checkpoints (thread_id, state, status, updated_at) VALUES ($1,$2,$3,now())
		 ON CONFLICT (thread_id) DO UPDATE SET state=EXCLUDED.state, status=EXCLUDED.status, updated_at=now()`,
		threadID, state, status)
	return err
}

func (s *Store) GetCheckpoint(ctx context.Context, threadID string) ([]byte, string, bool, error) {
	var state []byte
	var status string
	err := s.DB.QueryRowContext(ctx,
		`SELECT state, status FROM agent_checkpoints WHERE thread_id=$1`,
		threadID).Scan(&state, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, err
	}
	return state, status, true, nil
}

// Saved search operations (scheduler digests)

type SavedSearch struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	UserID    string     `json:"user_id"`
	Query     string     `json:"query"`
	CronExpr  string     `json:"cron_expr"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (s *Store) CreateSavedSearch(ctx context.Context, projectID, userID, query, cronExpr string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO saved_searches (project_id, user_id, query, cron_expr) VALUES ($1,$2,$3,$4) RETURNING id`,
		projectID, userID, query, cronExpr).Scan(&id)
	return id, err
}

func (s *Store) ListSavedSearches(ctx context.Context) ([]SavedSearch, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, project_id, user_id, query, cron_expr, last_run_at, created_at FROM saved_searches ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SavedSearch
	for rows.Next() {
		var ss SavedSearch
		var last sql.NullTime
		if err := rows.Scan(&ss.ID, &ss.ProjectID, &ss.UserID, &ss.Query, &ss.CronExpr, &last, &ss.CreatedAt); err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time
			ss.LastRunAt = &t
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

func (s *Store) TouchSavedSearch(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE saved_searches SET last_run_at=now() WHERE id=$1`, id)
	return err
}

// AgentCheckpoints adapts the checkpoint rows to the workflow engine's
// durable-store contract.
type AgentCheckpoints struct {
	S *Store
}

func (a AgentCheckpoints) SaveCheckpoint(ctx context.Context, threadID string, state core.PlanState, status string) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return a.S.UpsertCheckpoint(ctx, threadID, b, status)
}

func (a AgentCheckpoints) LoadCheckpoint(ctx context.Context, threadID string) (core.PlanState, bool, error) {
	b, _, ok, err := a.S.GetCheckpoint(ctx, threadID)
	if err != nil || !ok {
		return core.PlanState{}, ok, err
	}
	var ps core.PlanState
	if err := json.Unmarshal(b, &ps); err != nil {
		return core.PlanState{}, false, fmt.Errorf("decode checkpoint: %w", err)
	}
	return ps, true, nil
}
