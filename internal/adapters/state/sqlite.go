package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// SQLiteStore implements core.Store with SQLite storage.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB
	mu     sync.RWMutex
}

// NewSQLiteStore opens (and migrates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	// WAL lets readers proceed while a run persists its snapshot.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{dbPath: dbPath, db: db}
	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		// Table doesn't exist yet.
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// SaveRole upserts a role.
func (s *SQLiteStore) SaveRole(ctx context.Context, r *core.Role) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, description, system_prompt, provider, model, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			system_prompt = excluded.system_prompt,
			provider = excluded.provider,
			model = excluded.model,
			updated_at = excluded.updated_at
	`, r.ID, r.Name, r.Description, r.SystemPrompt, r.Provider, r.Model, r.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upserting role: %w", err)
	}
	return nil
}

// GetRole returns a role by id.
func (s *SQLiteStore) GetRole(ctx context.Context, id string) (*core.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, system_prompt, provider, model, updated_at
		FROM roles WHERE id = ?`, id)
	r, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound(core.CodeRoleNotFound, "role", id)
	}
	return r, err
}

// ListRoles returns all roles ordered by id.
func (s *SQLiteStore) ListRoles(ctx context.Context) ([]*core.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, system_prompt, provider, model, updated_at
		FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying roles: %w", err)
	}
	defer rows.Close()

	roles := make([]*core.Role, 0)
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// DeleteRole removes a role.
func (s *SQLiteStore) DeleteRole(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "roles", id, core.ErrNotFound(core.CodeRoleNotFound, "role", id))
}

// SaveTemplate upserts a template.
func (s *SQLiteStore) SaveTemplate(ctx context.Context, t *core.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	stepsJSON, err := json.Marshal(t.Steps)
	if err != nil {
		return fmt.Errorf("marshaling steps: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, description, steps, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			steps = excluded.steps,
			updated_at = excluded.updated_at
	`, t.ID, t.Name, t.Description, string(stepsJSON), t.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upserting template: %w", err)
	}
	return nil
}

// GetTemplate returns a template by id.
func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*core.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, steps, updated_at FROM templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound(core.CodeTemplateNotFound, "template", id)
	}
	return t, err
}

// ListTemplates returns all templates ordered by id.
func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]*core.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, steps, updated_at FROM templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*core.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// DeleteTemplate removes a template.
func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "templates", id, core.ErrNotFound(core.CodeTemplateNotFound, "template", id))
}

// SaveTask upserts a task record.
func (s *SQLiteStore) SaveTask(ctx context.Context, t *core.TaskRecord) error {
	if t.ID == "" {
		return core.ErrValidation(core.CodeInvalidID, "task id cannot be empty")
	}
	checksum, err := taskChecksum(t)
	if err != nil {
		return err
	}
	stepsJSON, err := json.Marshal(t.Steps)
	if err != nil {
		return fmt.Errorf("marshaling steps: %w", err)
	}
	results := t.Results
	if results == nil {
		results = []string{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, template_id, input, steps, current_step, results, status,
			progress, token_cost, error, checksum, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			template_id = excluded.template_id,
			input = excluded.input,
			steps = excluded.steps,
			current_step = excluded.current_step,
			results = excluded.results,
			status = excluded.status,
			progress = excluded.progress,
			token_cost = excluded.token_cost,
			error = excluded.error,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at
	`,
		string(t.ID), t.TemplateID, t.Input, string(stepsJSON), t.CurrentStep,
		string(resultsJSON), string(t.Status), t.Progress, t.TokenCost, t.Error,
		checksum, t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upserting task: %w", err)
	}
	return nil
}

// GetTask returns a task record by id, verifying its checksum.
func (s *SQLiteStore) GetTask(ctx context.Context, id core.TaskID) (*core.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, taskSelect+" WHERE id = ?", string(id))
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound(core.CodeTaskNotFound, "task", string(id))
	}
	return t, err
}

// ListTasks returns all task records, newest first.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*core.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, taskSelect+" ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*core.TaskRecord, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DeleteTask removes a task record.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id core.TaskID) error {
	return s.deleteByID(ctx, "tasks", string(id), core.ErrNotFound(core.CodeTaskNotFound, "task", string(id)))
}

func (s *SQLiteStore) deleteByID(ctx context.Context, table, id string, notFound error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// table is one of a fixed set of names, never user input.
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

const taskSelect = `
	SELECT id, template_id, input, steps, current_step, results, status,
		progress, token_cost, error, checksum, created_at, updated_at
	FROM tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*core.Role, error) {
	var (
		r       core.Role
		updated int64
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.SystemPrompt, &r.Provider, &r.Model, &updated); err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Unix(0, updated)
	return &r, nil
}

func scanTemplate(row rowScanner) (*core.Template, error) {
	var (
		t       core.Template
		steps   string
		updated int64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &steps, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(steps), &t.Steps); err != nil {
		return nil, fmt.Errorf("unmarshaling steps of template %s: %w", t.ID, err)
	}
	t.UpdatedAt = time.Unix(0, updated)
	return &t, nil
}

func scanTask(row rowScanner) (*core.TaskRecord, error) {
	var (
		t                core.TaskRecord
		id, status       string
		steps, results   string
		checksum         string
		created, updated int64
	)
	if err := row.Scan(&id, &t.TemplateID, &t.Input, &steps, &t.CurrentStep, &results, &status,
		&t.Progress, &t.TokenCost, &t.Error, &checksum, &created, &updated); err != nil {
		return nil, err
	}
	t.ID = core.TaskID(id)
	t.Status = core.TaskStatus(status)
	t.CreatedAt = time.Unix(0, created)
	t.UpdatedAt = time.Unix(0, updated)

	if err := json.Unmarshal([]byte(steps), &t.Steps); err != nil {
		return nil, fmt.Errorf("unmarshaling steps of task %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(results), &t.Results); err != nil {
		return nil, fmt.Errorf("unmarshaling results of task %s: %w", id, err)
	}

	want, err := taskChecksum(&t)
	if err != nil {
		return nil, err
	}
	if want != checksum {
		return nil, core.ErrState(CodeStateCorrupted, fmt.Sprintf("task %s: checksum mismatch", id))
	}
	return &t, nil
}

var _ core.Store = (*SQLiteStore)(nil)
