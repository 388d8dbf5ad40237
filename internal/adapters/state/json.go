package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

const jsonStoreVersion = 1

// JSONStore implements core.Store on a single JSON document. Every write
// rewrites the whole file atomically and keeps the previous copy as a backup.
type JSONStore struct {
	path       string
	backupPath string
	lockPath   string
	lockTTL    time.Duration

	mu   sync.RWMutex
	data storeData
}

// JSONStoreOption configures the store.
type JSONStoreOption func(*JSONStore)

// WithBackupPath sets the backup file path.
func WithBackupPath(path string) JSONStoreOption {
	return func(s *JSONStore) {
		s.backupPath = path
	}
}

// WithLockTTL sets the age after which a lock file is considered stale.
func WithLockTTL(ttl time.Duration) JSONStoreOption {
	return func(s *JSONStore) {
		s.lockTTL = ttl
	}
}

type storeData struct {
	Roles     map[string]*core.Role            `json:"roles"`
	Templates map[string]*core.Template        `json:"templates"`
	Tasks     map[core.TaskID]*core.TaskRecord `json:"tasks"`
}

// storeEnvelope wraps the document with integrity metadata.
type storeEnvelope struct {
	Version   int             `json:"version"`
	Checksum  string          `json:"checksum"`
	UpdatedAt time.Time       `json:"updated_at"`
	Data      json.RawMessage `json:"data"`
}

// NewJSONStore opens the document at path, taking the lock file next to it.
// A missing document starts empty; a corrupt one falls back to its backup.
func NewJSONStore(path string, opts ...JSONStoreOption) (*JSONStore, error) {
	s := &JSONStore{
		path:       path,
		backupPath: path + ".bak",
		lockPath:   path + ".lock",
		lockTTL:    time.Hour,
		data:       emptyData(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	if err := acquireFileLock(s.lockPath, s.lockTTL); err != nil {
		return nil, err
	}
	if err := s.load(); err != nil {
		_ = releaseFileLock(s.lockPath)
		return nil, err
	}
	return s, nil
}

func emptyData() storeData {
	return storeData{
		Roles:     make(map[string]*core.Role),
		Templates: make(map[string]*core.Template),
		Tasks:     make(map[core.TaskID]*core.TaskRecord),
	}
}

// Path returns the document path.
func (s *JSONStore) Path() string {
	return s.path
}

// BackupPath returns the backup file path.
func (s *JSONStore) BackupPath() string {
	return s.backupPath
}

// Close releases the lock file.
func (s *JSONStore) Close() error {
	return releaseFileLock(s.lockPath)
}

func (s *JSONStore) load() error {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	data, err := readDocument(s.path)
	if err != nil {
		backup, backupErr := readDocument(s.backupPath)
		if backupErr != nil {
			return fmt.Errorf("loading state: %w (backup also failed: %v)", err, backupErr)
		}
		data = backup
	}
	s.data = data
	return nil
}

func readDocument(path string) (storeData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return storeData{}, fmt.Errorf("reading file: %w", err)
	}

	var env storeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return storeData{}, fmt.Errorf("unmarshaling envelope: %w", err)
	}
	if env.Version != jsonStoreVersion {
		return storeData{}, core.ErrState(CodeStateCorrupted, fmt.Sprintf("unsupported version %d", env.Version))
	}
	if checksumBytes(env.Data) != env.Checksum {
		return storeData{}, core.ErrState(CodeStateCorrupted, "checksum mismatch")
	}

	data := emptyData()
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return storeData{}, fmt.Errorf("unmarshaling data: %w", err)
	}
	if data.Roles == nil {
		data.Roles = make(map[string]*core.Role)
	}
	if data.Templates == nil {
		data.Templates = make(map[string]*core.Template)
	}
	if data.Tasks == nil {
		data.Tasks = make(map[core.TaskID]*core.TaskRecord)
	}
	return data, nil
}

// flush writes the document. Callers hold s.mu.
func (s *JSONStore) flush() error {
	payload, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("marshaling data: %w", err)
	}
	doc, err := json.MarshalIndent(storeEnvelope{
		Version:   jsonStoreVersion,
		Checksum:  checksumBytes(payload),
		UpdatedAt: time.Now(),
		Data:      payload,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	if prev, err := os.ReadFile(s.path); err == nil {
		if err := atomicWriteFile(s.backupPath, prev, 0o600); err != nil {
			return fmt.Errorf("creating backup: %w", err)
		}
	}
	if err := atomicWriteFile(s.path, doc, 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

// SaveRole upserts a role.
func (s *JSONStore) SaveRole(_ context.Context, r *core.Role) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	cp := *r

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data.Roles[r.ID]
	s.data.Roles[r.ID] = &cp
	if err := s.flush(); err != nil {
		if had {
			s.data.Roles[r.ID] = prev
		} else {
			delete(s.data.Roles, r.ID)
		}
		return err
	}
	return nil
}

// GetRole returns a role by id.
func (s *JSONStore) GetRole(_ context.Context, id string) (*core.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data.Roles[id]
	if !ok {
		return nil, core.ErrNotFound(core.CodeRoleNotFound, "role", id)
	}
	cp := *r
	return &cp, nil
}

// ListRoles returns all roles ordered by id.
func (s *JSONStore) ListRoles(_ context.Context) ([]*core.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]*core.Role, 0, len(s.data.Roles))
	for _, r := range s.data.Roles {
		cp := *r
		roles = append(roles, &cp)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

// DeleteRole removes a role.
func (s *JSONStore) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.data.Roles[id]
	if !ok {
		return core.ErrNotFound(core.CodeRoleNotFound, "role", id)
	}
	delete(s.data.Roles, id)
	if err := s.flush(); err != nil {
		s.data.Roles[id] = prev
		return err
	}
	return nil
}

// SaveTemplate upserts a template.
func (s *JSONStore) SaveTemplate(_ context.Context, t *core.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	cp := *t
	cp.Steps = append([]core.StepDefinition(nil), t.Steps...)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data.Templates[t.ID]
	s.data.Templates[t.ID] = &cp
	if err := s.flush(); err != nil {
		if had {
			s.data.Templates[t.ID] = prev
		} else {
			delete(s.data.Templates, t.ID)
		}
		return err
	}
	return nil
}

// GetTemplate returns a template by id.
func (s *JSONStore) GetTemplate(_ context.Context, id string) (*core.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data.Templates[id]
	if !ok {
		return nil, core.ErrNotFound(core.CodeTemplateNotFound, "template", id)
	}
	cp := *t
	cp.Steps = append([]core.StepDefinition(nil), t.Steps...)
	return &cp, nil
}

// ListTemplates returns all templates ordered by id.
func (s *JSONStore) ListTemplates(_ context.Context) ([]*core.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	templates := make([]*core.Template, 0, len(s.data.Templates))
	for _, t := range s.data.Templates {
		cp := *t
		cp.Steps = append([]core.StepDefinition(nil), t.Steps...)
		templates = append(templates, &cp)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

// DeleteTemplate removes a template.
func (s *JSONStore) DeleteTemplate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.data.Templates[id]
	if !ok {
		return core.ErrNotFound(core.CodeTemplateNotFound, "template", id)
	}
	delete(s.data.Templates, id)
	if err := s.flush(); err != nil {
		s.data.Templates[id] = prev
		return err
	}
	return nil
}

// SaveTask upserts a task record.
func (s *JSONStore) SaveTask(_ context.Context, t *core.TaskRecord) error {
	if t.ID == "" {
		return core.ErrValidation(core.CodeInvalidID, "task id cannot be empty")
	}
	cp := t.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data.Tasks[t.ID]
	s.data.Tasks[t.ID] = cp
	if err := s.flush(); err != nil {
		if had {
			s.data.Tasks[t.ID] = prev
		} else {
			delete(s.data.Tasks, t.ID)
		}
		return err
	}
	return nil
}

// GetTask returns a task record by id.
func (s *JSONStore) GetTask(_ context.Context, id core.TaskID) (*core.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data.Tasks[id]
	if !ok {
		return nil, core.ErrNotFound(core.CodeTaskNotFound, "task", string(id))
	}
	return t.Clone(), nil
}

// ListTasks returns all task records, newest first.
func (s *JSONStore) ListTasks(_ context.Context) ([]*core.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make([]*core.TaskRecord, 0, len(s.data.Tasks))
	for _, t := range s.data.Tasks {
		tasks = append(tasks, t.Clone())
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

// DeleteTask removes a task record.
func (s *JSONStore) DeleteTask(_ context.Context, id core.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.data.Tasks[id]
	if !ok {
		return core.ErrNotFound(core.CodeTaskNotFound, "task", string(id))
	}
	delete(s.data.Tasks, id)
	if err := s.flush(); err != nil {
		s.data.Tasks[id] = prev
		return err
	}
	return nil
}

var _ core.Store = (*JSONStore)(nil)
