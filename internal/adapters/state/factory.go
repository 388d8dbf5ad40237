package state

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/rolechain/internal/config"
	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

// Backend names accepted by New.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// New opens the store selected by cfg. The path extension is forced to match
// the backend (.db for sqlite, .json for json).
func New(cfg config.StateConfig) (core.Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendSQLite
	}
	switch backend {
	case BackendSQLite:
		return NewSQLiteStore(withExt(cfg.Path, ".db"))
	case BackendJSON:
		return NewJSONStore(withExt(cfg.Path, ".json"))
	default:
		return nil, core.ErrValidation(core.CodeInvalidConfig, fmt.Sprintf("unknown state backend %q", cfg.Backend))
	}
}

func withExt(path, ext string) string {
	if strings.HasSuffix(path, ext) {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
