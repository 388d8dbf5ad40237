// Package catalog loads role and template definitions from YAML and HCL files.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/fsutil"
)

// Catalog is the set of roles and templates read from a directory.
type Catalog struct {
	Roles     []*core.Role
	Templates []*core.Template
}

// Sink receives loaded catalog entries.
type Sink interface {
	SaveRole(ctx context.Context, role *core.Role) error
	SaveTemplate(ctx context.Context, tmpl *core.Template) error
}

// IsCatalogFile reports whether path has an extension the loader reads.
func IsCatalogFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".hcl":
		return true
	default:
		return false
	}
}

// LoadDir reads every catalog file directly under dir, in name order.
// A missing directory yields an empty catalog.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("reading catalog dir %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsCatalogFile(e.Name()) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	merged := &Catalog{}
	roleSrc := make(map[string]string)
	tmplSrc := make(map[string]string)
	for _, file := range files {
		c, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		for _, r := range c.Roles {
			if prev, dup := roleSrc[r.ID]; dup {
				return nil, core.ErrValidation(core.CodeInvalidConfig,
					fmt.Sprintf("role %q defined in %s and %s", r.ID, prev, file))
			}
			roleSrc[r.ID] = file
			merged.Roles = append(merged.Roles, r)
		}
		for _, t := range c.Templates {
			if prev, dup := tmplSrc[t.ID]; dup {
				return nil, core.ErrValidation(core.CodeInvalidConfig,
					fmt.Sprintf("template %q defined in %s and %s", t.ID, prev, file))
			}
			tmplSrc[t.ID] = file
			merged.Templates = append(merged.Templates, t)
		}
	}
	return merged, nil
}

// LoadFile reads a single YAML or HCL catalog file and validates its entries.
func LoadFile(path string) (*Catalog, error) {
	var c *Catalog
	if !IsCatalogFile(path) {
		return nil, fmt.Errorf("unsupported catalog file %s", path)
	}
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		c, err = parseHCL(path, data)
	} else {
		c, err = parseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks every role and template.
func (c *Catalog) Validate() error {
	for i, r := range c.Roles {
		if r == nil {
			return core.ErrValidation(core.CodeInvalidConfig, fmt.Sprintf("role %d is empty", i))
		}
		if err := r.Validate(); err != nil {
			return err
		}
	}
	for i, t := range c.Templates {
		if t == nil {
			return core.ErrValidation(core.CodeInvalidConfig, fmt.Sprintf("template %d is empty", i))
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("template %s: %w", t.ID, err)
		}
	}
	return nil
}

// Sync upserts every entry into sink.
func (c *Catalog) Sync(ctx context.Context, sink Sink) error {
	now := time.Now()
	for _, r := range c.Roles {
		r.UpdatedAt = now
		if err := sink.SaveRole(ctx, r); err != nil {
			return fmt.Errorf("saving role %s: %w", r.ID, err)
		}
	}
	for _, t := range c.Templates {
		t.UpdatedAt = now
		if err := sink.SaveTemplate(ctx, t); err != nil {
			return fmt.Errorf("saving template %s: %w", t.ID, err)
		}
	}
	return nil
}
