package catalog

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

type yamlFile struct {
	Roles     []*core.Role     `yaml:"roles"`
	Templates []*core.Template `yaml:"templates"`
}

// parseYAML decodes a document with top-level roles and templates lists.
// Unknown keys are rejected so typos surface instead of being ignored.
func parseYAML(data []byte) (*Catalog, error) {
	var f yamlFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &Catalog{Roles: f.Roles, Templates: f.Templates}, nil
}
