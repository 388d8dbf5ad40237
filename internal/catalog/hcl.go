package catalog

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

type hclFile struct {
	Roles     []*hclRole     `hcl:"role,block"`
	Templates []*hclTemplate `hcl:"template,block"`
}

type hclRole struct {
	ID           string `hcl:"id,label"`
	Name         string `hcl:"name,optional"`
	Description  string `hcl:"description,optional"`
	SystemPrompt string `hcl:"system_prompt,optional"`
	Provider     string `hcl:"provider,optional"`
	Model        string `hcl:"model,optional"`
}

type hclTemplate struct {
	ID          string     `hcl:"id,label"`
	Name        string     `hcl:"name,optional"`
	Description string     `hcl:"description,optional"`
	Labels      []string   `hcl:"steps,optional"`
	Steps       []*hclStep `hcl:"step,block"`
}

type hclStep struct {
	Name   string `hcl:"name,label"`
	Role   string `hcl:"role,optional"`
	Prompt string `hcl:"prompt,optional"`
}

// parseHCL decodes role and template blocks. A template lists its steps
// either as a steps = [...] label list or as step blocks, not both.
func parseHCL(filename string, src []byte) (*Catalog, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %w", diags)
	}

	c := &Catalog{}
	for _, r := range parsed.Roles {
		c.Roles = append(c.Roles, &core.Role{
			ID:           r.ID,
			Name:         r.Name,
			Description:  r.Description,
			SystemPrompt: r.SystemPrompt,
			Provider:     r.Provider,
			Model:        r.Model,
		})
	}
	for _, t := range parsed.Templates {
		if len(t.Labels) > 0 && len(t.Steps) > 0 {
			return nil, core.ErrValidation(core.CodeInvalidStep,
				fmt.Sprintf("template %q: use either steps or step blocks", t.ID))
		}
		tmpl := &core.Template{ID: t.ID, Name: t.Name, Description: t.Description}
		for _, label := range t.Labels {
			tmpl.Steps = append(tmpl.Steps, core.LabelStep(label))
		}
		for _, s := range t.Steps {
			tmpl.Steps = append(tmpl.Steps, core.FullStep(s.Name, s.Role, s.Prompt))
		}
		c.Templates = append(c.Templates, tmpl)
	}
	return c, nil
}
