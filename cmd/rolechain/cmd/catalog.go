package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/rolechain/internal/catalog"
	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect role and template files",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate a catalog directory",
	Long: `Load every YAML and HCL file in a catalog directory and check roles,
templates and step definitions. Bare step labels that name no role are
reported, since they will run with the fallback role. Structured steps whose
role is missing are reported too, since tasks cannot be created from them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalogValidate,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	dir := ""
	if len(args) == 1 {
		dir = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir = cfg.Catalog.Dir
	}

	c, err := catalog.LoadDir(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	roles := make(core.RoleSet, len(c.Roles))
	for _, r := range c.Roles {
		roles[r.ID] = true
	}
	for _, t := range c.Templates {
		for _, def := range t.Steps {
			switch {
			case def.Kind == core.StepKindLabel && !roles[def.Name]:
				fmt.Fprintf(out, "warning: template %s: step %q names no role, fallback role applies\n", t.ID, def.Name)
			case def.Kind == core.StepKindFull && !roles[def.Role]:
				fmt.Fprintf(out, "warning: template %s: step %q uses unknown role %q, tasks from it will be rejected\n", t.ID, def.Name, def.Role)
			}
		}
	}
	fmt.Fprintf(out, "%s: %d roles, %d templates OK\n", dir, len(c.Roles), len(c.Templates))
	return nil
}
