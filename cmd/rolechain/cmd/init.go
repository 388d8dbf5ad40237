package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/rolechain/internal/catalog"
	"github.com/hugo-lorenzo-mato/rolechain/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a project configuration and starter catalog",
	Long: `Create .rolechain/config.yaml and a starter catalog in the given directory
(default: current directory). Existing files are kept unless --force is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	out := cmd.OutOrStdout()

	path, created, err := config.EnsureProjectConfig(root, initForce)
	if err != nil {
		return err
	}
	report(out, path, created)

	samplePath := filepath.Join(root, config.ProjectDir, "catalog", catalog.SampleFileName)
	created = false
	if _, statErr := os.Stat(samplePath); initForce || os.IsNotExist(statErr) {
		if err := config.AtomicWrite(samplePath, []byte(catalog.SampleYAML)); err != nil {
			return fmt.Errorf("writing starter catalog: %w", err)
		}
		created = true
	} else if statErr != nil {
		return fmt.Errorf("checking starter catalog: %w", statErr)
	}
	report(out, samplePath, created)
	return nil
}

func report(w io.Writer, path string, created bool) {
	if created {
		fmt.Fprintf(w, "created %s\n", path)
	} else {
		fmt.Fprintf(w, "kept existing %s\n", path)
	}
}
