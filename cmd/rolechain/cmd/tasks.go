package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/rolechain/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List stored tasks",
	Args:  cobra.NoArgs,
	RunE:  runTasksList,
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Print a stored task record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksShow,
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a stored task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksDelete,
}

var tasksStatus string

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksShowCmd, tasksDeleteCmd)
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "Only list tasks with this status")
}

func openStore() (core.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return state.New(cfg.State)
}

func runTasksList(cmd *cobra.Command, _ []string) error {
	var want core.TaskStatus
	if tasksStatus != "" {
		st, err := core.ParseTaskStatus(tasksStatus)
		if err != nil {
			return err
		}
		want = st
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.ListTasks(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTEMPLATE\tSTATUS\tPROGRESS\tUPDATED")
	for _, t := range tasks {
		if want != "" && t.Status != want {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\n",
			t.ID, t.TemplateID, t.Status, t.Progress, t.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func runTasksShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	task, err := store.GetTask(cmd.Context(), core.TaskID(args[0]))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(task)
}

func runTasksDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteTask(cmd.Context(), core.TaskID(args[0])); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted task %s\n", args[0])
	return nil
}
