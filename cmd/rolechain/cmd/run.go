package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/engine"
	"github.com/hugo-lorenzo-mato/rolechain/internal/fsutil"
	"github.com/hugo-lorenzo-mato/rolechain/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run [input]",
	Short: "Run a template in the foreground",
	Long: `Run a template to completion in the foreground.

The first interrupt pauses the run after the current step, the second stops
it and discards the step in flight. A paused or stopped task keeps its
results and can be continued with --resume.

Examples:
  rolechain run --template draft-review "A short essay on tide pools"
  echo "notes.md contents" | rolechain run -t summarize -
  rolechain run --resume 6f1c3a7e-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var (
	runTemplate  string
	runInputFile string
	runResume    string
	runOutput    string
	runRender    bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runTemplate, "template", "t", "", "Template id to run")
	runCmd.Flags().StringVarP(&runInputFile, "file", "f", "", "Read input from file")
	runCmd.Flags().StringVar(&runResume, "resume", "", "Resume an existing task by id")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output mode (styled, plain, json, quiet; default auto)")
	runCmd.Flags().BoolVar(&runRender, "render", true, "Render the final output as Markdown in styled mode")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runResume == "" && runTemplate == "" {
		return fmt.Errorf("either --template or --resume is required")
	}
	if runResume != "" && (runTemplate != "" || len(args) > 0 || runInputFile != "") {
		return fmt.Errorf("--resume cannot be combined with a template or input")
	}

	detector := tui.NewDetector().NoColor(noColor)
	if runOutput != "" {
		mode, ok := tui.ParseOutputMode(runOutput)
		if !ok {
			return fmt.Errorf("unknown output mode %q", runOutput)
		}
		detector.ForceMode(mode)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	var task *core.TaskRecord
	if runResume != "" {
		task, err = rt.store.GetTask(ctx, core.TaskID(runResume))
		if err != nil {
			return err
		}
		if !task.Resumable() {
			return fmt.Errorf("task %s is %s and cannot be resumed", task.ID, task.Status)
		}
	} else {
		input, err := getInput(args, runInputFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		task, err = newTask(ctx, rt, runTemplate, input)
		if err != nil {
			return err
		}
	}

	printer := tui.NewPrinter(cmd.OutOrStdout(), detector.Detect(), tui.TerminalWidth())

	eng := engine.New(rt.router,
		engine.WithLogger(logger),
		engine.WithStepDelay(cfg.Engine.StepDelayDuration()),
		engine.WithStepTimeout(cfg.Engine.StepTimeoutDuration()),
	)
	for _, kind := range []engine.EventKind{engine.EventLog, engine.EventUpdate, engine.EventError} {
		if err := eng.On(kind, printer.Listener()); err != nil {
			return err
		}
	}
	// Checkpoint every update so a killed process loses at most one step.
	_ = eng.On(engine.EventUpdate, func(ev engine.Event) {
		if err := rt.store.SaveTask(context.WithoutCancel(ctx), ev.Task); err != nil {
			logger.Warn("failed to checkpoint task", slog.String("error", err.Error()))
		}
	})

	eng.Arm()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go handleInterrupts(ctx, sigCh, eng, cancel)

	printer.RunStarted(task)
	runErr := eng.Run(ctx, task)

	if err := rt.store.SaveTask(context.WithoutCancel(ctx), task); err != nil {
		logger.Error("failed to save task", slog.String("error", err.Error()))
	}
	printer.RunFinished(task, runErr, runRender)

	switch task.Status {
	case core.TaskStatusCompleted:
		return nil
	case core.TaskStatusPaused, core.TaskStatusIdle:
		fmt.Fprintf(cmd.ErrOrStderr(), "resume with: rolechain run --resume %s\n", task.ID)
		return nil
	default:
		if runErr == nil {
			runErr = fmt.Errorf("task %s ended with status %s", task.ID, task.Status)
		}
		return runErr
	}
}

// handleInterrupts pauses on the first signal, stops on the second and
// cancels the run on the third.
func handleInterrupts(ctx context.Context, sigCh <-chan os.Signal, eng *engine.Engine, cancel context.CancelFunc) {
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
		}
		switch n {
		case 1:
			fmt.Fprintln(os.Stderr, "\npausing after the current step (interrupt again to stop)")
			eng.Pause()
		case 2:
			fmt.Fprintln(os.Stderr, "\nstopping")
			eng.Stop()
		default:
			cancel()
			return
		}
	}
}

// newTask creates and persists a task for templateID.
func newTask(ctx context.Context, rt *runtime, templateID, input string) (*core.TaskRecord, error) {
	tmpl, err := rt.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	roles, err := rt.roleSet(ctx)
	if err != nil {
		return nil, err
	}
	task, err := core.NewTaskRecord(core.TaskID(uuid.NewString()), tmpl, input, roles, rt.cfg.Engine.FallbackRole)
	if err != nil {
		return nil, err
	}
	if err := rt.store.SaveTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// getInput reads the task input from the argument, a file, or stdin when the
// argument is "-". Empty input is allowed.
func getInput(args []string, inputFile string, stdin io.Reader) (string, error) {
	if inputFile != "" {
		if len(args) > 0 {
			return "", fmt.Errorf("input given both as argument and --file")
		}
		data, err := fsutil.ReadFileScoped(inputFile)
		if err != nil {
			return "", fmt.Errorf("reading input file: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", nil
	}
	if args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
	return args[0], nil
}
