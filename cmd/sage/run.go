package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/phytolab/sage/internal/logging"
	"github.com/phytolab/sage/pkg/models"
)

var (
	runCategory string
	runPriority string
	runCompound string
	runInputs   []string
)

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Run a single research task and print the synthesized result",
	Long: `Run one research task in-process and print the synthesized result.

The query is the main research question. Category selects the workflow:
  research          full pipeline: literature + compound analysis, cross-referenced
  discovery         compound analysis with best-effort cross-referencing
  literature-review literature search only
  cross-validation  literature search validated against traditional sources

Additional input fields can be passed with --input key=value.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringVar(&runCategory, "category", "research", "Task category")
	runCmd.Flags().StringVar(&runPriority, "priority", "medium", "Task priority (low, medium, high, urgent)")
	runCmd.Flags().StringVar(&runCompound, "compound", "", "Compound of interest")
	runCmd.Flags().StringArrayVar(&runInputs, "input", nil, "Extra input field as key=value (repeatable)")
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a config file (overrides the default search)")
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	priority, err := parsePriority(runPriority)
	if err != nil {
		return err
	}

	input := map[string]any{"query": strings.Join(args, " ")}
	if runCompound != "" {
		input["compound"] = runCompound
	}
	for _, pair := range runInputs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --input %q, expected key=value", pair)
		}
		input[key] = value
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), "sage")
	coord, _, cleanup, err := buildCoordinator(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := coord.Start(); err != nil {
		return fmt.Errorf("starting coordinator: %w", err)
	}
	defer coord.Shutdown()

	taskID, err := coord.SubmitTask(models.TaskCategory(runCategory), input, priority)
	if err != nil {
		return err
	}
	fmt.Printf("Submitted task %s\n", taskID)

	var task *models.CoordinatedTask
	for {
		task, err = coord.GetTaskStatus(taskID)
		if err != nil {
			return err
		}
		if task.Status.Terminal() {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if task.Status != models.TaskStatusCompleted {
		color.Red("Task %s: %s", task.Status, task.Error)
		os.Exit(1)
	}
	printResult(task)
	return nil
}

// printResult renders the synthesized result for the terminal.
func printResult(task *models.CoordinatedTask) {
	result := task.FinalResult

	color.Green("Task completed in %s", task.CompletedAt.Sub(*task.StartedAt).Round(time.Millisecond))
	fmt.Printf("Reliability: %.2f  Quality: %.2f\n\n", result.ReliabilityScore, result.QualityScore)

	if len(result.PrimaryFindings) > 0 {
		color.Cyan("Findings")
		for _, finding := range result.PrimaryFindings {
			text := finding.Statement
			if text == "" {
				text = fmt.Sprintf("%s %s %s", finding.Entity, finding.Direction, finding.Attribute)
			}
			fmt.Printf("  [%.2f] %s\n", finding.Confidence, text)
		}
	}

	if len(result.SupportingEvidence) > 0 {
		color.Cyan("\nEvidence")
		for _, ev := range result.SupportingEvidence {
			fmt.Printf("  (%s) %s\n", ev.Provenance, ev.Summary)
		}
	}

	if len(result.Recommendations) > 0 {
		color.Cyan("\nRecommendations")
		for _, rec := range result.Recommendations {
			fmt.Printf("  %s: %s\n", rec.Category, rec.Action)
		}
	}

	if len(result.Conflicts) > 0 {
		color.Yellow("\nConflicts")
		for _, conflict := range result.Conflicts {
			fmt.Printf("  [%s] %s vs %s on %s/%s (gap %.2f)\n",
				conflict.Severity, conflict.WorkerA, conflict.WorkerB,
				conflict.Entity, conflict.Attribute, conflict.ConfidenceGap)
		}
	}

	if len(result.Gaps) > 0 {
		color.Yellow("\nGaps")
		for _, gap := range result.Gaps {
			fmt.Printf("  %s\n", gap)
		}
	}
}
