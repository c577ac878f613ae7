package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solarcraft/bosforge/internal/cli"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <project-id>",
		Short: "Detect the matching system configuration(s) for a project",
		Long: `Read the project's equipment record, normalize each subsystem, and run
the configuration detectors against it. Prints the ranked matches with
their BOS equipment, sized from the recorded inverter and battery
outputs. Nothing is written to the project record.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().Int("system", 0, "Analyze a single subsystem (1-4) instead of all of them")
	cmd.Flags().Int("top", 3, "Number of ranked matches to show per subsystem")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	systemNumber, _ := cmd.Flags().GetInt("system")
	top, _ := cmd.Flags().GetInt("top")

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	eng, err := buildEngine(store)
	if err != nil {
		return err
	}

	fields, err := store.Fields(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to read project %s: %w", projectID, err)
	}
	reqs, err := utilityRequirements(ctx, store, fields)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if systemNumber > 0 {
		state, err := eng.extractor.ForSystem(ctx, fields, systemNumber, reqs)
		if err != nil {
			return fmt.Errorf("failed to extract system %d: %w", systemNumber, err)
		}
		if state == nil {
			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("System %d has no equipment configured.", systemNumber)))
			return nil
		}
		matches, err := eng.switchboard.TopMatches(ctx, state, top)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("System %d", systemNumber)))
		fmt.Fprint(out, cli.RenderMatches(matches))
		return nil
	}

	states := eng.extractor.AllSystems(ctx, fields, reqs)
	if len(states) == 0 {
		fmt.Fprintln(out, cli.FormatInfo("No subsystem equipment found on this project."))
		return nil
	}

	result, err := eng.switchboard.AnalyzeAllSystems(ctx, states)
	if err != nil {
		return err
	}

	for n := 1; n <= 4; n++ {
		matches, ok := result.Systems[n]
		if !ok {
			continue
		}
		if top > 0 && len(matches) > top {
			matches = matches[:top]
		}
		fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("System %d", n)))
		fmt.Fprint(out, cli.RenderMatches(matches))
		fmt.Fprintln(out)
	}

	for _, warning := range result.Warnings {
		fmt.Fprintln(out, cli.FormatWarning(warning))
	}
	for _, rec := range result.Recommendations {
		fmt.Fprintln(out, cli.FormatInfo(rec))
	}

	return nil
}
