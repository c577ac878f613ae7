package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solarcraft/bosforge/internal/cli"
	"github.com/solarcraft/bosforge/internal/populate"
)

func populateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "populate <project-id>",
		Short: "Auto-populate BOS equipment from the detected configuration",
		Long: `Detect the best-matching configuration for the subsystem, resolve each
required BOS item against the equipment catalog and company preferences,
and save the result to the project record. Items the catalog cannot
decide are reported for user selection.`,
		Args: cobra.ExactArgs(1),
		RunE: runPopulate,
	}

	cmd.Flags().Int("system", 1, "Subsystem to populate (1-4)")
	cmd.Flags().String("company", "", "Company ID for preferred-equipment filtering")
	cmd.Flags().Bool("skip-existing", true, "Leave already-populated BOS slots alone")
	cmd.Flags().Bool("auto-select", false, "Pick the smallest qualifying catalog entry instead of deferring ambiguous items")
	cmd.Flags().Bool("dry-run", false, "Show the detected configuration without saving anything")
	cmd.Flags().Bool("force", false, "Populate even when the record lacks equipment the configuration expects")

	return cmd
}

func runPopulate(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	systemNumber, _ := cmd.Flags().GetInt("system")
	companyID, _ := cmd.Flags().GetString("company")
	skipExisting, _ := cmd.Flags().GetBool("skip-existing")
	autoSelect, _ := cmd.Flags().GetBool("auto-select")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")

	if systemNumber < 1 || systemNumber > 4 {
		return fmt.Errorf("system must be between 1 and 4, got %d", systemNumber)
	}

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

	state, err := eng.extractor.ForSystem(ctx, fields, systemNumber, reqs)
	if err != nil {
		return fmt.Errorf("failed to extract system %d: %w", systemNumber, err)
	}
	if state == nil {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("System %d has no equipment configured; nothing to populate.", systemNumber)))
		return nil
	}

	match, err := eng.switchboard.BestMatch(ctx, state)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatTitle("Detected configuration"))
	fmt.Fprint(out, cli.RenderMatch(match))

	if ok, missing := populate.ValidateRequiredEquipment(match, fields); !ok {
		fmt.Fprint(out, cli.RenderMissingEquipment(missing))
		if !force {
			return fmt.Errorf("missing required equipment; use --force to populate anyway")
		}
	}

	if dryRun {
		fmt.Fprintln(out, cli.FormatInfo("Dry run: nothing was saved."))
		return nil
	}

	svc := populate.New(store, store, store, store, eng.rules)
	result, err := svc.AutoPopulate(ctx, populate.Request{
		ProjectID:    projectID,
		CompanyID:    companyID,
		SystemNumber: systemNumber,
		Match:        match,
		SkipExisting: skipExisting,
		AutoSelect:   autoSelect,
	})
	if err != nil {
		return err
	}

	fmt.Fprint(out, cli.RenderPopulateResult(result))
	return nil
}
