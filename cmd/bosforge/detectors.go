package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solarcraft/bosforge/internal/cli"
	"github.com/solarcraft/bosforge/internal/model"
)

func detectorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detectors",
		Short: "List the registered configuration detectors",
		Long: `Print every registered detector in evaluation order: priority, config ID,
and the utilities it applies to. Useful for checking which rule would win
for a given project before running analyze.`,
		RunE: runDetectors,
	}

	cmd.Flags().String("utility", "", "Only show detectors applicable to this utility")

	return cmd
}

func runDetectors(cmd *cobra.Command, _ []string) error {
	utility, _ := cmd.Flags().GetString("utility")

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

	detectors := eng.switchboard.Detectors()
	if utility != "" {
		filtered := make([]*model.Detector, 0, len(detectors))
		for _, d := range detectors {
			if d.AppliesToUtility(utility) {
				filtered = append(filtered, d)
			}
		}
		detectors = filtered
	}

	out := cmd.OutOrStdout()
	title := "Registered detectors"
	if utility != "" {
		title += " for " + strings.ToUpper(utility)
	}
	fmt.Fprintln(out, cli.FormatTitle(title))
	fmt.Fprint(out, cli.RenderDetectors(detectors))
	fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("%d detector(s)", len(detectors))))

	return nil
}
