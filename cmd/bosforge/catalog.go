package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/solarcraft/bosforge/internal/cli"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the equipment catalogs",
	}

	cmd.AddCommand(catalogImportCmd())

	return cmd
}

func catalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import battery, inverter, and BOS catalog data from a YAML file",
		Long: `Load catalog rows from a YAML seed file. Battery and inverter models and
utility requirements upsert by key; BOS equipment and preference rows
append. See the repository's seed examples for the file layout.`,
		Args: cobra.ExactArgs(1),
		RunE: runCatalogImport,
	}
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	path := args[0]

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Importing catalog data"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	inserted, err := store.SeedFromYAML(ctx, f, func(n int) {
		_ = bar.Add(n)
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("catalog import failed after %d row(s): %w", inserted, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %d catalog row(s)", inserted)))
	return nil
}
