package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/switchbot/internal/presentation/tui"
	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/program"
	"github.com/aretw0/switchbot/programs"
)

var programsCmd = &cobra.Command{
	Use:   "programs",
	Short: "Describe the built-in programs and their options",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		catalog := program.NewCatalog()
		if err := programs.Register(catalog, programs.Config{OutputDir: cfg.Programs.OutputDir}); err != nil {
			return err
		}
		built, err := catalog.Build(nil)
		if err != nil {
			newLogger(cfg).Warn("Some programs failed to load", "err", err)
		}

		metas := make([]domain.ProgramMetadata, 0, len(built))
		for _, p := range built {
			metas = append(metas, p.Metadata())
		}

		markdown := tui.CatalogMarkdown(metas)
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			fmt.Fprint(cmd.OutOrStdout(), markdown)
			return nil
		}
		out, err := tui.NewRenderer()(markdown)
		if err != nil {
			return fmt.Errorf("rendering catalog: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(programsCmd)
	programsCmd.Flags().Bool("raw", false, "Print markdown without terminal styling")
}
