package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phayzeee/Offline-First-Architecture/internal/migrate"
	"github.com/phayzeee/Offline-First-Architecture/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export notes to a file",
	Long: `Export all notes to a portable file. The format is inferred from the
extension: .jsonl for line-delimited JSON, .yaml for a single YAML
document. Sync bookkeeping is not exported, only content.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		includeDeleted, _ := cmd.Flags().GetBool("include-deleted")

		a := mustOpenApp()
		defer a.close()

		result, err := migrate.Export(context.Background(), a.store, migrate.ExportOptions{
			Path:           args[0],
			IncludeDeleted: includeDeleted,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Exported %d note(s) to %s\n",
			ui.RenderPass("✓"), result.NotesExported, result.Path)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import notes from a file",
	Long: `Import notes from a .jsonl or .yaml file. Imported notes enter the
local database as new pending changes and push on the next sync pass.

Notes whose id already exists locally are skipped unless --overwrite
is given. Use --dry-run to preview without writing.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		a := mustOpenApp()
		defer a.close()

		result, err := migrate.Import(context.Background(), a.store, migrate.ImportOptions{
			Path:      args[0],
			DryRun:    dryRun,
			Overwrite: overwrite,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error importing: %v\n", err)
			os.Exit(1)
		}

		verb := "Imported"
		if dryRun {
			verb = "Would import"
		}
		fmt.Printf("%s %s %d note(s)", ui.RenderPass("✓"), verb, result.NotesImported)
		if result.NotesSkipped > 0 {
			fmt.Printf(", skipped %d existing", result.NotesSkipped)
		}
		fmt.Println()

		for _, e := range result.Errors {
			fmt.Printf("%s %s\n", ui.RenderWarn("⚠"), e)
		}

		if !dryRun && result.NotesImported > 0 {
			a.daemon.ScheduleSync()
		}
	},
}

func init() {
	exportCmd.Flags().Bool("include-deleted", false, "Also export notes pending deletion")
	importCmd.Flags().Bool("dry-run", false, "Parse and validate without writing")
	importCmd.Flags().Bool("overwrite", false, "Replace notes whose id already exists")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
