package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phayzeee/Offline-First-Architecture/internal/engine"
	"github.com/phayzeee/Offline-First-Architecture/internal/note"
	"github.com/phayzeee/Offline-First-Architecture/internal/ui"
)

var addCmd = &cobra.Command{
	Use:   "add <title> [body]",
	Short: "Create a new note",
	Long: `Create a new note in the local database.

The note is saved immediately and queued for background sync. It works
exactly the same with or without a network connection.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.close()

		body := ""
		if len(args) > 1 {
			body = args[1]
		}

		n, err := a.engine.CreateNote(context.Background(), args[0], body)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating note: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Created note %s\n", ui.RenderPass("✓"), ui.RenderDim(n.ID))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	Long: `List all notes, newest edit first.

Each note shows a sync badge: synced, pending (waiting for the next
sync pass) or failed (needs 'notes retry').`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.close()

		notes, err := a.engine.Notes(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing notes: %v\n", err)
			os.Exit(1)
		}

		if len(notes) == 0 {
			fmt.Println("No notes yet. Create one with 'notes add'.")
			return
		}

		for _, n := range notes {
			fmt.Printf("%s  %s  %s  %s\n",
				ui.RenderDim(shortID(n.ID)),
				ui.RenderState(n.SyncState),
				ui.RenderTitle(n.Title),
				ui.RenderDim(n.UpdatedAt.Format("2006-01-02 15:04")))
		}
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a note's full content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.close()

		n, err := resolveNote(a, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s  %s\n", ui.RenderTitle(n.Title), ui.RenderState(n.SyncState))
		fmt.Printf("%s\n", ui.RenderDim(fmt.Sprintf("id: %s  updated: %s",
			n.ID, n.UpdatedAt.Format("2006-01-02 15:04:05"))))
		if n.Body != "" {
			fmt.Printf("\n%s\n", n.Body)
		}
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a note's title or body",
	Long: `Edit a note. The change is saved locally right away and pushed on the
next sync pass. Editing a note that is waiting to be deleted is
rejected; the deletion wins.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		title, _ := cmd.Flags().GetString("title")
		body, _ := cmd.Flags().GetString("body")
		if title == "" && !cmd.Flags().Changed("body") {
			fmt.Fprintf(os.Stderr, "Error: nothing to change (use --title and/or --body)\n")
			os.Exit(1)
		}

		a := mustOpenApp()
		defer a.close()
		ctx := context.Background()

		n, err := resolveNote(a, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		newTitle := n.Title
		if title != "" {
			newTitle = title
		}
		newBody := n.Body
		if cmd.Flags().Changed("body") {
			newBody = body
		}

		if _, err := a.engine.EditNote(ctx, n.ID, newTitle, newBody); err != nil {
			if errors.Is(err, engine.ErrNoteDeleted) {
				fmt.Fprintf(os.Stderr, "Error: note %s is pending deletion\n", shortID(n.ID))
			} else {
				fmt.Fprintf(os.Stderr, "Error editing note: %v\n", err)
			}
			os.Exit(1)
		}

		fmt.Printf("%s Updated note %s\n", ui.RenderPass("✓"), ui.RenderDim(shortID(n.ID)))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note",
	Long: `Delete a note. It disappears from listings immediately; the remote
copy is removed on the next sync pass.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.close()

		n, err := resolveNote(a, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := a.engine.DeleteNote(context.Background(), n.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting note: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Deleted note %s\n", ui.RenderPass("✓"), ui.RenderDim(shortID(n.ID)))
	},
}

// resolveNote finds a note by full id or unique prefix.
func resolveNote(a *app, idOrPrefix string) (*note.Note, error) {
	if n, err := a.engine.GetNote(context.Background(), idOrPrefix); err == nil {
		return n, nil
	}

	notes, err := a.store.List(false)
	if err != nil {
		return nil, err
	}

	var matches []*note.Note
	for _, n := range notes {
		if strings.HasPrefix(n.ID, idOrPrefix) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no note matches %q", idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("id prefix %q is ambiguous (%d matches)", idOrPrefix, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	editCmd.Flags().String("title", "", "New title")
	editCmd.Flags().String("body", "", "New body")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
}
