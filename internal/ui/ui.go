// Package ui provides terminal rendering helpers for the notes CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/phayzeee/Offline-First-Architecture/internal/note"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // blue
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray

	titleStyle = lipgloss.NewStyle().Bold(true)
)

// RenderPass renders success markers.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders warning markers.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderErr renders error markers.
func RenderErr(s string) string { return errStyle.Render(s) }

// RenderAccent renders informational markers.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderDim renders de-emphasized text such as ids and timestamps.
func RenderDim(s string) string { return dimStyle.Render(s) }

// RenderTitle renders a note title.
func RenderTitle(s string) string { return titleStyle.Render(s) }

// RenderState renders a colored badge for a note's sync state.
func RenderState(state note.SyncState) string {
	switch state {
	case note.StateSynced:
		return passStyle.Render("synced")
	case note.StatePendingCreate, note.StatePendingUpdate, note.StatePendingDelete:
		return warnStyle.Render("pending")
	case note.StateSyncFailed:
		return errStyle.Render("failed")
	default:
		return dimStyle.Render(string(state))
	}
}

// RenderStatus renders a colored badge for the derived sync status.
func RenderStatus(status string) string {
	switch status {
	case "idle":
		return passStyle.Render("idle")
	case "syncing":
		return accentStyle.Render("syncing")
	case "pending":
		return warnStyle.Render("pending")
	case "failed":
		return errStyle.Render("failed")
	case "offline":
		return dimStyle.Render("offline")
	default:
		return status
	}
}
