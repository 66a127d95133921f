// Package migrate moves notes between the local store and portable
// files. Two formats are supported: JSONL (one note per line, suited to
// large exports and streaming) and YAML (a single human-editable
// document). Imported notes enter the store as local pending creations
// so the next sync pass pushes them like any other offline edit.
package migrate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/phayzeee/Offline-First-Architecture/internal/note"
	"github.com/phayzeee/Offline-First-Architecture/internal/store"
)

// Format identifies a file format for export or import.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("cannot infer format from %q (use .jsonl or .yaml)", path)
	}
}

// noteRecord is the portable on-disk representation of a note. Sync
// bookkeeping (state, server version) deliberately stays behind: an
// export is content, not replication state.
type noteRecord struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Body      string    `json:"body,omitempty" yaml:"body,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// yamlDocument wraps the note list for the YAML format.
type yamlDocument struct {
	Notes []*noteRecord `yaml:"notes"`
}

// ExportOptions configures an export run.
type ExportOptions struct {
	Path   string
	Format Format // empty means detect from Path
	// IncludeDeleted also exports notes pending deletion.
	IncludeDeleted bool
}

// ExportResult reports what an export did.
type ExportResult struct {
	NotesExported int
	Path          string
}

// ImportOptions configures an import run.
type ImportOptions struct {
	Path   string
	Format Format // empty means detect from Path
	// DryRun parses and validates without writing to the store.
	DryRun bool
	// Overwrite replaces notes whose id already exists locally.
	// Without it, colliding ids are skipped.
	Overwrite bool
}

// ImportResult reports what an import did.
type ImportResult struct {
	NotesImported int
	NotesSkipped  int
	Errors        []string
}

// Export writes the store's notes to a file.
func Export(ctx context.Context, st *store.Store, opts ExportOptions) (*ExportResult, error) {
	format := opts.Format
	if format == "" {
		var err error
		if format, err = DetectFormat(opts.Path); err != nil {
			return nil, err
		}
	}

	notes, err := st.ListContext(ctx, !opts.IncludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	records := make([]*noteRecord, 0, len(notes))
	for _, n := range notes {
		records = append(records, &noteRecord{
			ID:        n.ID,
			Title:     n.Title,
			Body:      n.Body,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		})
	}

	var data []byte
	switch format {
	case FormatJSONL:
		var b strings.Builder
		enc := json.NewEncoder(&b)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return nil, fmt.Errorf("failed to encode note %s: %w", r.ID, err)
			}
		}
		data = []byte(b.String())
	case FormatYAML:
		data, err = yaml.Marshal(&yamlDocument{Notes: records})
		if err != nil {
			return nil, fmt.Errorf("failed to encode notes: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	if err := writeAtomic(opts.Path, data); err != nil {
		return nil, err
	}
	return &ExportResult{NotesExported: len(records), Path: opts.Path}, nil
}

// Import reads notes from a file into the store as pending creations.
func Import(ctx context.Context, st *store.Store, opts ImportOptions) (*ImportResult, error) {
	format := opts.Format
	if format == "" {
		var err error
		if format, err = DetectFormat(opts.Path); err != nil {
			return nil, err
		}
	}

	records, err := readRecords(opts.Path, format)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Title == "" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("note %s: title is required", r.ID))
			continue
		}

		existing, err := st.GetByIDContext(ctx, r.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check note %s: %w", r.ID, err)
		}
		if existing != nil && !opts.Overwrite {
			result.NotesSkipped++
			continue
		}

		if opts.DryRun {
			result.NotesImported++
			continue
		}

		n := &note.Note{
			ID:        r.ID,
			Title:     r.Title,
			Body:      r.Body,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			SyncState: note.StatePendingCreate,
		}
		if existing != nil {
			// Overwriting a note the server already knows must push as
			// an update, not a duplicate create.
			n.ServerVersion = existing.ServerVersion
			n.SyncState = n.StateAfterEdit()
		}
		n.SetDefaults()
		if err := st.PutContext(ctx, n); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("note %s: %v", r.ID, err))
			continue
		}
		result.NotesImported++
	}
	return result, nil
}

func readRecords(path string, format Format) ([]*noteRecord, error) {
	// #nosec G304 - controlled path from CLI
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	switch format {
	case FormatJSONL:
		var records []*noteRecord
		dec := json.NewDecoder(f)
		line := 0
		for {
			var r noteRecord
			if err := dec.Decode(&r); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("invalid JSON at record %d: %w", line+1, err)
			}
			line++
			records = append(records, &r)
		}
		return records, nil

	case FormatYAML:
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var doc yamlDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		return doc.Notes, nil

	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// writeAtomic writes data via a temp file and rename so a crashed
// export never leaves a half-written file behind.
func writeAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
