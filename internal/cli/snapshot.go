package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/snapshot"
)

// snapshotFlags are shared by every command touching the snapshot store
type snapshotFlags struct {
	DBPath string
	Name   string
}

func (s *snapshotFlags) register(cmd *cobra.Command, needName bool) {
	cmd.Flags().StringVar(&s.DBPath, "db", "gridcalc.db", "path to the snapshot database")
	if needName {
		cmd.Flags().StringVar(&s.Name, "name", "", "snapshot name")
		_ = cmd.MarkFlagRequired("name")
	}
}

// SaveResult reports a stored snapshot
type SaveResult struct {
	Name   string `json:"name"`
	Sheets int    `json:"sheets"`
}

func (r SaveResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "saved %q (%d sheets)\n", r.Name, r.Sheets)
	return err
}

// SnapshotList is the list command payload
type SnapshotList struct {
	Snapshots []SnapshotInfo `json:"snapshots"`
}

// SnapshotInfo is one stored snapshot
type SnapshotInfo struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Sheets  int    `json:"sheets"`
	Cells   int    `json:"cells"`
	SavedAt string `json:"saved_at"`
}

func (l SnapshotList) WriteText(w io.Writer) error {
	if len(l.Snapshots) == 0 {
		_, err := fmt.Fprintln(w, "no snapshots")
		return err
	}
	for _, s := range l.Snapshots {
		if _, err := fmt.Fprintf(w, "%s\t%d sheets\t%d cells\t%s\n", s.Name, s.Sheets, s.Cells, s.SavedAt); err != nil {
			return err
		}
	}
	return nil
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &snapshotFlags{}
	cmd := &cobra.Command{
		Use:           "save <document>",
		Short:         "Store a workbook document as a named snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			wb, err := loadDocument(rootOpts, args[0])
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeDocument, "failed to load document", err)
			}

			store, err := snapshot.Open(flags.DBPath)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to open snapshot store", err)
			}
			defer store.Close()

			if err := store.Save(cmd.Context(), flags.Name, wb); err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to save snapshot", err)
			}
			return f.Success(SaveResult{Name: flags.Name, Sheets: len(wb.Sheets())})
		},
	}
	flags.register(cmd, true)
	return cmd
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &snapshotFlags{}
	cmd := &cobra.Command{
		Use:           "load",
		Short:         "Render a stored snapshot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			store, err := snapshot.Open(flags.DBPath)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to open snapshot store", err)
			}
			defer store.Close()

			wb, err := store.Load(cmd.Context(), flags.Name, rootOpts.workbookOptions())
			if errors.Is(err, snapshot.ErrNotFound) {
				return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("snapshot %q not found", flags.Name), nil)
			}
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to load snapshot", err)
			}
			return renderWorkbook(f, wb)
		},
	}
	flags.register(cmd, true)
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &snapshotFlags{}
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored snapshots, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			store, err := snapshot.Open(flags.DBPath)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to open snapshot store", err)
			}
			defer store.Close()

			summaries, err := store.List(cmd.Context())
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to list snapshots", err)
			}

			list := SnapshotList{Snapshots: make([]SnapshotInfo, 0, len(summaries))}
			for _, s := range summaries {
				list.Snapshots = append(list.Snapshots, SnapshotInfo{
					Name:    s.Name,
					ID:      s.ID,
					Sheets:  s.Sheets,
					Cells:   s.Cells,
					SavedAt: s.SavedAt.Format(time.RFC3339),
				})
			}
			return f.Success(list)
		},
	}
	flags.register(cmd, false)
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &snapshotFlags{}
	cmd := &cobra.Command{
		Use:           "delete",
		Short:         "Delete a stored snapshot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			store, err := snapshot.Open(flags.DBPath)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to open snapshot store", err)
			}
			defer store.Close()

			err = store.Delete(cmd.Context(), flags.Name)
			if errors.Is(err, snapshot.ErrNotFound) {
				return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("snapshot %q not found", flags.Name), nil)
			}
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to delete snapshot", err)
			}
			return f.Success(fmt.Sprintf("deleted %q", flags.Name))
		},
	}
	flags.register(cmd, true)
	return cmd
}
