package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.alis.build/alog"
)

// editors often write a file in several steps; changes closer together
// than this trigger one reload
const watchDebounce = 100 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <document>",
		Short: "Render a workbook document and re-render whenever it changes",
		Long: `Watch renders a YAML workbook document, then reloads and renders it again
each time the file is written. A document that fails to load is reported
and watching continues. Stop with Ctrl-C.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			path := args[0]

			watcher, err := newDocumentWatcher(path)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to watch document", err)
			}
			defer watcher.Close()

			render := func() {
				wb, err := loadDocument(rootOpts, path)
				if err != nil {
					_ = f.Error(ErrCodeDocument, fmt.Sprintf("failed to load document: %v", err))
					return
				}
				if err := renderWorkbook(f, wb); err != nil {
					alog.Warnf(cmd.Context(), "watch: %v", err)
				}
			}

			render()
			return watcher.Run(cmd.Context(), func() {
				f.VerboseLog("%s changed, reloading", path)
				render()
			})
		},
	}
	return cmd
}

// documentWatcher reports writes to one file. it watches the parent
// directory so that editors replacing the file by rename are seen too.
type documentWatcher struct {
	watcher *fsnotify.Watcher
	target  string
}

func newDocumentWatcher(path string) (*documentWatcher, error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}
	return &documentWatcher{watcher: watcher, target: target}, nil
}

func (w *documentWatcher) Close() error {
	return w.watcher.Close()
}

// Run calls onChange after each burst of writes to the target until ctx is
// done or the watcher is closed
func (w *documentWatcher) Run(ctx context.Context, onChange func()) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			alog.Debugf(ctx, "watch: %s", event)
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			alog.Warnf(ctx, "watch: %v", err)
		}
	}
}
