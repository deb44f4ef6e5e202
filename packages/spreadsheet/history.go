package spreadsheet

import (
	"context"
	"slices"

	"go.alis.build/alog"
)

// DefaultHistoryDepth is the number of command groups kept for undo
const DefaultHistoryDepth = 200

// UndoEntry is the before/after state of one coordinate. a nil side means
// the cell was empty.
type UndoEntry struct {
	Sheet  SheetID
	Coord  CellCoord
	Before *Cell
	After  *Cell
}

// CommandGroup is one user-visible action, undone and redone as a unit
type CommandGroup struct {
	ID      string
	Label   string
	Entries []UndoEntry
}

// CommandHistory holds undo and redo stacks of command groups. past the
// depth limit the oldest group is dropped silently; a depth of zero or
// less keeps everything.
type CommandHistory struct {
	undo  []CommandGroup
	redo  []CommandGroup
	depth int
}

func NewCommandHistory(depth int) *CommandHistory {
	return &CommandHistory{depth: depth}
}

// Push records a committed group and clears the redo stack. empty groups
// are not recorded and leave redo intact.
func (h *CommandHistory) Push(ctx context.Context, group CommandGroup) {
	if len(group.Entries) == 0 {
		return
	}
	h.undo = append(h.undo, group)
	h.redo = nil

	if h.depth > 0 && len(h.undo) > h.depth {
		dropped := len(h.undo) - h.depth
		alog.Debugf(ctx, "history: dropping %d oldest command group(s), depth %d", dropped, h.depth)
		h.undo = slices.Delete(h.undo, 0, dropped)
	}
}

// popUndo moves the newest undo group onto the redo stack and returns it
func (h *CommandHistory) popUndo() (CommandGroup, bool) {
	if len(h.undo) == 0 {
		return CommandGroup{}, false
	}
	group := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, group)
	return group, true
}

// popRedo moves the newest redo group back onto the undo stack and returns it
func (h *CommandHistory) popRedo() (CommandGroup, bool) {
	if len(h.redo) == 0 {
		return CommandGroup{}, false
	}
	group := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, group)
	return group, true
}

func (h *CommandHistory) CanUndo() bool {
	return len(h.undo) > 0
}

func (h *CommandHistory) CanRedo() bool {
	return len(h.redo) > 0
}

// UndoLabels returns the labels on the undo stack, oldest first
func (h *CommandHistory) UndoLabels() []string {
	labels := make([]string, len(h.undo))
	for i, group := range h.undo {
		labels[i] = group.Label
	}
	return labels
}

// Len returns the undo and redo stack sizes
func (h *CommandHistory) Len() (undo, redo int) {
	return len(h.undo), len(h.redo)
}

// Clear forgets everything
func (h *CommandHistory) Clear() {
	h.undo = nil
	h.redo = nil
}
