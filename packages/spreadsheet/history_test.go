package spreadsheet

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func group(label string) CommandGroup {
	after := Cell{RawValue: label}
	return CommandGroup{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Label:   label,
		Entries: []UndoEntry{{Sheet: 1, Coord: CellCoord{}, After: &after}},
	}
}

func TestCommandHistoryStacks(t *testing.T) {
	ctx := context.Background()
	h := NewCommandHistory(0)

	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	h.Push(ctx, group("one"))
	h.Push(ctx, group("two"))
	assert.Equal(t, []string{"one", "two"}, h.UndoLabels())

	g, ok := h.popUndo()
	require.True(t, ok)
	assert.Equal(t, "two", g.Label)
	assert.True(t, h.CanRedo())

	g, ok = h.popRedo()
	require.True(t, ok)
	assert.Equal(t, "two", g.Label)
	assert.False(t, h.CanRedo())

	_, _ = h.popUndo()
	h.Push(ctx, CommandGroup{Label: "noop"})
	undo, redo := h.Len()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 1, redo, "an empty group leaves redo alone")

	h.Push(ctx, group("three"))
	undo, redo = h.Len()
	assert.Equal(t, 2, undo)
	assert.Equal(t, 0, redo)

	h.Clear()
	assert.False(t, h.CanUndo())
	_, ok = h.popUndo()
	assert.False(t, ok)
	_, ok = h.popRedo()
	assert.False(t, ok)
}

func TestCommandHistoryDepth(t *testing.T) {
	ctx := context.Background()
	h := NewCommandHistory(DefaultHistoryDepth)

	for i := range DefaultHistoryDepth + 25 {
		h.Push(ctx, group(fmt.Sprint(i)))
	}

	labels := h.UndoLabels()
	require.Len(t, labels, DefaultHistoryDepth)
	assert.Equal(t, "25", labels[0])
	assert.Equal(t, fmt.Sprint(DefaultHistoryDepth+24), labels[len(labels)-1])
}

func TestCommandGroupIDs(t *testing.T) {
	wb := NewWorkbook(Options{})
	_ = wb.SetCell(MustParseCellRef("A1"), "1")
	_ = wb.SetCell(MustParseCellRef("A1"), "2")

	first, second := wb.History().undo[0], wb.History().undo[1]
	assert.NotEqual(t, first.ID, second.ID)

	id, err := uuid.Parse(first.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, "edit A1", first.Label)
}
