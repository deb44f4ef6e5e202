package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

func runRender(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRenderCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestRenderText(t *testing.T) {
	buf, err := runRender(t, "text", groceries)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "render_text", buf.Bytes())
}

func TestRenderJSON(t *testing.T) {
	buf, err := runRender(t, "json", groceries)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "render_json", buf.Bytes())

	var resp struct {
		Status string       `json:"status"`
		Data   WorkbookView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Sheets, 2)
	assert.True(t, resp.Data.Sheets[1].Active)
}

func TestRenderMissingDocument(t *testing.T) {
	buf, err := runRender(t, "text", "testdata/absent.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E002]: failed to load document")
}

func TestRenderEmptySheet(t *testing.T) {
	wb := spreadsheet.NewWorkbook(spreadsheet.Options{})
	view, err := BuildView(wb)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, view.WriteText(buf))
	assert.Equal(t, "Sheet1 (empty) (active)\n", buf.String())

	data, err := json.Marshal(view)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sheets":[{"name":"Sheet1","active":true,"cells":[]}]}`, string(data))
}

func TestRenderErrorValues(t *testing.T) {
	wb := spreadsheet.NewWorkbook(spreadsheet.Options{})
	require.NoError(t, wb.SetCell(spreadsheet.MustParseCellRef("A1"), "=1/0"))
	require.NoError(t, wb.SetCell(spreadsheet.MustParseCellRef("B2"), "=A1+1"))

	view, err := BuildView(wb)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, view.WriteText(buf))
	assert.Equal(t, "Sheet1 A1:B2 (active)\n"+
		"   A        B\n"+
		"1  #DIV/0!\n"+
		"2           #DIV/0!\n", buf.String())
}
