package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runEvalCommand(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewEvalCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestEval(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"active sheet", []string{groceries, "=LEN(B1)"}, "5"},
		{"sigil optional", []string{groceries, "A1&\"!\""}, "hello!"},
		{"named sheet", []string{"--sheet", "Groceries", groceries, "=D4*2"}, "7.5"},
		{"range", []string{"--sheet", "Groceries", groceries, "=AVERAGE(B2:B3)"}, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := runEvalCommand(t, "text", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", buf.String())
		})
	}
}

func TestEvalErrorValue(t *testing.T) {
	buf, err := runEvalCommand(t, "text", groceries, "=1/0")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "#DIV/0!\n", buf.String())

	buf, err = runEvalCommand(t, "text", groceries, "=SUM(")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "#ERROR!\n", buf.String())
}

func TestEvalJSON(t *testing.T) {
	buf, err := runEvalCommand(t, "json", groceries, "=NOPE(1)")
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Notes", resp.Data.Sheet)
	assert.Equal(t, "=NOPE(1)", resp.Data.Formula)
	assert.Equal(t, "#NAME?", resp.Data.Display)
	assert.NotEmpty(t, resp.Data.Error)
}

func TestEvalUnknownSheet(t *testing.T) {
	buf, err := runEvalCommand(t, "text", "--sheet", "Missing", groceries, "=1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), `Error [E005]: sheet "Missing" not found`)
}
