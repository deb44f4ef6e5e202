package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// EvalResult is the outcome of evaluating one formula
type EvalResult struct {
	Sheet   string `json:"sheet"`
	Formula string `json:"formula"`
	Display string `json:"display"`
	Error   string `json:"error,omitempty"`
}

func (r EvalResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintln(w, r.Display)
	return err
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	var sheetName string

	cmd := &cobra.Command{
		Use:   "eval <document> <formula>",
		Short: "Evaluate a formula against a workbook document",
		Long: `Eval loads a YAML workbook document and evaluates one formula against
its active sheet (or --sheet). The formula is not stored. A leading '=' is
optional. Error values print their token and exit with status 1.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(rootOpts, cmd, args[0], args[1], sheetName)
		},
	}

	cmd.Flags().StringVar(&sheetName, "sheet", "", "sheet to evaluate against (default: the active sheet)")
	return cmd
}

func runEval(opts *RootOptions, cmd *cobra.Command, path, formula, sheetName string) error {
	f := opts.formatter(cmd)

	wb, err := loadDocument(opts, path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDocument, "failed to load document", err)
	}
	wb.WithContext(cmd.Context())

	if sheetName != "" {
		id, ok := wb.SheetByName(sheetName)
		if !ok {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("sheet %q not found", sheetName), nil)
		}
		if err := wb.SetActiveSheet(id); err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to select sheet", err)
		}
	}

	if !strings.HasPrefix(formula, "=") {
		formula = "=" + formula
	}

	result := EvalResult{Formula: formula}
	for _, info := range wb.Sheets() {
		if info.Active {
			result.Sheet = info.Name
		}
	}

	value, err := wb.Evaluate(formula)
	if err != nil {
		var sheetErr *spreadsheet.SpreadsheetError
		if !errors.As(err, &sheetErr) {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to evaluate", err)
		}
		f.VerboseLog("%s: %s", sheetErr.Token(), sheetErr.Message)
		result.Display = sheetErr.Token()
		result.Error = sheetErr.Message
		if err := f.Success(result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("[%s] %s evaluated to %s", ErrCodeFormula, formula, result.Display))
	}

	result.Display = spreadsheet.FormatValue(value)
	return f.Success(result)
}
