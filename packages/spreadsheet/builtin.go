package spreadsheet

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// BuiltInFunctions contains all spreadsheet built-in functions
type BuiltInFunctions struct {
	clock Clock
	rng   RandomGenerator
}

// NewBuiltInFunctions creates the function table. a nil clock uses wall time.
func NewBuiltInFunctions(clock Clock) *BuiltInFunctions {
	if clock == nil {
		clock = &WallClock{}
	}
	return &BuiltInFunctions{
		clock: clock,
		rng:   &DefaultRandomGenerator{},
	}
}

// checkForError returns the error if value is a *SpreadsheetError, nil otherwise
func checkForError(value Primitive) *SpreadsheetError {
	if err, ok := value.(*SpreadsheetError); ok {
		return err
	}
	return nil
}

// Call invokes a built-in function by name with the given arguments
func (bf *BuiltInFunctions) Call(name string, args ...any) (Primitive, error) {
	switch strings.ToUpper(name) {
	case "SUM":
		return bf.SUM(args...)
	case "AVERAGE":
		return bf.AVERAGE(args...)
	case "COUNT":
		return bf.COUNT(args...)
	case "COUNTA":
		return bf.COUNTA(args...)
	case "MAX":
		return bf.MAX(args...)
	case "MIN":
		return bf.MIN(args...)
	case "MEDIAN":
		return bf.MEDIAN(args...)
	case "PRODUCT":
		return bf.PRODUCT(args...)
	case "IF":
		return bf.IF(args...)
	case "AND":
		return bf.AND(args...)
	case "OR":
		return bf.OR(args...)
	case "NOT":
		return bf.NOT(args...)
	case "CONCATENATE":
		return bf.CONCATENATE(args...)
	case "LEN":
		return bf.LEN(args...)
	case "UPPER":
		return bf.UPPER(args...)
	case "LOWER":
		return bf.LOWER(args...)
	case "TRIM":
		return bf.TRIM(args...)
	case "ABS":
		return bf.ABS(args...)
	case "ROUND":
		return bf.ROUND(args...)
	case "FLOOR":
		return bf.FLOOR(args...)
	case "CEILING":
		return bf.CEILING(args...)
	case "SQRT":
		return bf.SQRT(args...)
	case "POWER":
		return bf.POWER(args...)
	case "MOD":
		return bf.MOD(args...)
	case "PI":
		return bf.PI(args...)
	case "NOW":
		return bf.NOW(args...)
	case "TODAY":
		return bf.TODAY(args...)
	case "RAND":
		return bf.RAND(args...)
	default:
		return nil, NewSpreadsheetError(ErrorCodeName, fmt.Sprintf("unknown function: %s", name))
	}
}

// collectNumbers flattens arguments into numbers. range cells contribute
// only when numeric; direct arguments are coerced and must be numeric.
// errors anywhere propagate.
func collectNumbers(name string, args []any) ([]float64, error) {
	var nums []float64
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return nil, err
		}

		if r, ok := arg.(Range); ok {
			for value := range r.IterateValues() {
				if err := checkForError(value); err != nil {
					return nil, err
				}
				if num, ok := value.(float64); ok {
					nums = append(nums, num)
				}
			}
			continue
		}

		num, ok := toNumber(arg)
		if !ok {
			return nil, NewSpreadsheetError(ErrorCodeValue, name+" requires numeric arguments")
		}
		nums = append(nums, num)
	}
	return nums, nil
}

// scalarArgs checks arity and rejects error values and ranges, for
// functions that only take single values
func scalarArgs(name string, args []any, minArgs, maxArgs int) error {
	if len(args) < minArgs || len(args) > maxArgs {
		if minArgs == maxArgs {
			return NewSpreadsheetError(ErrorCodeNA, fmt.Sprintf("%s requires exactly %d argument(s)", name, minArgs))
		}
		return NewSpreadsheetError(ErrorCodeNA, fmt.Sprintf("%s requires %d to %d arguments", name, minArgs, maxArgs))
	}
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}
		if _, isRange := arg.(Range); isRange {
			return NewSpreadsheetError(ErrorCodeValue, name+" does not accept a range")
		}
	}
	return nil
}

// numberArgs is scalarArgs plus numeric coercion of every argument
func numberArgs(name string, args []any, minArgs, maxArgs int) ([]float64, error) {
	if err := scalarArgs(name, args, minArgs, maxArgs); err != nil {
		return nil, err
	}
	nums := make([]float64, len(args))
	for i, arg := range args {
		num, ok := toNumber(arg)
		if !ok {
			return nil, NewSpreadsheetError(ErrorCodeValue, name+" requires numeric arguments")
		}
		nums[i] = num
	}
	return nums, nil
}

func (bf *BuiltInFunctions) SUM(args ...any) (Primitive, error) {
	nums, err := collectNumbers("SUM", args)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for _, num := range nums {
		sum += num
	}
	return sum, nil
}

func (bf *BuiltInFunctions) AVERAGE(args ...any) (Primitive, error) {
	nums, err := collectNumbers("AVERAGE", args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, NewSpreadsheetError(ErrorCodeDiv0, "AVERAGE has no numeric values")
	}
	sum := 0.0
	for _, num := range nums {
		sum += num
	}
	return sum / float64(len(nums)), nil
}

func (bf *BuiltInFunctions) PRODUCT(args ...any) (Primitive, error) {
	nums, err := collectNumbers("PRODUCT", args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	product := 1.0
	for _, num := range nums {
		product *= num
	}
	return product, nil
}

// COUNT counts numeric values only; text, booleans, blanks and errors in
// ranges are skipped
func (bf *BuiltInFunctions) COUNT(args ...any) (Primitive, error) {
	count := 0
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for value := range r.IterateValues() {
				if _, isNum := value.(float64); isNum {
					count++
				}
			}
			continue
		}
		if _, isNum := arg.(float64); isNum {
			count++
		}
	}
	return float64(count), nil
}

// COUNTA counts every non-empty value, errors included
func (bf *BuiltInFunctions) COUNTA(args ...any) (Primitive, error) {
	count := 0
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for value := range r.IterateValues() {
				if value != nil {
					count++
				}
			}
			continue
		}
		count++
	}
	return float64(count), nil
}

func (bf *BuiltInFunctions) MAX(args ...any) (Primitive, error) {
	nums, err := collectNumbers("MAX", args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	return slices.Max(nums), nil
}

func (bf *BuiltInFunctions) MIN(args ...any) (Primitive, error) {
	nums, err := collectNumbers("MIN", args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	return slices.Min(nums), nil
}

func (bf *BuiltInFunctions) MEDIAN(args ...any) (Primitive, error) {
	nums, err := collectNumbers("MEDIAN", args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, NewSpreadsheetError(ErrorCodeNum, "MEDIAN has no numeric values")
	}

	slices.Sort(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 0 {
		return (nums[mid-1] + nums[mid]) / 2, nil
	}
	return nums[mid], nil
}

// IF only inspects its condition for errors; the branch not taken may hold
// anything
func (bf *BuiltInFunctions) IF(args ...any) (Primitive, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "IF requires 2 or 3 arguments")
	}

	if err := checkForError(args[0]); err != nil {
		return nil, err
	}
	if _, isRange := args[0].(Range); isRange {
		return nil, NewSpreadsheetError(ErrorCodeValue, "IF condition must be a single value")
	}

	if isTruthy(args[0]) {
		return args[1], nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return false, nil
}

func (bf *BuiltInFunctions) AND(args ...any) (Primitive, error) {
	if len(args) == 0 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "AND requires at least 1 argument")
	}
	if err := scalarArgs("AND", args, 1, len(args)); err != nil {
		return nil, err
	}
	for _, arg := range args {
		if !isTruthy(arg) {
			return false, nil
		}
	}
	return true, nil
}

func (bf *BuiltInFunctions) OR(args ...any) (Primitive, error) {
	if len(args) == 0 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "OR requires at least 1 argument")
	}
	if err := scalarArgs("OR", args, 1, len(args)); err != nil {
		return nil, err
	}
	for _, arg := range args {
		if isTruthy(arg) {
			return true, nil
		}
	}
	return false, nil
}

func (bf *BuiltInFunctions) NOT(args ...any) (Primitive, error) {
	if err := scalarArgs("NOT", args, 1, 1); err != nil {
		return nil, err
	}
	return !isTruthy(args[0]), nil
}

func (bf *BuiltInFunctions) CONCATENATE(args ...any) (Primitive, error) {
	if err := scalarArgs("CONCATENATE", args, 0, len(args)); err != nil {
		return nil, err
	}
	var result strings.Builder
	for _, arg := range args {
		result.WriteString(toString(arg))
	}
	return result.String(), nil
}

// LEN counts characters, not bytes
func (bf *BuiltInFunctions) LEN(args ...any) (Primitive, error) {
	if err := scalarArgs("LEN", args, 1, 1); err != nil {
		return nil, err
	}
	return float64(utf8.RuneCountInString(toString(args[0]))), nil
}

func (bf *BuiltInFunctions) UPPER(args ...any) (Primitive, error) {
	if err := scalarArgs("UPPER", args, 1, 1); err != nil {
		return nil, err
	}
	return cases.Upper(language.Und).String(toString(args[0])), nil
}

func (bf *BuiltInFunctions) LOWER(args ...any) (Primitive, error) {
	if err := scalarArgs("LOWER", args, 1, 1); err != nil {
		return nil, err
	}
	return cases.Lower(language.Und).String(toString(args[0])), nil
}

// TRIM strips leading and trailing spaces and collapses inner runs to one
func (bf *BuiltInFunctions) TRIM(args ...any) (Primitive, error) {
	if err := scalarArgs("TRIM", args, 1, 1); err != nil {
		return nil, err
	}
	return strings.Join(strings.Fields(toString(args[0])), " "), nil
}

func (bf *BuiltInFunctions) ABS(args ...any) (Primitive, error) {
	nums, err := numberArgs("ABS", args, 1, 1)
	if err != nil {
		return nil, err
	}
	return math.Abs(nums[0]), nil
}

// ROUND rounds half away from zero. negative digits round to tens,
// hundreds, and so on.
func (bf *BuiltInFunctions) ROUND(args ...any) (Primitive, error) {
	nums, err := numberArgs("ROUND", args, 1, 2)
	if err != nil {
		return nil, err
	}

	places := 0.0
	if len(nums) == 2 {
		places = math.Trunc(nums[1])
	}
	places = math.Max(-maxRoundPlaces, math.Min(places, maxRoundPlaces))
	return roundHalfAway(nums[0], int(places)), nil
}

// 10^308 is the largest power of ten a float64 holds
const maxRoundPlaces = 308

func roundHalfAway(num float64, places int) float64 {
	places = max(-maxRoundPlaces, min(places, maxRoundPlaces))
	if places >= 0 {
		multiplier := math.Pow(10, float64(places))
		scaled := num * multiplier
		if math.IsInf(scaled, 0) {
			// more digits than num carries
			return num
		}
		// trimming to 15 significant digits first keeps 2.675 from rounding
		// as 2.67499999...
		return math.Round(roundSignificant(scaled)) / multiplier
	}
	divisor := math.Pow(10, float64(-places))
	return math.Round(roundSignificant(num/divisor)) * divisor
}

func (bf *BuiltInFunctions) FLOOR(args ...any) (Primitive, error) {
	nums, err := numberArgs("FLOOR", args, 1, 1)
	if err != nil {
		return nil, err
	}
	return math.Floor(nums[0]), nil
}

func (bf *BuiltInFunctions) CEILING(args ...any) (Primitive, error) {
	nums, err := numberArgs("CEILING", args, 1, 1)
	if err != nil {
		return nil, err
	}
	return math.Ceil(nums[0]), nil
}

func (bf *BuiltInFunctions) SQRT(args ...any) (Primitive, error) {
	nums, err := numberArgs("SQRT", args, 1, 1)
	if err != nil {
		return nil, err
	}
	if nums[0] < 0 {
		return nil, NewSpreadsheetError(ErrorCodeNum, "SQRT requires a non-negative argument")
	}
	return math.Sqrt(nums[0]), nil
}

func (bf *BuiltInFunctions) POWER(args ...any) (Primitive, error) {
	nums, err := numberArgs("POWER", args, 2, 2)
	if err != nil {
		return nil, err
	}
	return arithmetic(BinOpPower, nums[0], nums[1])
}

func (bf *BuiltInFunctions) MOD(args ...any) (Primitive, error) {
	nums, err := numberArgs("MOD", args, 2, 2)
	if err != nil {
		return nil, err
	}
	dividend, divisor := nums[0], nums[1]
	if divisor == 0 {
		return nil, NewSpreadsheetError(ErrorCodeDiv0, "division by zero")
	}
	// result takes the sign of the divisor
	return dividend - divisor*math.Floor(dividend/divisor), nil
}

func (bf *BuiltInFunctions) PI(args ...any) (Primitive, error) {
	if len(args) != 0 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "PI takes no arguments")
	}
	return math.Pi, nil
}

// Excel date/time constants
const (
	// December 30, 1899 00:00:00 UTC in Unix milliseconds. serials from
	// March 1900 on match the usual spreadsheet date numbers
	EXCEL_EPOCH_MS = -2209161600000
	MS_PER_DAY     = 86400000 // milliseconds in a day
)

// NOW returns the current time as a fractional serial day number
func (bf *BuiltInFunctions) NOW(args ...any) (Primitive, error) {
	if len(args) != 0 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "NOW takes no arguments")
	}
	now := bf.clock.Now()
	// wall-clock time in the clock's zone, read as if it were UTC
	local := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC)
	diffMs := float64(local.UnixMilli() - EXCEL_EPOCH_MS)
	return diffMs / MS_PER_DAY, nil
}

// TODAY returns the current date as a whole serial day number
func (bf *BuiltInFunctions) TODAY(args ...any) (Primitive, error) {
	if len(args) != 0 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "TODAY takes no arguments")
	}
	now := bf.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	diffMs := float64(midnight.UnixMilli() - EXCEL_EPOCH_MS)
	return math.Floor(diffMs / MS_PER_DAY), nil
}

func (bf *BuiltInFunctions) RAND(args ...any) (Primitive, error) {
	if len(args) != 0 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "RAND takes no arguments")
	}
	return bf.rng.Float64(), nil
}

// toNumber converts value to number, returning ok=false if conversion fails
func toNumber(value Primitive) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || isSpecialFloatText(trimmed) {
			return 0, false
		}
		num, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return num, true
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

// toString converts value to string
func toString(value Primitive) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, bool, *SpreadsheetError:
		return FormatValue(v)
	default:
		return fmt.Sprint(value)
	}
}

// isTruthy checks if value is truthy
func isTruthy(value Primitive) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v != ""
	case nil:
		return false
	default:
		return true
	}
}

// foldText normalizes text for case-insensitive comparison
func foldText(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
