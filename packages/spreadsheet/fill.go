package spreadsheet

import "math"

// FillKind classifies an inferred sequence
type FillKind int

const (
	FillUnknown FillKind = iota
	FillArithmetic
	FillGeometric
)

func (k FillKind) String() string {
	switch k {
	case FillArithmetic:
		return "arithmetic"
	case FillGeometric:
		return "geometric"
	default:
		return "unknown"
	}
}

const (
	maxFillLookback    = 5
	geometricTolerance = 1e-4
)

// FillPattern is a sequence inferred from the numbers above a fill start.
// Step is set for arithmetic patterns, Ratio for geometric ones.
type FillPattern struct {
	Kind      FillKind
	LastValue float64
	Step      float64
	Ratio     float64
}

// DetectFill walks up from the row above coord, collecting at most five
// contiguous numeric values in the same column, and infers a sequence from
// them. it reports false when fewer than two numbers are found; with two or
// more it always returns a pattern, FillUnknown meaning a flat fill.
func DetectFill(coord CellCoord, number func(CellCoord) (float64, bool)) (FillPattern, bool) {
	// collected bottom-up, so values[0] is the cell directly above
	var values []float64
	for row := int64(coord.Row) - 1; row >= 0 && len(values) < maxFillLookback; row-- {
		num, ok := number(CellCoord{Row: uint32(row), Col: coord.Col})
		if !ok {
			break
		}
		values = append(values, num)
	}
	if len(values) < 2 {
		return FillPattern{}, false
	}

	// put them back in top-down order
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
	return inferPattern(values), true
}

// inferPattern classifies values given top-down. arithmetic uses exact
// differences; geometric needs no zeros and ratios within 1e-4 relative.
func inferPattern(values []float64) FillPattern {
	last := values[len(values)-1]

	diff := values[1] - values[0]
	arithmetic := true
	for i := 2; i < len(values); i++ {
		if values[i]-values[i-1] != diff {
			arithmetic = false
			break
		}
	}
	if arithmetic {
		return FillPattern{Kind: FillArithmetic, LastValue: last, Step: diff}
	}

	for _, v := range values {
		if v == 0 {
			return FillPattern{Kind: FillUnknown, LastValue: last}
		}
	}
	ratio := values[1] / values[0]
	for i := 2; i < len(values); i++ {
		r := values[i] / values[i-1]
		if math.Abs(r-ratio) > geometricTolerance*math.Abs(ratio) {
			return FillPattern{Kind: FillUnknown, LastValue: last}
		}
	}
	return FillPattern{Kind: FillGeometric, LastValue: last, Ratio: ratio}
}

// Extrapolate returns the value step positions past the last one
func (p FillPattern) Extrapolate(step int) float64 {
	switch p.Kind {
	case FillArithmetic:
		return p.LastValue + float64(step)*p.Step
	case FillGeometric:
		return p.LastValue * math.Pow(p.Ratio, float64(step))
	default:
		return p.LastValue
	}
}
