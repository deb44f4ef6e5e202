package spreadsheet

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ValidationType names the kind of data validation. only "list" exists.
type ValidationType string

const ValidationList ValidationType = "list"

// ValidationRule restricts a cell to an enumerated set of values
type ValidationRule struct {
	Type          ValidationType
	AllowedValues []string
}

// ValidationRules is a sheet's dropdown rules keyed by coordinate. it only
// answers questions; rejecting input is up to the caller.
type ValidationRules struct {
	rules map[CellCoord]ValidationRule
}

func NewValidationRules() *ValidationRules {
	return &ValidationRules{rules: make(map[CellCoord]ValidationRule)}
}

// Set attaches a list rule to coord, replacing any previous rule
func (vr *ValidationRules) Set(coord CellCoord, allowedValues []string) {
	vr.rules[coord] = ValidationRule{
		Type:          ValidationList,
		AllowedValues: slices.Clone(allowedValues),
	}
}

// Get returns a copy of the rule at coord
func (vr *ValidationRules) Get(coord CellCoord) (ValidationRule, bool) {
	rule, ok := vr.rules[coord]
	if !ok {
		return ValidationRule{}, false
	}
	rule.AllowedValues = slices.Clone(rule.AllowedValues)
	return rule, true
}

func (vr *ValidationRules) Clear(coord CellCoord) {
	delete(vr.rules, coord)
}

func (vr *ValidationRules) ClearAll() {
	clear(vr.rules)
}

// IsAllowed reports whether value may be entered at coord. cells without a
// rule accept anything; list matching is exact after unicode normalization.
func (vr *ValidationRules) IsAllowed(coord CellCoord, value string) bool {
	rule, ok := vr.rules[coord]
	if !ok {
		return true
	}
	value = norm.NFC.String(value)
	for _, allowed := range rule.AllowedValues {
		if norm.NFC.String(allowed) == value {
			return true
		}
	}
	return false
}

// Coords returns every coordinate carrying a rule, row-major
func (vr *ValidationRules) Coords() []CellCoord {
	set := make(map[CellCoord]struct{}, len(vr.rules))
	for coord := range vr.rules {
		set[coord] = struct{}{}
	}
	return sortedCoords(set)
}

func (vr *ValidationRules) Len() int {
	return len(vr.rules)
}

// Predicate decides whether a cell's displayed value matches a rule.
// empty cells never match.
type Predicate interface {
	Match(value Primitive) bool
	String() string
}

// GreaterThan matches numeric values strictly above Threshold
type GreaterThan struct{ Threshold float64 }

func (p GreaterThan) Match(value Primitive) bool {
	num, ok := value.(float64)
	return ok && num > p.Threshold
}

func (p GreaterThan) String() string {
	return "> " + strconv.FormatFloat(p.Threshold, 'f', -1, 64)
}

// LessThan matches numeric values strictly below Threshold
type LessThan struct{ Threshold float64 }

func (p LessThan) Match(value Primitive) bool {
	num, ok := value.(float64)
	return ok && num < p.Threshold
}

func (p LessThan) String() string {
	return "< " + strconv.FormatFloat(p.Threshold, 'f', -1, 64)
}

// EqualsText matches when the displayed text equals Text, ignoring case
type EqualsText struct{ Text string }

func (p EqualsText) Match(value Primitive) bool {
	if value == nil {
		return false
	}
	return foldText(FormatValue(value)) == foldText(p.Text)
}

func (p EqualsText) String() string {
	return fmt.Sprintf("= %q", p.Text)
}

// ContainsText matches when the displayed text contains Text, ignoring case
type ContainsText struct{ Text string }

func (p ContainsText) Match(value Primitive) bool {
	if value == nil {
		return false
	}
	return strings.Contains(foldText(FormatValue(value)), foldText(p.Text))
}

func (p ContainsText) String() string {
	return fmt.Sprintf("contains %q", p.Text)
}

// ConditionalFormatRule applies Style to every cell in Range whose value
// satisfies Predicate
type ConditionalFormatRule struct {
	Range     CellRange
	Predicate Predicate
	Style     Style
}

// ConditionalFormats is a sheet's ordered rule list
type ConditionalFormats struct {
	rules []ConditionalFormatRule
}

func NewConditionalFormats() *ConditionalFormats {
	return &ConditionalFormats{}
}

// AddRule appends a rule; later rules win on conflicting properties
func (cf *ConditionalFormats) AddRule(r CellRange, predicate Predicate, style Style) {
	cf.rules = append(cf.rules, ConditionalFormatRule{
		Range:     r,
		Predicate: predicate,
		Style:     style.Clone(),
	})
}

// Rules returns a copy of the rule list in insertion order
func (cf *ConditionalFormats) Rules() []ConditionalFormatRule {
	out := make([]ConditionalFormatRule, len(cf.rules))
	for i, rule := range cf.rules {
		rule.Style = rule.Style.Clone()
		out[i] = rule
	}
	return out
}

func (cf *ConditionalFormats) Clear() {
	cf.rules = nil
}

func (cf *ConditionalFormats) Len() int {
	return len(cf.rules)
}

// EvaluateAll re-applies every rule in order against the current values and
// returns the merged style per matching coordinate. it reads only through
// value and never mutates anything.
func (cf *ConditionalFormats) EvaluateAll(value func(CellCoord) Primitive) map[CellCoord]Style {
	result := make(map[CellCoord]Style)
	for _, rule := range cf.rules {
		for coord := range rule.Range.Enumerate() {
			v := value(coord)
			if v == nil || !rule.Predicate.Match(v) {
				continue
			}
			merged := result[coord].Merge(rule.Style)
			if merged == nil {
				continue
			}
			result[coord] = merged
		}
	}
	return result
}
