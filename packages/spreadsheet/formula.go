package spreadsheet

// DefaultFormulaCacheSize bounds the number of distinct formula texts whose
// parse results are kept
const DefaultFormulaCacheSize = 4096

// parsedFormula is one cached parse result. ASTs are immutable once built,
// so a node can be evaluated any number of times against any sheet.
type parsedFormula struct {
	node ASTNode
	err  error
	hits int
}

// FormulaTable caches parse results keyed by formula text. evaluation is
// lazy, so the same text is re-read on every display; the table keeps that
// from re-tokenizing it each time. parse failures are cached too.
// not safe for concurrent use.
type FormulaTable struct {
	parsed map[string]*parsedFormula
	limit  int
}

// NewFormulaTable creates a table holding at most limit formulas. a limit
// of zero or less uses DefaultFormulaCacheSize.
func NewFormulaTable(limit int) *FormulaTable {
	if limit <= 0 {
		limit = DefaultFormulaCacheSize
	}
	return &FormulaTable{
		parsed: make(map[string]*parsedFormula),
		limit:  limit,
	}
}

// Parse returns the AST for formula, parsing it on first use
func (ft *FormulaTable) Parse(formula string) (ASTNode, error) {
	if entry, exists := ft.parsed[formula]; exists {
		entry.hits++
		return entry.node, entry.err
	}

	node, err := ParseFormula(formula)
	if len(ft.parsed) >= ft.limit {
		ft.evict()
	}
	ft.parsed[formula] = &parsedFormula{node: node, err: err}
	return node, err
}

// evict drops every entry used no more than the average
func (ft *FormulaTable) evict() {
	threshold := 0
	for _, entry := range ft.parsed {
		threshold += entry.hits
	}
	threshold /= len(ft.parsed)

	for formula, entry := range ft.parsed {
		if entry.hits <= threshold {
			delete(ft.parsed, formula)
			continue
		}
		entry.hits = 0 // survivors start over
	}
}

// Len returns the number of cached formulas
func (ft *FormulaTable) Len() int {
	return len(ft.parsed)
}

// Clear forgets every cached formula
func (ft *FormulaTable) Clear() {
	clear(ft.parsed)
}
