package spreadsheet

import "slices"

// referenceNode is one formula cell in the index
type referenceNode struct {
	cellPrecedents  map[CellCoord]struct{} // cells this formula reads
	rangePrecedents map[CellRange]struct{} // ranges this formula reads
}

// ReferenceIndex records which formula cells read which cells. it never
// caches values: evaluation stays lazy, and the index only tells a caller
// which formula cells to re-read after an edit.
type ReferenceIndex struct {
	nodes          map[CellCoord]*referenceNode
	cellDependents map[CellCoord]map[CellCoord]struct{} // cell -> formulas reading it
	rangeObservers map[CellRange]map[CellCoord]struct{} // range -> formulas reading it
}

// NewReferenceIndex creates an empty index
func NewReferenceIndex() *ReferenceIndex {
	return &ReferenceIndex{
		nodes:          make(map[CellCoord]*referenceNode),
		cellDependents: make(map[CellCoord]map[CellCoord]struct{}),
		rangeObservers: make(map[CellRange]map[CellCoord]struct{}),
	}
}

// SetFormula replaces whatever coord read before with the references in
// raw. non-formula text simply removes coord from the index.
func (ri *ReferenceIndex) SetFormula(coord CellCoord, raw string) {
	ri.Remove(coord)
	if !IsFormula(raw) {
		return
	}

	cells, ranges := References(raw)
	if len(cells) == 0 && len(ranges) == 0 {
		return
	}

	node := &referenceNode{
		cellPrecedents:  make(map[CellCoord]struct{}, len(cells)),
		rangePrecedents: make(map[CellRange]struct{}, len(ranges)),
	}
	for _, precedent := range cells {
		node.cellPrecedents[precedent] = struct{}{}
		addEdge(ri.cellDependents, precedent, coord)
	}
	for _, r := range ranges {
		node.rangePrecedents[r] = struct{}{}
		addEdge(ri.rangeObservers, r, coord)
	}
	ri.nodes[coord] = node
}

// Remove drops coord's own references
func (ri *ReferenceIndex) Remove(coord CellCoord) {
	node, exists := ri.nodes[coord]
	if !exists {
		return
	}
	for precedent := range node.cellPrecedents {
		removeEdge(ri.cellDependents, precedent, coord)
	}
	for r := range node.rangePrecedents {
		removeEdge(ri.rangeObservers, r, coord)
	}
	delete(ri.nodes, coord)
}

func addEdge[K comparable](edges map[K]map[CellCoord]struct{}, key K, dependent CellCoord) {
	set, ok := edges[key]
	if !ok {
		set = make(map[CellCoord]struct{})
		edges[key] = set
	}
	set[dependent] = struct{}{}
}

func removeEdge[K comparable](edges map[K]map[CellCoord]struct{}, key K, dependent CellCoord) {
	set, ok := edges[key]
	if !ok {
		return
	}
	delete(set, dependent)
	if len(set) == 0 {
		delete(edges, key)
	}
}

// DirectDependents returns formula cells that read coord, directly or
// through a range
func (ri *ReferenceIndex) DirectDependents(coord CellCoord) []CellCoord {
	seen := make(map[CellCoord]struct{})
	for dependent := range ri.cellDependents[coord] {
		seen[dependent] = struct{}{}
	}
	for r, observers := range ri.rangeObservers {
		if !r.Contains(coord) {
			continue
		}
		for observer := range observers {
			seen[observer] = struct{}{}
		}
	}
	return sortedCoords(seen)
}

// AffectedCells returns every formula cell whose displayed value may change
// when coord changes: direct and transitive dependents, in row-major order.
// cycles terminate.
func (ri *ReferenceIndex) AffectedCells(coord CellCoord) []CellCoord {
	visited := map[CellCoord]struct{}{coord: {}}
	affected := make(map[CellCoord]struct{})

	queue := []CellCoord{coord}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dependent := range ri.DirectDependents(current) {
			affected[dependent] = struct{}{}
			if _, seen := visited[dependent]; seen {
				continue
			}
			visited[dependent] = struct{}{}
			queue = append(queue, dependent)
		}
	}
	return sortedCoords(affected)
}

// Precedents returns the cells and ranges coord's formula reads
func (ri *ReferenceIndex) Precedents(coord CellCoord) ([]CellCoord, []CellRange) {
	node, exists := ri.nodes[coord]
	if !exists {
		return nil, nil
	}
	cells := make(map[CellCoord]struct{}, len(node.cellPrecedents))
	for precedent := range node.cellPrecedents {
		cells[precedent] = struct{}{}
	}
	ranges := make([]CellRange, 0, len(node.rangePrecedents))
	for r := range node.rangePrecedents {
		ranges = append(ranges, r)
	}
	slices.SortFunc(ranges, func(a, b CellRange) int {
		if c := compareCoords(a.Start(), b.Start()); c != 0 {
			return c
		}
		return compareCoords(a.End(), b.End())
	})
	return sortedCoords(cells), ranges
}

// NodeCount returns the number of indexed formula cells
func (ri *ReferenceIndex) NodeCount() int {
	return len(ri.nodes)
}

// RangeObserverCount returns the number of distinct ranges being read
func (ri *ReferenceIndex) RangeObserverCount() int {
	return len(ri.rangeObservers)
}

// Clear empties the index
func (ri *ReferenceIndex) Clear() {
	clear(ri.nodes)
	clear(ri.cellDependents)
	clear(ri.rangeObservers)
}

func sortedCoords(set map[CellCoord]struct{}) []CellCoord {
	coords := make([]CellCoord, 0, len(set))
	for coord := range set {
		coords = append(coords, coord)
	}
	slices.SortFunc(coords, compareCoords)
	return coords
}
