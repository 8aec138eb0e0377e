// Package cell defines the unit of computation tracked by the dependency
// graph: a named block with declared definitions, references, and runtime
// status. Cells are produced by an analysis front (see internal/loader) and
// mutated only through the graph's status APIs and the executor contract.
package cell

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/cellgraph/internal/sets"
)

// ID uniquely identifies a cell within a graph.
type ID string

// VariableData describes one definition record for a name: the language the
// definition was written in and the set of names its value transitively
// requires. A name can carry several records when it is defined more than
// once within the same cell; the last record wins for language purposes.
type VariableData struct {
	Language     Language
	RequiredRefs sets.Set[string]
}

// ImportWorkspace marks a cell whose definitions are bound by import
// machinery rather than ordinary assignment. ImportedDefs is the subset of
// the cell's defs that the import mechanism has already bound; those names
// do not force re-runs of dependents during staleness propagation.
type ImportWorkspace struct {
	IsImportBlock bool
	ImportedDefs  sets.Set[string]
}

// Config holds the caller-controlled settings of a cell.
type Config struct {
	// Disabled marks the cell as directly disabled. Descendants of a
	// disabled cell become disabled transitively.
	Disabled bool
}

// Def is one named definition expression of a cell's body, in source order.
// The local executor evaluates defs in this order against the accumulated
// namespace.
type Def struct {
	Name string
	Expr hcl.Expression
}

// Cell is a single computation block. The structural fields (ID, Key, Defs,
// Refs, ...) are immutable analysis facts; the stale flag and status are
// mutable runtime state guarded by the cell's own mutex, independent of the
// graph's structural lock.
type Cell struct {
	ID  ID
	Key uint64

	Defs        sets.Set[string]
	Refs        sets.Set[string]
	DeletedRefs sets.Set[string]

	// Variables maps each defined name to its definition records.
	Variables map[string][]VariableData

	Language        Language
	ImportWorkspace ImportWorkspace

	// Suspending marks a cell whose body must run under cooperative
	// suspension; the blocking runner entry point refuses such cells.
	Suspending bool

	Config Config

	// Body holds the cell's definition expressions in source order, for
	// executors that evaluate the cell directly.
	Body []Def

	mu     sync.Mutex
	stale  bool
	status Status
}

// New returns a cell with the given id, fingerprinted from code, with empty
// analysis sets ready to be populated.
func New(id ID, code string) *Cell {
	return &Cell{
		ID:          id,
		Key:         Fingerprint(code),
		Defs:        sets.New[string](),
		Refs:        sets.New[string](),
		DeletedRefs: sets.New[string](),
		Variables:   make(map[string][]VariableData),
		Language:    LanguageGeneral,
		ImportWorkspace: ImportWorkspace{
			ImportedDefs: sets.New[string](),
		},
	}
}

// Fingerprint returns the content key for a cell body. Two cells with equal
// code have equal fingerprints; the graph uses this to answer "is this exact
// code already registered".
func Fingerprint(code string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(code))
	return h.Sum64()
}

// DefLanguage returns the language of the latest definition record for name,
// falling back to the cell's own language when the name carries no records.
func (c *Cell) DefLanguage(name string) Language {
	records := c.Variables[name]
	if len(records) == 0 {
		return c.Language
	}
	return records[len(records)-1].Language
}

// Stale reports whether the cell's output may not reflect its current code
// or its ancestors' current outputs.
func (c *Cell) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// SetStale marks or clears the stale flag.
func (c *Cell) SetStale(stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = stale
}

// localPrefix mangles cell-private symbols: a name of the form
// _cell_<id>_<name> is scoped to the cell that owns it and is invisible to
// graph-level definition lookup.
func localPrefix(id ID) string {
	return "_cell_" + string(id) + "_"
}

// IsLocalSymbol reports whether name is a private symbol belonging to the
// cell with the given id.
func IsLocalSymbol(name string, id ID) bool {
	return strings.HasPrefix(name, localPrefix(id))
}
