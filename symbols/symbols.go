// Package symbols implements the nested symbol tables the semantic
// analyzer builds while assigning stack offsets to locals and
// parameters.
package symbols

// Kind distinguishes the two symbol variants.
type Kind int

const (
	// VariableKind marks a local variable or parameter.
	VariableKind Kind = iota
	// FunctionKind marks a function declaration.
	FunctionKind
)

// Symbol is a tagged union over {variable, function}.
type Symbol struct {
	Kind Kind
	Name string

	// Variable fields.
	Type   string // data type name, carried for reporting only
	Offset int    // negative, from the frame pointer
	Size   int    // in bytes; always 8 in this subset

	// Function fields.
	ReturnType string
	ParamTypes []string
	FrameSize  int
	Locals     *Table // the function's single flat local scope
}

// Table is a mapping from name to symbol, with a parent link forming a
// scope chain. order preserves declaration order for deterministic
// dumps (see the debug package).
type Table struct {
	parent *Table
	names  map[string]*Symbol
	order  []string
}

// NewTable creates a table whose lookups fall through to parent (nil for
// the global/root table).
func NewTable(parent *Table) *Table {
	return &Table{parent: parent, names: make(map[string]*Symbol)}
}

// Define adds sym under its own name in this scope. It does not check
// for redeclaration; callers must do that via LookupLocal first.
func (t *Table) Define(sym *Symbol) {
	if _, exists := t.names[sym.Name]; !exists {
		t.order = append(t.order, sym.Name)
	}
	t.names[sym.Name] = sym
}

// All returns every symbol defined directly in this scope, in
// declaration order.
func (t *Table) All() []*Symbol {
	syms := make([]*Symbol, 0, len(t.order))
	for _, name := range t.order {
		syms = append(syms, t.names[name])
	}
	return syms
}

// Functions returns every FunctionKind symbol defined directly in this
// scope, in declaration order.
func (t *Table) Functions() []*Symbol {
	var fns []*Symbol
	for _, sym := range t.All() {
		if sym.Kind == FunctionKind {
			fns = append(fns, sym)
		}
	}
	return fns
}

// Names returns every symbol defined directly in this scope, in
// declaration order. It is an alias for All, named for readability at
// call sites that only expect variables (e.g. a function's local
// scope).
func (t *Table) Names() []*Symbol {
	return t.All()
}

// LookupLocal looks up name in this scope only, without walking parents.
func (t *Table) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := t.names[name]
	return sym, ok
}

// Lookup walks parent links until a match is found or the chain is
// exhausted.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	for scope := t; scope != nil; scope = scope.parent {
		if sym, ok := scope.names[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// Parent returns the table's enclosing scope, or nil for the root.
func (t *Table) Parent() *Table {
	return t.parent
}

// Align16 rounds n up to the nearest multiple of 16 (n is expected to
// already be non-negative, e.g. the absolute value of a stack offset).
func Align16(n int) int {
	if n%16 == 0 {
		return n
	}
	return n + (16 - n%16)
}
