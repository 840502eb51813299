package debuggee

// SymbolTable maps display names to validated buffers, in discovery order.
// The first buffer inserted under a name is kept; later ones are dropped.
type SymbolTable struct {
	names   []string
	entries map[string]*Descriptor
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{entries: make(map[string]*Descriptor)}
}

// Insert adds d under name unless the name is already present. It reports
// whether d was inserted.
func (t *SymbolTable) Insert(name string, d *Descriptor) bool {
	if _, ok := t.entries[name]; ok {
		return false
	}
	t.entries[name] = d
	t.names = append(t.names, name)
	return true
}

// Merge inserts the entries of o in o's order, keeping existing names.
func (t *SymbolTable) Merge(o *SymbolTable) {
	for _, name := range o.names {
		t.Insert(name, o.entries[name])
	}
}

func (t *SymbolTable) Has(name string) bool {
	_, ok := t.entries[name]
	return ok
}

func (t *SymbolTable) Get(name string) (*Descriptor, bool) {
	d, ok := t.entries[name]
	return d, ok
}

// Names returns the names in discovery order.
func (t *SymbolTable) Names() []string {
	return append([]string(nil), t.names...)
}

func (t *SymbolTable) Len() int {
	return len(t.names)
}

// Equal reports whether both tables hold the same names, in the same order,
// with equal descriptors.
func (t *SymbolTable) Equal(o *SymbolTable) bool {
	if t.Len() != o.Len() {
		return false
	}
	for i, name := range t.names {
		if o.names[i] != name {
			return false
		}
		if !t.entries[name].Equal(o.entries[name]) {
			return false
		}
	}
	return true
}
