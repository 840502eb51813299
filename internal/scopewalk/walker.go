// Package scopewalk discovers the buffers visible from the current frame.
//
// Traversal order is fixed. Blocks are visited from the innermost outwards,
// symbols in the order the debugger reports them, and aggregate fields in
// declaration order with base classes expanded where they are declared. The
// first buffer found under a name is kept, so inner blocks shadow outer ones
// and, since debuggers list base classes before own members, an inherited
// member wins over an own member of the same name.
package scopewalk

import (
	"fmt"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// DefaultSelfName is the reserved name of the implicit object argument of a
// member function.
const DefaultSelfName = "this"

// Resolver resolves names in the selected frame.
type Resolver interface {
	ResolveSymbol(name string) (debuggee.Value, error)
}

// CaptureFunc extracts, validates and copies the buffer held by v, recording
// it under name.
type CaptureFunc func(name string, v debuggee.Value) (*debuggee.Descriptor, error)

// Config tunes a Walker.
type Config struct {
	// SelfName is the name whose pointee's fields are expanded instead of
	// the symbol itself. Defaults to DefaultSelfName.
	SelfName string
	// OnSkip is told about every candidate that could not be captured.
	OnSkip func(name string, err error)
}

// Walker enumerates observable buffers.
type Walker struct {
	resolver  Resolver
	inspector debuggee.Inspector
	capture   CaptureFunc
	selfName  string
	onSkip    func(name string, err error)
}

// New returns a Walker.
func New(
	resolver Resolver, inspector debuggee.Inspector, capture CaptureFunc, cfg Config,
) *Walker {
	w := &Walker{
		resolver:  resolver,
		inspector: inspector,
		capture:   capture,
		selfName:  cfg.SelfName,
		onSkip:    cfg.OnSkip,
	}
	if w.selfName == "" {
		w.selfName = DefaultSelfName
	}
	if w.onSkip == nil {
		w.onSkip = func(string, error) {}
	}
	return w
}

// EnumerateAvailable returns every buffer that can be captured from scope.
// It never fails: candidates that cannot be captured are left out.
func (w *Walker) EnumerateAvailable(scope debuggee.Scope) *debuggee.SymbolTable {
	table := debuggee.NewSymbolTable()
	blocks := make(map[*debuggee.Block]struct{})
	for b := scope; b != nil; b = b.Superblock {
		if _, ok := blocks[b]; ok {
			break
		}
		blocks[b] = struct{}{}
		for _, sym := range b.Symbols {
			if sym.Kind != debuggee.SymbolArgument && sym.Kind != debuggee.SymbolVariable {
				continue
			}
			if sym.Name == w.selfName {
				w.expandSelf(sym.Name, table)
				continue
			}
			w.consider(sym, table, func() (debuggee.Value, error) {
				return w.resolver.ResolveSymbol(sym.Name)
			})
		}
	}
	return table
}

// Fields adds the buffers found among the fields of obj, whose type is t,
// to table. Base classes are expanded in place. Each type is entered at most
// once, so cyclic type graphs terminate.
func (w *Walker) Fields(t debuggee.Type, obj debuggee.Value, table *debuggee.SymbolTable) {
	visited := makeVisitedTypes()
	w.fields(t, obj, table, &visited)
}

func (w *Walker) expandSelf(name string, table *debuggee.SymbolTable) {
	defer w.recoverSkip(name)
	self, err := w.resolver.ResolveSymbol(name)
	if err != nil {
		w.onSkip(name, err)
		return
	}
	obj, err := self.Dereference()
	if err != nil {
		w.onSkip(name, err)
		return
	}
	t := obj.Type()
	if t == nil {
		w.onSkip(name, fmt.Errorf("%s has no type", name))
		return
	}
	w.Fields(t, obj, table)
}

func (w *Walker) fields(
	t debuggee.Type, obj debuggee.Value, table *debuggee.SymbolTable, visited *visitedTypes,
) {
	if !visited.enter(t.ID()) {
		return
	}
	for _, f := range t.Fields() {
		f := f
		if f.IsBaseClass {
			w.base(f, obj, table, visited)
			continue
		}
		w.consider(
			debuggee.Symbol{Name: f.Name, Type: f.Type, Kind: debuggee.SymbolField},
			table,
			func() (debuggee.Value, error) { return obj.Field(f.Name) },
		)
	}
}

func (w *Walker) base(
	f debuggee.Field, obj debuggee.Value, table *debuggee.SymbolTable, visited *visitedTypes,
) {
	defer w.recoverSkip(f.Name)
	if f.Type == nil {
		return
	}
	sub, err := obj.Field(f.Name)
	if err != nil {
		w.onSkip(f.Name, err)
		return
	}
	w.fields(f.Type, sub, table, visited)
}

func (w *Walker) consider(
	sym debuggee.Symbol, table *debuggee.SymbolTable, value func() (debuggee.Value, error),
) {
	if table.Has(sym.Name) {
		return
	}
	defer w.recoverSkip(sym.Name)
	if !w.inspector.IsObservable(sym) {
		return
	}
	v, err := value()
	if err != nil {
		w.onSkip(sym.Name, err)
		return
	}
	d, err := w.capture(sym.Name, v)
	if err != nil {
		w.onSkip(sym.Name, err)
		return
	}
	table.Insert(sym.Name, d)
}

// recoverSkip turns a panic raised by the debugger binding or the inspector
// while handling one candidate into a skip.
func (w *Walker) recoverSkip(name string) {
	if p := recover(); p != nil {
		w.onSkip(name, fmt.Errorf("panic while inspecting %s: %v", name, p))
	}
}
