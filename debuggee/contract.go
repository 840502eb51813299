// Package debuggee defines the contracts between bufwatch and the debugger
// hosting it, along with the data types that flow across them.
//
// A debugger binding implements Runtime, Value and Type. The embedding
// environment supplies an Inspector that knows which values look like image
// buffers. Nothing in this package talks to a debugger directly.
package debuggee

// Runtime is the memory and symbol access offered by the debugger binding.
// All methods are called on the debugger thread only.
type Runtime interface {
	// ResolveSymbol evaluates name in the selected frame. It fails with
	// ErrInvalidSymbol if the name cannot be resolved.
	ResolveSymbol(name string) (Value, error)
	// CurrentScope returns the innermost lexical block at the selected
	// frame's program counter.
	CurrentScope() (Scope, error)
	// ProbeAddress checks that addr is mapped and readable. It fails with
	// ErrUnreadableMemory otherwise.
	ProbeAddress(addr uint64) error
	// ReadMemory copies size bytes starting at addr out of the debuggee.
	ReadMemory(addr uint64, size uint64) ([]byte, error)
	// FreeSystemMemory reports the free memory of the machine running the
	// consumer, in bytes.
	FreeSystemMemory() (uint64, error)
	// LookupType resolves a type by name. It fails with ErrUnknownType.
	LookupType(name string) (Type, error)
}

// Value is an opaque value living in the debuggee.
type Value interface {
	Type() Type
	// Field returns the named member of a struct/class value.
	Field(name string) (Value, error)
	// Index returns the i-th element of an array value.
	Index(i int) (Value, error)
	// Uint64 interprets the value as an unsigned integer or a pointer.
	Uint64() (uint64, error)
	// Int64 interprets the value as a signed integer.
	Int64() (int64, error)
	// Dereference follows a pointer value.
	Dereference() (Value, error)
	// Cast reinterprets the value as type t.
	Cast(t Type) (Value, error)
}

// Type describes a debuggee type. Aggregates expose their fields, including
// base classes, in declaration order.
type Type interface {
	Name() string
	// ID identifies the type within one debugging session. Two Types with
	// the same ID are the same type.
	ID() uint64
	Fields() []Field
	// Pointer returns the type of a pointer to this type.
	Pointer() Type
}

// Field is one member of an aggregate type. Base classes show up as fields
// with IsBaseClass set.
type Field struct {
	Name        string
	Type        Type
	IsBaseClass bool
}

// SymbolKind classifies a Symbol.
type SymbolKind int

const (
	SymbolOther SymbolKind = iota
	SymbolArgument
	SymbolVariable
	SymbolField
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolArgument:
		return "argument"
	case SymbolVariable:
		return "variable"
	case SymbolField:
		return "field"
	default:
		return "other"
	}
}

// Symbol is a named entry of a lexical block, or a member of an aggregate
// presented to an Inspector.
type Symbol struct {
	Name string
	Type Type
	Kind SymbolKind
}

// Block is a lexical block. Superblock is the immediately enclosing block, or
// nil at the top of the chain.
type Block struct {
	Symbols    []Symbol
	Superblock *Block
}

// Scope is the innermost block at the current program counter. A nil Scope
// has no symbols.
type Scope = *Block

// Caster reinterprets values as pointers to named types. The Bridge
// implements it and hands it to inspectors.
type Caster interface {
	Cast(typeName string, v Value) (Value, error)
}

// Inspector decides which values are image buffers and how to read their
// layout. It is supplied by the embedding environment.
type Inspector interface {
	// IsObservable is a cheap pre-filter applied before ExtractBufferFields.
	IsObservable(sym Symbol) bool
	// ExtractBufferFields interprets v as a buffer. ok is false when v does
	// not follow any convention the inspector recognizes.
	ExtractBufferFields(c Caster, v Value) (fields BufferFields, ok bool)
}
