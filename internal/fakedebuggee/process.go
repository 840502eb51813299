// Package fakedebuggee is an in-memory debuggee used by tests and the demo
// binary. It implements debuggee.Runtime over a fake address space, a fake
// type system and a single selected frame.
package fakedebuggee

import (
	"fmt"
	"sort"
	"sync"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// Local is a symbol of the selected frame.
type Local struct {
	Name  string
	Kind  debuggee.SymbolKind
	Value *Value
}

type region struct {
	base uint64
	data []byte
}

// Process is a fake debuggee.
type Process struct {
	mu struct {
		sync.Mutex
		regions  []region
		blocks   [][]Local
		free     uint64
		freeErr  error
		reads    int
		probes   int
		nextAddr uint64
	}
	types  map[string]*Type
	nextID uint64
}

var _ debuggee.Runtime = (*Process)(nil)

// NewProcess returns an empty debuggee with 16 GiB of free memory.
func NewProcess() *Process {
	p := &Process{types: make(map[string]*Type)}
	p.mu.free = 16 << 30
	p.mu.nextAddr = 0x10000000
	return p
}

func (p *Process) newType(name string, fields []debuggee.Field) *Type {
	p.nextID++
	return &Type{name: name, id: p.nextID, fields: fields, p: p}
}

// Named returns the type registered under name, creating an aggregate with
// the given fields if there is none.
func (p *Process) Named(name string, fields ...debuggee.Field) *Type {
	if t, ok := p.types[name]; ok {
		return t
	}
	t := p.newType(name, fields)
	p.types[name] = t
	return t
}

// Map places data in the address space and returns its address. The process
// keeps a reference to data; later writes to it are visible to reads.
func (p *Process) Map(data []byte) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	addr := p.mu.nextAddr
	p.mu.regions = append(p.mu.regions, region{base: addr, data: data})
	// Leave an unmapped page between regions.
	p.mu.nextAddr += (uint64(len(data))+0xfff)&^0xfff + 0x1000
	return addr
}

// Unmap removes the region starting at addr.
func (p *Process) Unmap(addr uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.mu.regions {
		if r.base == addr {
			p.mu.regions = append(p.mu.regions[:i], p.mu.regions[i+1:]...)
			return
		}
	}
}

// SetFreeMemory sets what FreeSystemMemory reports.
func (p *Process) SetFreeMemory(n uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mu.free, p.mu.freeErr = n, err
}

// SetFrame sets the blocks of the selected frame, innermost first.
func (p *Process) SetFrame(blocks ...[]Local) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mu.blocks = blocks
}

// Reads returns the number of ReadMemory calls so far.
func (p *Process) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mu.reads
}

// ResolveSymbol implements debuggee.Runtime. Inner blocks shadow outer ones.
func (p *Process) ResolveSymbol(name string) (debuggee.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.mu.blocks {
		for _, l := range b {
			if l.Name == name {
				return l.Value, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no symbol %q in current context", debuggee.ErrInvalidSymbol, name)
}

// CurrentScope implements debuggee.Runtime.
func (p *Process) CurrentScope() (debuggee.Scope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var outer *debuggee.Block
	for i := len(p.mu.blocks) - 1; i >= 0; i-- {
		b := &debuggee.Block{Superblock: outer}
		for _, l := range p.mu.blocks[i] {
			var t debuggee.Type
			if l.Value != nil {
				t = l.Value.Type()
			}
			b.Symbols = append(b.Symbols, debuggee.Symbol{Name: l.Name, Type: t, Kind: l.Kind})
		}
		outer = b
	}
	return outer, nil
}

func (p *Process) findLocked(addr uint64) (region, bool) {
	i := sort.Search(len(p.mu.regions), func(i int) bool {
		r := p.mu.regions[i]
		return r.base+uint64(len(r.data)) > addr
	})
	if i < len(p.mu.regions) && p.mu.regions[i].base <= addr {
		return p.mu.regions[i], true
	}
	return region{}, false
}

// ProbeAddress implements debuggee.Runtime.
func (p *Process) ProbeAddress(addr uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mu.probes++
	if _, ok := p.findLocked(addr); !ok {
		return fmt.Errorf("%w: cannot access memory at address %#x", debuggee.ErrUnreadableMemory, addr)
	}
	return nil
}

// ReadMemory implements debuggee.Runtime. Reads may not span regions.
func (p *Process) ReadMemory(addr, size uint64) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mu.reads++
	r, ok := p.findLocked(addr)
	if !ok || addr+size > r.base+uint64(len(r.data)) {
		return nil, fmt.Errorf("cannot access memory at address %#x", addr)
	}
	off := addr - r.base
	return append([]byte(nil), r.data[off:off+size]...), nil
}

// FreeSystemMemory implements debuggee.Runtime.
func (p *Process) FreeSystemMemory() (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mu.free, p.mu.freeErr
}

// LookupType implements debuggee.Runtime.
func (p *Process) LookupType(name string) (debuggee.Type, error) {
	t, ok := p.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: no type named %s", debuggee.ErrUnknownType, name)
	}
	return t, nil
}

// Probes returns the number of ProbeAddress calls so far.
func (p *Process) Probes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mu.probes
}
