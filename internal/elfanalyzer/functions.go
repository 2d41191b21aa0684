package elfanalyzer

import (
	"debug/elf"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/isseis/go-manifest-producer/internal/dwarflang"
	"github.com/isseis/go-manifest-producer/internal/symname"
)

// Function is one analysis target: a defined function symbol.
type Function struct {
	// Name is the normalized (demangled) name.
	Name string `json:"name"`

	// Symbol is the raw symbol table name.
	Symbol string `json:"symbol"`

	// Start and End delimit the half-open address range [Start, End).
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Size returns End - Start.
func (f Function) Size() uint64 { return f.End - f.Start }

// Contains reports whether addr lies in [Start, End).
func (f Function) Contains(addr uint64) bool {
	return addr >= f.Start && addr < f.End
}

// DiscoverFunctions lists defined STT_FUNC symbols of f in symbol table
// order. Names are normalized for lang. Zero-size symbols are kept and
// analyze to an empty syscall set.
func DiscoverFunctions(f *elf.File, lang dwarflang.Language) ([]Function, error) {
	syms, err := f.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, ErrNoSymbolTable
		}
		return nil, fmt.Errorf("failed to read symbol table: %w", err)
	}

	var funcs []Function
	for _, sym := range syms {
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC {
			continue
		}
		if sym.Section == elf.SHN_UNDEF {
			continue
		}
		if sym.Name == "" {
			continue
		}
		if sym.Value+sym.Size < sym.Value {
			slog.Debug("Skipping function with overflowing range",
				slog.String("function", sym.Name))
			continue
		}
		funcs = append(funcs, Function{
			Name:   symname.Normalize(sym.Name, lang),
			Symbol: sym.Name,
			Start:  sym.Value,
			End:    sym.Value + sym.Size,
		})
	}

	if len(funcs) == 0 {
		return nil, ErrEmptyFunctionList
	}
	return funcs, nil
}

// functionIndex answers "which function starts at addr" for call resolution.
// When several symbols share a start address, the largest one wins so that
// zero-size labels never hide the code of the real function. Equal sizes keep
// the first in symbol table order.
type functionIndex struct {
	byStart map[uint64]Function
	starts  []uint64
}

func newFunctionIndex(funcs []Function) *functionIndex {
	idx := &functionIndex{byStart: make(map[uint64]Function, len(funcs))}
	for _, fn := range funcs {
		if prev, dup := idx.byStart[fn.Start]; dup {
			if fn.Size() > prev.Size() {
				idx.byStart[fn.Start] = fn
			}
			continue
		}
		idx.byStart[fn.Start] = fn
		idx.starts = append(idx.starts, fn.Start)
	}
	sort.Slice(idx.starts, func(i, j int) bool { return idx.starts[i] < idx.starts[j] })
	return idx
}

// at returns the function starting exactly at addr.
func (idx *functionIndex) at(addr uint64) (Function, bool) {
	fn, ok := idx.byStart[addr]
	return fn, ok
}

// containing returns the function whose range holds addr.
func (idx *functionIndex) containing(addr uint64) (Function, bool) {
	i := sort.Search(len(idx.starts), func(i int) bool { return idx.starts[i] > addr })
	if i == 0 {
		return Function{}, false
	}
	fn := idx.byStart[idx.starts[i-1]]
	return fn, fn.Contains(addr)
}
