package elfanalyzer

import (
	"errors"
	"fmt"
)

// Static errors
var (
	// ErrEmptyFunctionList indicates the symbol table yields no defined
	// function with a name.
	ErrEmptyFunctionList = errors.New("no defined function symbols found")

	// ErrNoSymbolTable indicates the ELF file has no symbol table.
	ErrNoSymbolTable = errors.New("ELF file has no symbol table (possibly stripped)")

	// ErrRegionOutsideSections indicates a function range is not covered
	// by any executable section.
	ErrRegionOutsideSections = errors.New("address range is outside every executable section")

	// ErrNoAPIs indicates requested mode was selected without API names.
	ErrNoAPIs = errors.New("requested mode needs at least one API name")

	// ErrInvalidMode indicates an unknown analysis mode.
	ErrInvalidMode = errors.New("invalid analysis mode")
)

// RegionError reports that a function's code bytes could not be located.
// Analysis of other functions continues; the function is marked unresolved.
type RegionError struct {
	Function string
	Start    uint64
	End      uint64
	Cause    error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("cannot resolve code region of %s [0x%x, 0x%x): %v", e.Function, e.Start, e.End, e.Cause)
}

func (e *RegionError) Unwrap() error {
	return e.Cause
}
