// Package elfimage loads an ELF executable and exposes the load-time facts
// that the analysis stages depend on: linkage mode, position independence
// and whether symbol and debug information survived stripping.
package elfimage

import (
	"debug/elf"
	"errors"
	"fmt"
)

// Static errors
var (
	// ErrNotELF indicates the file cannot be parsed as an ELF image.
	ErrNotELF = errors.New("file is not an ELF binary")

	// ErrStripped indicates the binary has no symbol table or no DWARF
	// debug information.
	ErrStripped = errors.New("binary is stripped: symbol table or debug information missing")
)

// UnsupportedArchitectureError indicates the ELF machine type cannot be
// disassembled.
type UnsupportedArchitectureError struct {
	Machine elf.Machine
}

func (e *UnsupportedArchitectureError) Error() string {
	return fmt.Sprintf("unsupported ELF architecture: %s", e.Machine)
}
