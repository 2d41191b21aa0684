package elfanalyzer

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"golang.org/x/arch/x86/x86asm"
)

// pltSections hold stubs that jump through a GOT slot.
var pltSections = []string{".plt", ".plt.sec", ".plt.got"}

const defaultPLTEntrySize = 16

// ImportTable resolves call targets in a dynamically linked image to the
// names of imported functions.
type ImportTable struct {
	// slots maps GOT slot addresses to the symbol their relocation binds.
	slots map[uint64]string

	// stubs maps PLT stub entry addresses to the imported name.
	stubs map[uint64]string
}

func newImportTable() *ImportTable {
	return &ImportTable{
		slots: make(map[uint64]string),
		stubs: make(map[uint64]string),
	}
}

// StubName returns the import reached by calling the PLT stub at addr.
func (t *ImportTable) StubName(addr uint64) (string, bool) {
	name, ok := t.stubs[addr]
	return name, ok
}

// SlotName returns the import whose address is stored in the GOT slot at addr.
func (t *ImportTable) SlotName(addr uint64) (string, bool) {
	name, ok := t.slots[addr]
	return name, ok
}

// Names returns the distinct imported names reachable through stubs or
// slots, sorted.
func (t *ImportTable) Names() []string {
	seen := make(map[string]struct{})
	for _, n := range t.slots {
		seen[n] = struct{}{}
	}
	for _, n := range t.stubs {
		seen[n] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of resolvable call targets.
func (t *ImportTable) Len() int { return len(t.slots) + len(t.stubs) }

// loadImportTable reads JUMP_SLOT and GLOB_DAT relocations to name GOT
// slots, then decodes PLT sections to map each stub to the slot it jumps
// through.
func loadImportTable(f *elf.File) (*ImportTable, error) {
	t := newImportTable()

	dynsyms, err := f.DynamicSymbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return t, nil
		}
		return nil, err
	}

	for _, s := range f.Sections {
		if s.Type != elf.SHT_RELA {
			continue
		}
		if err := t.addRelocations(f, s, dynsyms); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
	}

	decoder := NewX86Decoder()
	for _, name := range pltSections {
		s := f.Section(name)
		if s == nil || s.Type == elf.SHT_NOBITS {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		t.addStubs(decoder, s, data)
	}
	return t, nil
}

func (t *ImportTable) addRelocations(f *elf.File, s *elf.Section, dynsyms []elf.Symbol) error {
	if f.Class != elf.ELFCLASS64 {
		return nil
	}
	data, err := s.Data()
	if err != nil {
		return err
	}

	r := bytes.NewReader(data)
	for {
		var rela elf.Rela64
		if err := binary.Read(r, f.ByteOrder, &rela); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch elf.R_X86_64(elf.R_TYPE64(rela.Info)) {
		case elf.R_X86_64_JMP_SLOT, elf.R_X86_64_GLOB_DAT:
		default:
			continue
		}
		// Symbol index 0 is the null symbol, which DynamicSymbols omits.
		idx := int(elf.R_SYM64(rela.Info))
		if idx == 0 || idx > len(dynsyms) {
			continue
		}
		if name := dynsyms[idx-1].Name; name != "" {
			t.slots[rela.Off] = name
		}
	}
}

// addStubs decodes a PLT section linearly. Every jmp *slot(%rip) whose slot
// is named registers the start of its PLT entry.
func (t *ImportTable) addStubs(decoder *X86Decoder, s *elf.Section, data []byte) {
	entSize := s.Entsize
	if entSize == 0 {
		entSize = defaultPLTEntrySize
	}

	pos := 0
	for pos < len(data) {
		inst, err := decoder.Decode(data[pos:], s.Addr+uint64(pos)) //nolint:gosec // G115: pos is non-negative
		if err != nil {
			pos++
			continue
		}
		pos += inst.Len

		if inst.Op != x86asm.JMP {
			continue
		}
		slot, ok := decoder.MemorySlot(inst)
		if !ok {
			continue
		}
		name, ok := t.slots[slot]
		if !ok {
			continue
		}
		entry := s.Addr + (inst.Offset-s.Addr)/entSize*entSize
		t.stubs[entry] = name
		t.stubs[inst.Offset] = name
	}
}
