// Package elftest assembles small ELF64 x86-64 images in memory. Images carry
// a symbol table, optional PLT based imports and DWARF compile units, which is
// enough to drive the loader, classifier and flow engine without a compiler.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// Default virtual addresses.
const (
	DefaultTextAddr = 0x401000
	DefaultPLTAddr  = 0x400800
	DefaultGOTAddr  = 0x404000

	pltEntrySize = 16
	gotReserved  = 3
	funcAlign    = 16
)

// DWARF language codes used by tests.
const (
	LangC99  uint16 = 0x0c
	LangC11  uint16 = 0x1d
	LangCPP  uint16 = 0x04
	LangGo   uint16 = 0x16
	LangRust uint16 = 0x1c
)

// Func is a function placed in .text and described by a symbol.
type Func struct {
	Name string
	Body []Op

	// ZeroSize emits the symbol with st_size 0.
	ZeroSize bool
}

// Symbol is an additional .symtab entry with caller controlled fields.
type Symbol struct {
	Name      string
	Value     uint64
	Size      uint64
	Type      elf.SymType
	Undefined bool
}

// Builder describes an image. The zero value plus some Funcs and Languages
// yields a statically linked, non-PIE executable.
type Builder struct {
	Type     elf.Type
	Machine  elf.Machine
	TextAddr uint64

	Funcs   []Func
	Symbols []Symbol

	// Imports creates .interp, .plt, .got.plt, .dynsym, .dynstr and .rela.plt.
	Imports []string

	// Languages adds one DWARF compile unit per entry.
	Languages []uint16

	NoSymtab bool
	NoDebug  bool
}

type layout struct {
	funcAddr map[string]uint64
	stubAddr map[string]uint64
	slotAddr map[string]uint64
}

// FuncAddr returns the start address of the named function.
func (b *Builder) FuncAddr(name string) uint64 {
	return b.layout().funcAddr[name]
}

// StubAddr returns the PLT stub address of an import.
func (b *Builder) StubAddr(name string) uint64 {
	return b.layout().stubAddr[name]
}

// SlotAddr returns the GOT slot address of an import.
func (b *Builder) SlotAddr(name string) uint64 {
	return b.layout().slotAddr[name]
}

func (b *Builder) textAddr() uint64 {
	if b.TextAddr == 0 {
		return DefaultTextAddr
	}
	return b.TextAddr
}

func (b *Builder) layout() *layout {
	l := &layout{
		funcAddr: make(map[string]uint64),
		stubAddr: make(map[string]uint64),
		slotAddr: make(map[string]uint64),
	}
	addr := b.textAddr()
	for _, fn := range b.Funcs {
		l.funcAddr[fn.Name] = addr
		addr = alignUp(addr+uint64(bodySize(fn.Body)), funcAlign)
	}
	for i, name := range b.Imports {
		l.stubAddr[name] = DefaultPLTAddr + uint64(pltEntrySize*(i+1))
		l.slotAddr[name] = DefaultGOTAddr + uint64(8*(gotReserved+i))
	}
	return l
}

// Build encodes the image.
func (b *Builder) Build() []byte {
	l := b.layout()

	text, sizes := b.encodeText(l)

	var secs sectionList
	if len(b.Imports) > 0 {
		secs.add(section{name: ".interp", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC, addr: 0x400200,
			data: []byte("/lib64/ld-linux-x86-64.so.2\x00"), align: 1})
	}
	secs.add(section{name: ".text", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR,
		addr: b.textAddr(), data: text, align: funcAlign})

	if len(b.Imports) > 0 {
		dynstr := newStrtab()
		dynsym := symbolBytes(elf.Sym64{})
		rela := &bytes.Buffer{}
		for i, name := range b.Imports {
			dynsym = append(dynsym, symbolBytes(elf.Sym64{
				Name: dynstr.add(name),
				Info: elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
			})...)
			mustWrite(rela, elf.Rela64{
				Off:  l.slotAddr[name],
				Info: elf.R_INFO(uint32(i+1), uint32(elf.R_X86_64_JMP_SLOT)),
			})
		}
		secs.add(section{name: ".plt", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR,
			addr: DefaultPLTAddr, data: b.encodePLT(l), align: 16, entsize: pltEntrySize})
		secs.add(section{name: ".got.plt", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_WRITE,
			addr: DefaultGOTAddr, data: make([]byte, 8*(gotReserved+len(b.Imports))), align: 8, entsize: 8})
		secs.add(section{name: ".dynsym", typ: elf.SHT_DYNSYM, flags: elf.SHF_ALLOC, link: ".dynstr",
			info: 1, data: dynsym, align: 8, entsize: 24})
		secs.add(section{name: ".dynstr", typ: elf.SHT_STRTAB, flags: elf.SHF_ALLOC, data: dynstr.bytes(), align: 1})
		secs.add(section{name: ".rela.plt", typ: elf.SHT_RELA, flags: elf.SHF_ALLOC, link: ".dynsym",
			data: rela.Bytes(), align: 8, entsize: 24})
	}

	if !b.NoSymtab {
		strtab := newStrtab()
		symtab := symbolBytes(elf.Sym64{})
		for i, fn := range b.Funcs {
			size := uint64(sizes[i])
			if fn.ZeroSize {
				size = 0
			}
			symtab = append(symtab, symbolBytes(elf.Sym64{
				Name:  strtab.add(fn.Name),
				Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
				Shndx: uint16(secs.index(".text")),
				Value: l.funcAddr[fn.Name],
				Size:  size,
			})...)
		}
		for _, s := range b.Symbols {
			shndx := uint16(secs.index(".text"))
			if s.Undefined {
				shndx = uint16(elf.SHN_UNDEF)
			}
			symtab = append(symtab, symbolBytes(elf.Sym64{
				Name:  strtab.add(s.Name),
				Info:  elf.ST_INFO(elf.STB_GLOBAL, s.Type),
				Shndx: shndx,
				Value: s.Value,
				Size:  s.Size,
			})...)
		}
		secs.add(section{name: ".symtab", typ: elf.SHT_SYMTAB, link: ".strtab", info: 1,
			data: symtab, align: 8, entsize: 24})
		secs.add(section{name: ".strtab", typ: elf.SHT_STRTAB, data: strtab.bytes(), align: 1})
	}

	if !b.NoDebug && len(b.Languages) > 0 {
		secs.add(section{name: ".debug_abbrev", typ: elf.SHT_PROGBITS, data: debugAbbrev(), align: 1})
		secs.add(section{name: ".debug_info", typ: elf.SHT_PROGBITS, data: debugInfo(b.Languages), align: 1})
	}

	shstrtab := newStrtab()
	for i := range secs.list {
		secs.list[i].nameOff = shstrtab.add(secs.list[i].name)
	}
	shstrndx := len(secs.list) + 1
	secs.add(section{name: ".shstrtab", typ: elf.SHT_STRTAB, nameOff: shstrtab.add(".shstrtab"), align: 1})
	secs.list[len(secs.list)-1].data = shstrtab.bytes()

	// File layout: header, section contents, section header table.
	out := make([]byte, 64)
	offsets := make([]uint64, len(secs.list))
	for i, s := range secs.list {
		for len(out)%8 != 0 {
			out = append(out, 0)
		}
		offsets[i] = uint64(len(out))
		out = append(out, s.data...)
	}
	for len(out)%8 != 0 {
		out = append(out, 0)
	}
	shoff := uint64(len(out))

	shdrs := &bytes.Buffer{}
	mustWrite(shdrs, elf.Section64{})
	for i, s := range secs.list {
		mustWrite(shdrs, elf.Section64{
			Name:      s.nameOff,
			Type:      uint32(s.typ),
			Flags:     uint64(s.flags),
			Addr:      s.addr,
			Off:       offsets[i],
			Size:      uint64(len(s.data)),
			Link:      uint32(secs.index(s.link)),
			Info:      s.info,
			Addralign: s.align,
			Entsize:   s.entsize,
		})
	}
	out = append(out, shdrs.Bytes()...)

	hdr := &bytes.Buffer{}
	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	mustWrite(hdr, elf.Header64{
		Ident:     ident,
		Type:      uint16(b.elfType()),
		Machine:   uint16(b.machine()),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     b.textAddr(),
		Shoff:     shoff,
		Ehsize:    64,
		Shentsize: 64,
		Shnum:     uint16(len(secs.list) + 1),
		Shstrndx:  uint16(shstrndx),
	})
	copy(out, hdr.Bytes())
	return out
}

func (b *Builder) elfType() elf.Type {
	if b.Type == 0 {
		return elf.ET_EXEC
	}
	return b.Type
}

func (b *Builder) machine() elf.Machine {
	if b.Machine == 0 {
		return elf.EM_X86_64
	}
	return b.Machine
}

func (b *Builder) encodeText(l *layout) ([]byte, []int) {
	var text []byte
	sizes := make([]int, len(b.Funcs))
	base := b.textAddr()
	for i, fn := range b.Funcs {
		start := l.funcAddr[fn.Name]
		for base+uint64(len(text)) < start {
			text = append(text, 0xcc)
		}
		for _, op := range fn.Body {
			pc := base + uint64(len(text))
			text = append(text, op.encode(l, pc)...)
		}
		sizes[i] = int(base + uint64(len(text)) - start)
	}
	return text, sizes
}

// encodePLT emits a lazy-binding PLT: PLT0 followed by one 16 byte stub per
// import of the form jmp *slot(%rip); push $idx; jmp PLT0.
func (b *Builder) encodePLT(l *layout) []byte {
	le := binary.LittleEndian
	plt := make([]byte, 0, pltEntrySize*(len(b.Imports)+1))

	plt = append(plt, 0xff, 0x35)
	plt = le.AppendUint32(plt, uint32(int32(DefaultGOTAddr+8-(DefaultPLTAddr+6))))
	plt = append(plt, 0xff, 0x25)
	plt = le.AppendUint32(plt, uint32(int32(DefaultGOTAddr+16-(DefaultPLTAddr+12))))
	plt = append(plt, 0x0f, 0x1f, 0x40, 0x00)

	for i, name := range b.Imports {
		stub := l.stubAddr[name]
		plt = append(plt, 0xff, 0x25)
		plt = le.AppendUint32(plt, uint32(int32(int64(l.slotAddr[name])-int64(stub+6))))
		plt = append(plt, 0x68)
		plt = le.AppendUint32(plt, uint32(i))
		plt = append(plt, 0xe9)
		plt = le.AppendUint32(plt, uint32(int32(int64(DefaultPLTAddr)-int64(stub+16))))
	}
	return plt
}

type section struct {
	name    string
	nameOff uint32
	typ     elf.SectionType
	flags   elf.SectionFlag
	addr    uint64
	data    []byte
	link    string
	info    uint32
	align   uint64
	entsize uint64
}

type sectionList struct {
	list []section
}

func (s *sectionList) add(sec section) { s.list = append(s.list, sec) }

// index returns the section header index of name; 0 for "" or unknown names.
func (s *sectionList) index(name string) int {
	if name == "" {
		return 0
	}
	for i, sec := range s.list {
		if sec.name == name {
			return i + 1
		}
	}
	return 0
}

type stringTable struct {
	buf []byte
}

func newStrtab() *stringTable { return &stringTable{buf: []byte{0}} }

func (t *stringTable) add(s string) uint32 {
	off := uint32(len(t.buf))
	t.buf = append(t.buf, s...)
	t.buf = append(t.buf, 0)
	return off
}

func (t *stringTable) bytes() []byte { return t.buf }

func symbolBytes(sym elf.Sym64) []byte {
	buf := &bytes.Buffer{}
	mustWrite(buf, sym)
	return buf.Bytes()
}

func mustWrite(buf *bytes.Buffer, v any) {
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic(fmt.Sprintf("elftest: encode %T: %v", v, err))
	}
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
