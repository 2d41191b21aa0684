package elftest

import "encoding/binary"

// Op is one encoded instruction (or raw byte run) in a function body. Sizes
// are fixed so addresses can be laid out before encoding.
type Op interface {
	size() int
	encode(l *layout, pc uint64) []byte
}

type rawOp []byte

func (o rawOp) size() int                     { return len(o) }
func (o rawOp) encode(*layout, uint64) []byte { return o }

// Raw emits bytes verbatim.
func Raw(b ...byte) Op { return rawOp(b) }

// Syscall emits mov $n, %eax; syscall.
func Syscall(n uint32) Op { return append(movImm(0xb8, n), 0x0f, 0x05) }

// MovEAX emits mov $n, %eax.
func MovEAX(n uint32) Op { return movImm(0xb8, n) }

// MovEDI emits mov $n, %edi.
func MovEDI(n uint32) Op { return movImm(0xbf, n) }

// XorEAX emits xor %eax, %eax.
func XorEAX() Op { return rawOp{0x31, 0xc0} }

func movImm(opcode byte, n uint32) rawOp {
	return binary.LittleEndian.AppendUint32([]byte{opcode}, n)
}

// SyscallInsn emits a bare syscall instruction.
func SyscallInsn() Op { return rawOp{0x0f, 0x05} }

// Ret emits ret.
func Ret() Op { return rawOp{0xc3} }

// Nop emits a one byte nop.
func Nop() Op { return rawOp{0x90} }

// CallReg emits call *%rax.
func CallReg() Op { return rawOp{0xff, 0xd0} }

type relOp struct {
	opcode byte
	target func(l *layout) uint64
}

func (o relOp) size() int { return 5 }

func (o relOp) encode(l *layout, pc uint64) []byte {
	rel := int64(o.target(l)) - int64(pc+5)
	return binary.LittleEndian.AppendUint32([]byte{o.opcode}, uint32(int32(rel)))
}

// CallFunc emits call rel32 to a function of the image.
func CallFunc(name string) Op {
	return relOp{opcode: 0xe8, target: func(l *layout) uint64 { return l.funcAddr[name] }}
}

// JmpFunc emits jmp rel32 to a function of the image.
func JmpFunc(name string) Op {
	return relOp{opcode: 0xe9, target: func(l *layout) uint64 { return l.funcAddr[name] }}
}

// CallImport emits call rel32 to the PLT stub of an import.
func CallImport(name string) Op {
	return relOp{opcode: 0xe8, target: func(l *layout) uint64 { return l.stubAddr[name] }}
}

// JmpImport emits jmp rel32 to the PLT stub of an import.
func JmpImport(name string) Op {
	return relOp{opcode: 0xe9, target: func(l *layout) uint64 { return l.stubAddr[name] }}
}

// CallAddr emits call rel32 to an absolute address.
func CallAddr(addr uint64) Op {
	return relOp{opcode: 0xe8, target: func(*layout) uint64 { return addr }}
}

type gotCallOp struct {
	name string
}

func (o gotCallOp) size() int { return 6 }

func (o gotCallOp) encode(l *layout, pc uint64) []byte {
	disp := int64(l.slotAddr[o.name]) - int64(pc+6)
	return binary.LittleEndian.AppendUint32([]byte{0xff, 0x15}, uint32(int32(disp)))
}

// CallGOT emits call *slot(%rip) through the GOT slot of an import, as
// produced by -fno-plt.
func CallGOT(name string) Op { return gotCallOp{name: name} }

func bodySize(body []Op) int {
	n := 0
	for _, op := range body {
		n += op.size()
	}
	return n
}
