package elfanalyzer

import (
	"math"

	"golang.org/x/arch/x86/x86asm"
)

const (
	// x86_64BitMode is the bit width for 64-bit mode decoding.
	x86_64BitMode = 64

	// minArgsForImmediateMove is the minimum number of arguments
	// required to check for an immediate move instruction (destination + source).
	minArgsForImmediateMove = 2

	// legacySyscallVector is the interrupt vector of the i386 syscall ABI.
	legacySyscallVector = 0x80
)

// DecodedInstruction represents a decoded x86_64 instruction.
type DecodedInstruction struct {
	// Offset is the virtual address of the first byte of this instruction.
	Offset uint64

	// Len is the instruction length in bytes.
	Len int

	// Op is the instruction opcode (e.g., MOV, SYSCALL).
	Op x86asm.Op

	// Args are the instruction arguments.
	Args []x86asm.Arg
}

// Next returns the address of the following instruction.
func (inst DecodedInstruction) Next() uint64 {
	return inst.Offset + uint64(inst.Len) //nolint:gosec // G115: Len is a positive instruction length
}

// register identifies a general purpose register regardless of access width.
type register int

const (
	regRAX register = iota
	regRDI
)

var registerAliases = map[register][]x86asm.Reg{
	regRAX: {x86asm.RAX, x86asm.EAX, x86asm.AX, x86asm.AL, x86asm.AH},
	regRDI: {x86asm.RDI, x86asm.EDI, x86asm.DI, x86asm.DIB},
}

// readOnlyOps use their first operand as a source.
var readOnlyOps = map[x86asm.Op]struct{}{
	x86asm.CMP:  {},
	x86asm.TEST: {},
	x86asm.PUSH: {},
	x86asm.BT:   {},
}

// X86Decoder decodes x86_64 machine code and classifies instructions.
type X86Decoder struct{}

// NewX86Decoder creates a new X86Decoder.
func NewX86Decoder() *X86Decoder {
	return &X86Decoder{}
}

// Decode decodes a single x86_64 instruction located at offset.
func (d *X86Decoder) Decode(code []byte, offset uint64) (DecodedInstruction, error) {
	inst, err := x86asm.Decode(code, x86_64BitMode)
	if err != nil {
		return DecodedInstruction{}, err
	}

	// Trim trailing nil arguments (x86asm.Arg is an interface, unused slots are nil)
	args := inst.Args[:]
	for len(args) > 0 && args[len(args)-1] == nil {
		args = args[:len(args)-1]
	}

	return DecodedInstruction{
		Offset: offset,
		Len:    inst.Len,
		Op:     inst.Op,
		Args:   args,
	}, nil
}

// IsSyscallInstruction reports whether the instruction enters the kernel:
// syscall, sysenter or int $0x80.
func (d *X86Decoder) IsSyscallInstruction(inst DecodedInstruction) bool {
	switch inst.Op {
	case x86asm.SYSCALL, x86asm.SYSENTER:
		return true
	case x86asm.INT:
		return d.IsLegacySyscall(inst)
	}
	return false
}

// IsLegacySyscall reports whether the instruction uses the i386 kernel entry,
// whose syscall numbers differ from the x86_64 table.
func (d *X86Decoder) IsLegacySyscall(inst DecodedInstruction) bool {
	switch inst.Op {
	case x86asm.SYSENTER:
		return true
	case x86asm.INT:
		if len(inst.Args) == 1 {
			if imm, ok := inst.Args[0].(x86asm.Imm); ok && imm == legacySyscallVector {
				return true
			}
		}
	}
	return false
}

// ModifiesEAXorRAX checks if the instruction modifies eax or rax.
func (d *X86Decoder) ModifiesEAXorRAX(inst DecodedInstruction) bool {
	return d.modifies(inst, regRAX)
}

// ModifiesEDIorRDI checks if the instruction modifies edi or rdi.
func (d *X86Decoder) ModifiesEDIorRDI(inst DecodedInstruction) bool {
	return d.modifies(inst, regRDI)
}

func (d *X86Decoder) modifies(inst DecodedInstruction, r register) bool {
	// The kernel returns its result in rax.
	if r == regRAX && d.IsSyscallInstruction(inst) {
		return true
	}
	if len(inst.Args) == 0 {
		return false
	}
	if _, ok := readOnlyOps[inst.Op]; ok {
		return false
	}
	if arg, ok := inst.Args[0].(x86asm.Reg); ok {
		return isAlias(arg, r)
	}
	return false
}

// IsImmediateMove checks if the instruction sets eax/rax to a known immediate value.
// This covers two common compiler patterns:
//   - MOV EAX/RAX, <imm>
//   - XOR EAX, EAX (equivalent to MOV EAX, 0)
func (d *X86Decoder) IsImmediateMove(inst DecodedInstruction) (bool, int64) {
	return d.immediateMove(inst, regRAX)
}

// IsImmediateMoveToEDI is IsImmediateMove for the first argument register.
func (d *X86Decoder) IsImmediateMoveToEDI(inst DecodedInstruction) (bool, int64) {
	return d.immediateMove(inst, regRDI)
}

func (d *X86Decoder) immediateMove(inst DecodedInstruction, r register) (bool, int64) {
	if len(inst.Args) < minArgsForImmediateMove {
		return false, 0
	}

	destReg, ok := inst.Args[0].(x86asm.Reg)
	if !ok {
		return false, 0
	}
	// Only full 32 or 64 bit writes define the whole register.
	aliases := registerAliases[r]
	if destReg != aliases[0] && destReg != aliases[1] {
		return false, 0
	}

	switch inst.Op {
	case x86asm.MOV:
		if src, ok := inst.Args[1].(x86asm.Imm); ok {
			return true, int64(src)
		}
	case x86asm.XOR:
		// Only match when both operands are the same register (self-XOR idiom).
		if srcReg, ok := inst.Args[1].(x86asm.Reg); ok && srcReg == destReg {
			return true, 0
		}
	}

	return false, 0
}

// IsControlFlowInstruction checks if the instruction is a control flow instruction.
func (d *X86Decoder) IsControlFlowInstruction(inst DecodedInstruction) bool {
	switch inst.Op {
	case x86asm.JMP, x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE,
		x86asm.JE, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE,
		x86asm.JNE, x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO,
		x86asm.JP, x86asm.JS, x86asm.JCXZ, x86asm.JECXZ, x86asm.JRCXZ,
		x86asm.CALL, x86asm.RET, x86asm.IRET, x86asm.INT,
		x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return true
	}
	return false
}

// BranchTarget returns the absolute target of a relative CALL or JMP.
func (d *X86Decoder) BranchTarget(inst DecodedInstruction) (uint64, bool) {
	if inst.Op != x86asm.CALL && inst.Op != x86asm.JMP {
		return 0, false
	}
	if len(inst.Args) == 0 {
		return 0, false
	}
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	return addSigned(inst.Next(), int64(rel))
}

// MemorySlot returns the address read by a RIP-relative indirect CALL or
// JMP, e.g. call *slot(%rip). The slot normally belongs to the GOT.
func (d *X86Decoder) MemorySlot(inst DecodedInstruction) (uint64, bool) {
	if inst.Op != x86asm.CALL && inst.Op != x86asm.JMP {
		return 0, false
	}
	if len(inst.Args) == 0 {
		return 0, false
	}
	mem, ok := inst.Args[0].(x86asm.Mem)
	if !ok || mem.Base != x86asm.RIP || mem.Index != 0 {
		return 0, false
	}
	return addSigned(inst.Next(), mem.Disp)
}

func addSigned(base uint64, delta int64) (uint64, bool) {
	if base > math.MaxInt64 {
		return 0, false
	}
	v := int64(base) + delta
	if v < 0 {
		return 0, false
	}
	return uint64(v), true
}

func isAlias(reg x86asm.Reg, r register) bool {
	for _, alias := range registerAliases[r] {
		if reg == alias {
			return true
		}
	}
	return false
}
